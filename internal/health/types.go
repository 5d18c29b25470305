// Package health holds the record model, the provider boundary and the
// per-metric reductions that turn raw provider records into a Snapshot.
package health

import (
	"fmt"
	"time"
)

type RecordType string

const (
	Steps               RecordType = "Steps"
	Height              RecordType = "Height"
	Weight              RecordType = "Weight"
	SleepSession        RecordType = "SleepSession"
	Distance            RecordType = "Distance"
	HeartRate           RecordType = "HeartRate"
	TotalCaloriesBurned RecordType = "TotalCaloriesBurned"
)

// AllRecordTypes lists every type a snapshot is built from.
var AllRecordTypes = []RecordType{
	Steps,
	Height,
	Weight,
	SleepSession,
	Distance,
	HeartRate,
	TotalCaloriesBurned,
}

func (t RecordType) Valid() bool {
	for _, rt := range AllRecordTypes {
		if rt == t {
			return true
		}
	}
	return false
}

func ParseRecordType(s string) (RecordType, error) {
	rt := RecordType(s)
	if !rt.Valid() {
		return "", fmt.Errorf("unknown record type: %q", s)
	}
	return rt, nil
}

type Length struct {
	InMeters float64 `json:"inMeters"`
}

type Mass struct {
	InKilograms float64 `json:"inKilograms"`
}

type Energy struct {
	InKilocalories float64 `json:"inKilocalories"`
}

type HeartRateSample struct {
	Time           time.Time `json:"time"`
	BeatsPerMinute float64   `json:"beatsPerMinute"`
}

// RawRecord is one provider record. Which fields are set depends on the record
// type: point records (Height, Weight) carry Time, interval records carry
// StartTime/EndTime.
type RawRecord struct {
	Time      time.Time `json:"time,omitempty"`
	StartTime time.Time `json:"startTime,omitempty"`
	EndTime   time.Time `json:"endTime,omitempty"`

	Count    *int64            `json:"count,omitempty"`
	Height   *Length           `json:"height,omitempty"`
	Weight   *Mass             `json:"weight,omitempty"`
	Distance *Length           `json:"distance,omitempty"`
	Energy   *Energy           `json:"energy,omitempty"`
	Samples  []HeartRateSample `json:"samples,omitempty"`
}

// Timestamp is the instant used to order records chronologically.
func (r RawRecord) Timestamp() time.Time {
	if !r.Time.IsZero() {
		return r.Time
	}
	if !r.StartTime.IsZero() {
		return r.StartTime
	}
	return r.EndTime
}

// TimeRange is half-open: [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r TimeRange) Valid() bool {
	return !r.End.Before(r.Start)
}

func (r TimeRange) String() string {
	return r.Start.Format(time.RFC3339Nano) + "/" + r.End.Format(time.RFC3339Nano)
}

// DayRange returns [local midnight, 23:59:59.999] of the calendar date of day in loc.
func DayRange(day time.Time, loc *time.Location) TimeRange {
	if loc == nil {
		loc = time.Local
	}
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return TimeRange{Start: start, End: end}
}

// Snapshot is the aggregate of the seven metrics over one TimeRange.
type Snapshot struct {
	Steps         int64   `json:"steps"`
	Height        float64 `json:"height"`
	Weight        float64 `json:"weight"`
	SleepDuration float64 `json:"sleepDuration"`
	Distance      float64 `json:"distance"`
	HeartRate     float64 `json:"heartRate"`
	Calories      float64 `json:"calories"`
}
