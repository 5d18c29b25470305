package health

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	metersPerKilometer = decimal.NewFromInt(1000)
	hourNanos          = decimal.NewFromInt(int64(time.Hour))
)

// AggregateSteps sums record counts; a missing count counts as zero.
func AggregateSteps(records []RawRecord) int64 {
	var total int64
	for _, r := range records {
		if r.Count != nil {
			total += *r.Count
		}
	}
	return total
}

// AggregateHeight returns the height of the chronologically latest record.
func AggregateHeight(records []RawRecord) float64 {
	r, ok := latest(records, func(r RawRecord) bool { return r.Height != nil })
	if !ok {
		return 0
	}
	return r.Height.InMeters
}

// AggregateWeight returns the weight of the chronologically latest record.
func AggregateWeight(records []RawRecord) float64 {
	r, ok := latest(records, func(r RawRecord) bool { return r.Weight != nil })
	if !ok {
		return 0
	}
	return r.Weight.InKilograms
}

// AggregateSleep returns the total session length in hours. Sessions ending
// before they start are skipped.
func AggregateSleep(records []RawRecord) float64 {
	var total time.Duration
	for _, r := range records {
		if r.StartTime.IsZero() || r.EndTime.IsZero() || r.EndTime.Before(r.StartTime) {
			continue
		}
		total += r.EndTime.Sub(r.StartTime)
	}
	return decimal.NewFromInt(int64(total)).Div(hourNanos).InexactFloat64()
}

// AggregateDistance returns the total distance in kilometers.
func AggregateDistance(records []RawRecord) float64 {
	sum := decimal.Zero
	for _, r := range records {
		if r.Distance != nil && finite(r.Distance.InMeters) {
			sum = sum.Add(decimal.NewFromFloat(r.Distance.InMeters))
		}
	}
	return sum.Div(metersPerKilometer).InexactFloat64()
}

// AggregateHeartRate is the mean over every sample of every record, not the
// mean of per-record means. No samples yields 0.
func AggregateHeartRate(records []RawRecord) float64 {
	sum := decimal.Zero
	n := 0
	for _, r := range records {
		for _, s := range r.Samples {
			if !finite(s.BeatsPerMinute) {
				continue
			}
			sum = sum.Add(decimal.NewFromFloat(s.BeatsPerMinute))
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
}

// AggregateCalories sums energy in kilocalories.
func AggregateCalories(records []RawRecord) float64 {
	sum := decimal.Zero
	for _, r := range records {
		if r.Energy != nil && finite(r.Energy.InKilocalories) {
			sum = sum.Add(decimal.NewFromFloat(r.Energy.InKilocalories))
		}
	}
	return sum.InexactFloat64()
}

// Records groups fetched records by type for one TimeRange.
type Records map[RecordType][]RawRecord

// Aggregate reduces every record type into a Snapshot. Absent types reduce to zero.
func Aggregate(recs Records) Snapshot {
	return Snapshot{
		Steps:         AggregateSteps(recs[Steps]),
		Height:        AggregateHeight(recs[Height]),
		Weight:        AggregateWeight(recs[Weight]),
		SleepDuration: AggregateSleep(recs[SleepSession]),
		Distance:      AggregateDistance(recs[Distance]),
		HeartRate:     AggregateHeartRate(recs[HeartRate]),
		Calories:      AggregateCalories(recs[TotalCaloriesBurned]),
	}
}

// Counts reports how many records were fetched per type.
func (recs Records) Counts() map[string]int {
	out := make(map[string]int, len(recs))
	for rt, rs := range recs {
		out[string(rt)] = len(rs)
	}
	return out
}

// latest sorts a copy of the matching records ascending by timestamp and returns
// the last one. Provider ordering is not trusted.
func latest(records []RawRecord, keep func(RawRecord) bool) (RawRecord, bool) {
	matched := make([]RawRecord, 0, len(records))
	for _, r := range records {
		if keep(r) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return RawRecord{}, false
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp().Before(matched[j].Timestamp())
	})
	return matched[len(matched)-1], true
}

// finite rejects NaN and infinities, which decimal cannot represent.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
