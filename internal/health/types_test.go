package health

import (
	"testing"
	"time"
)

func TestDayRange_LocalBounds(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	day := time.Date(2026, 7, 14, 22, 30, 0, 0, time.UTC) // 00:30 on the 15th in loc
	r := DayRange(day, loc)
	wantStart := time.Date(2026, 7, 15, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2026, 7, 15, 23, 59, 59, 999000000, loc)
	if !r.Start.Equal(wantStart) || !r.End.Equal(wantEnd) {
		t.Fatalf("range=%s want=%s/%s", r, wantStart, wantEnd)
	}
	if !r.Valid() {
		t.Fatalf("day range must be valid")
	}
}

func TestTimeRange_Valid(t *testing.T) {
	now := time.Now()
	if !(TimeRange{Start: now, End: now}).Valid() {
		t.Fatalf("empty range should be valid")
	}
	if (TimeRange{Start: now, End: now.Add(-time.Second)}).Valid() {
		t.Fatalf("inverted range should be invalid")
	}
}

func TestParseRecordType(t *testing.T) {
	for _, rt := range AllRecordTypes {
		got, err := ParseRecordType(string(rt))
		if err != nil || got != rt {
			t.Fatalf("ParseRecordType(%q)=%q,%v", rt, got, err)
		}
	}
	if _, err := ParseRecordType("BloodGlucose"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestRawRecordTimestamp(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := (RawRecord{StartTime: t0, EndTime: t0.Add(time.Hour)}).Timestamp(); !got.Equal(t0) {
		t.Fatalf("timestamp=%v want start time", got)
	}
	if got := (RawRecord{Time: t0.Add(time.Minute), StartTime: t0}).Timestamp(); !got.Equal(t0.Add(time.Minute)) {
		t.Fatalf("timestamp=%v want point time", got)
	}
}
