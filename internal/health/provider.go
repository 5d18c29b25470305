package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type AccessType string

const AccessRead AccessType = "read"

type Permission struct {
	AccessType AccessType `json:"accessType"`
	RecordType RecordType `json:"recordType"`
}

// ReadPermissions returns read grants for every record type.
func ReadPermissions() []Permission {
	out := make([]Permission, 0, len(AllRecordTypes))
	for _, rt := range AllRecordTypes {
		out = append(out, Permission{AccessType: AccessRead, RecordType: rt})
	}
	return out
}

type TimeRangeFilter struct {
	Operator  string    `json:"operator"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type ReadOptions struct {
	TimeRangeFilter TimeRangeFilter `json:"timeRangeFilter"`
}

type ReadResult struct {
	Records []RawRecord `json:"records"`
}

// Provider is the external health-data source.
type Provider interface {
	Initialize(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context, perms []Permission) error
	ReadRecords(ctx context.Context, rt RecordType, opts ReadOptions) (ReadResult, error)
}

// RecordFetcher reads the records of one type over one range.
type RecordFetcher interface {
	Fetch(ctx context.Context, rt RecordType, r TimeRange) ([]RawRecord, error)
}

// ProviderFetcher adapts a Provider to RecordFetcher and normalizes its errors
// to ErrProviderUnavailable, ErrPermissionDenied or ErrTransientIO. It never retries.
type ProviderFetcher struct {
	Provider Provider
}

func (f *ProviderFetcher) Fetch(ctx context.Context, rt RecordType, r TimeRange) ([]RawRecord, error) {
	if f == nil || f.Provider == nil {
		return nil, ErrProviderUnavailable
	}
	if !r.Valid() {
		return nil, fmt.Errorf("invalid time range %s", r)
	}
	res, err := f.Provider.ReadRecords(ctx, rt, ReadOptions{
		TimeRangeFilter: TimeRangeFilter{
			Operator:  "between",
			StartTime: r.Start,
			EndTime:   r.End,
		},
	})
	if err != nil {
		return nil, classifyFetchErr(rt, err)
	}
	return res.Records, nil
}

func classifyFetchErr(rt RecordType, err error) error {
	switch {
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrTransientIO),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("read %s: %w", rt, err)
	default:
		return fmt.Errorf("read %s: %w: %v", rt, ErrTransientIO, err)
	}
}
