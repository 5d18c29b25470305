package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthsync/internal/cache"
	"healthsync/internal/health"
	"healthsync/internal/kv"
	"healthsync/internal/limiter"
)

// DailyPipeline builds the snapshot for one calendar day on demand.
type DailyPipeline struct {
	Provider    health.Provider
	Fetcher     health.RecordFetcher
	Limiter     *limiter.Limiter
	Permissions PermissionChecker
	// Cache holds height and weight records. Nil disables caching.
	Cache    *cache.TTLCache[[]health.RawRecord]
	Location *time.Location
	Logger   *zap.Logger
}

// FetchHealthDataForDate returns nil when any step fails; the failure is logged.
func (p *DailyPipeline) FetchHealthDataForDate(ctx context.Context, date time.Time) *health.Snapshot {
	snap, err := p.Run(ctx, date)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("daily health fetch failed",
				zap.String("date", date.In(p.location()).Format(time.DateOnly)),
				zap.String("code", string(health.Classify(err))),
				zap.Error(err),
			)
		}
		return nil
	}
	return &snap
}

// Run fetches the day's records in three joined groups and aggregates them.
// The groups never overlap: steps, calories and distance first, then height
// and weight through the cache, then heart rate and sleep.
func (p *DailyPipeline) Run(ctx context.Context, date time.Time) (health.Snapshot, error) {
	if p == nil || p.Fetcher == nil {
		return health.Snapshot{}, fmt.Errorf("daily pipeline: %w", health.ErrProviderUnavailable)
	}
	if err := ensureReady(ctx, p.Provider, p.Permissions); err != nil {
		return health.Snapshot{}, err
	}

	rng := health.DayRange(date, p.location())
	fetch := gated(p.Limiter, p.Fetcher, rng)
	recs := make(health.Records, len(health.AllRecordTypes))

	if err := fetchGroup(ctx, recs, fetch, health.Steps, health.TotalCaloriesBurned, health.Distance); err != nil {
		return health.Snapshot{}, err
	}
	if err := fetchGroup(ctx, recs, p.cached(fetch), health.Height, health.Weight); err != nil {
		return health.Snapshot{}, err
	}
	if err := fetchGroup(ctx, recs, fetch, health.HeartRate, health.SleepSession); err != nil {
		return health.Snapshot{}, err
	}

	snap := health.Aggregate(recs)
	if p.Logger != nil {
		p.Logger.Debug("daily health fetch ok",
			zap.String("range", rng.String()),
			zap.Any("records", recs.Counts()),
		)
	}
	return snap, nil
}

func (p *DailyPipeline) cached(fetch fetchFunc) fetchFunc {
	if p.Cache == nil {
		return fetch
	}
	return func(ctx context.Context, rt health.RecordType) ([]health.RawRecord, error) {
		key, ok := cacheKey(rt)
		if !ok {
			return fetch(ctx, rt)
		}
		return p.Cache.GetOrFetch(ctx, key, func(ctx context.Context) ([]health.RawRecord, error) {
			return fetch(ctx, rt)
		})
	}
}

func (p *DailyPipeline) location() *time.Location {
	if p == nil || p.Location == nil {
		return time.Local
	}
	return p.Location
}

func cacheKey(rt health.RecordType) (string, bool) {
	switch rt {
	case health.Height:
		return kv.KeyHeight, true
	case health.Weight:
		return kv.KeyWeight, true
	default:
		return "", false
	}
}
