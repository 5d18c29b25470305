package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"healthsync/internal/background"
	"healthsync/internal/health"
	"healthsync/internal/kv"
	"healthsync/internal/limiter"
	"healthsync/internal/models"
	"healthsync/internal/repository"
	"healthsync/internal/watermark"
)

// SyncScope is the sync_state row written by the background sync.
const SyncScope = "health_window"

const defaultLookback = 24 * time.Hour

// SyncResult is one completed window.
type SyncResult struct {
	Range    health.TimeRange `json:"range"`
	Snapshot health.Snapshot  `json:"snapshot"`
	Counts   map[string]int   `json:"counts"`
	SyncedAt time.Time        `json:"synced_at"`
}

// SnapshotPublisher receives every completed window.
type SnapshotPublisher interface {
	Publish(result SyncResult)
}

// BackgroundSyncService refreshes the window snapshot from the watermark to now.
type BackgroundSyncService struct {
	Provider    health.Provider
	Fetcher     health.RecordFetcher
	Limiter     *limiter.Limiter
	Permissions PermissionChecker
	Watermark   watermark.Store
	KV          kv.Store
	// Repo and Publisher are optional.
	Repo      repository.SyncRepository
	Publisher SnapshotPublisher
	Host      background.Host
	Options   background.Options
	Lookback  time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

// Setup registers HandleEvent with the host.
func (s *BackgroundSyncService) Setup() error {
	if s.Host == nil {
		return errors.New("background sync: host missing")
	}
	return s.Host.Configure(s.Options, s.HandleEvent, func(err error) {
		s.logger().Warn("background fetch event rejected", zap.Error(err))
	})
}

// HandleEvent runs one sync for ev and always finishes the task. Timeout
// events do no work. Failures are logged, never returned.
func (s *BackgroundSyncService) HandleEvent(ctx context.Context, ev background.Event) {
	if s.Host != nil {
		defer s.Host.Finish(ev.TaskID)
	}
	log := s.logger().With(zap.String("task_id", ev.TaskID), zap.Bool("headless", ev.Headless))
	if ev.Timeout {
		log.Warn("background sync timed out")
		return
	}
	result, err := s.Sync(ctx)
	if err != nil {
		log.Warn("background sync failed",
			zap.String("code", string(health.Classify(err))),
			zap.Error(err),
		)
		return
	}
	log.Info("background sync ok",
		zap.Time("start", result.Range.Start),
		zap.Time("end", result.Range.End),
		zap.Int64("steps", result.Snapshot.Steps),
		zap.Any("records", result.Counts),
	)
}

// Sync fetches all record types over [watermark or now-lookback, now],
// persists the window snapshot and then advances the watermark. Nothing is
// persisted and the watermark stays put when any step fails.
func (s *BackgroundSyncService) Sync(ctx context.Context) (SyncResult, error) {
	now := s.now().UTC()
	result, err := s.sync(ctx, now)
	if err != nil {
		s.recordFailure(ctx, now, err)
		return SyncResult{}, err
	}
	s.recordSuccess(ctx, result)
	if s.Publisher != nil {
		s.Publisher.Publish(result)
	}
	return result, nil
}

func (s *BackgroundSyncService) sync(ctx context.Context, now time.Time) (SyncResult, error) {
	if s.Fetcher == nil || s.Watermark == nil || s.KV == nil {
		return SyncResult{}, fmt.Errorf("background sync: %w", health.ErrProviderUnavailable)
	}
	if err := ensureReady(ctx, s.Provider, s.Permissions); err != nil {
		return SyncResult{}, err
	}
	start, ok, err := s.Watermark.Get(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if !ok {
		start = now.Add(-s.lookback())
	}
	rng := health.TimeRange{Start: start, End: now}
	if !rng.Valid() {
		return SyncResult{}, fmt.Errorf("watermark %s is ahead of clock %s", start.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	}
	if err := ctx.Err(); err != nil {
		return SyncResult{}, err
	}

	recs := make(health.Records, len(health.AllRecordTypes))
	if err := fetchGroup(ctx, recs, gated(s.Limiter, s.Fetcher, rng), health.AllRecordTypes...); err != nil {
		return SyncResult{}, err
	}
	snap := health.Aggregate(recs)

	raw, err := json.Marshal(snap)
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: encode snapshot: %v", kv.ErrStore, err)
	}
	if err := s.KV.Set(ctx, kv.KeyHealthData, raw, 0); err != nil {
		return SyncResult{}, err
	}
	if err := s.Watermark.Advance(ctx, rng.End); err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Range: rng, Snapshot: snap, Counts: recs.Counts(), SyncedAt: now}, nil
}

func (s *BackgroundSyncService) recordSuccess(ctx context.Context, result SyncResult) {
	if s.Repo == nil {
		return
	}
	end := result.Range.End
	syncedAt := result.SyncedAt
	state := &models.SyncState{
		Scope:         SyncScope,
		WatermarkTS:   &end,
		LastSuccessAt: &syncedAt,
		LastAttemptAt: &syncedAt,
		LastError:     nil,
		StatsJSON: statsJSON(map[string]any{
			"start":   result.Range.Start,
			"end":     result.Range.End,
			"records": result.Counts,
		}),
	}
	if err := s.Repo.SaveSyncState(ctx, state); err != nil {
		s.logger().Warn("save sync state failed", zap.Error(err))
	}
	if err := s.Repo.InsertHealthSnapshot(ctx, snapshotRecord(result)); err != nil {
		s.logger().Warn("insert health snapshot failed", zap.Error(err))
	}
}

// recordFailure keeps the last success and watermark columns of the existing row.
func (s *BackgroundSyncService) recordFailure(ctx context.Context, now time.Time, syncErr error) {
	if s.Repo == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	state, err := s.Repo.GetSyncState(ctx, SyncScope)
	if err != nil {
		s.logger().Warn("load sync state failed", zap.Error(err))
		return
	}
	if state == nil {
		state = &models.SyncState{Scope: SyncScope}
	}
	msg := syncErr.Error()
	state.LastAttemptAt = &now
	state.LastError = &msg
	state.StatsJSON = statsJSON(map[string]any{"code": health.Classify(syncErr)})
	if err := s.Repo.SaveSyncState(ctx, state); err != nil {
		s.logger().Warn("save sync state failed", zap.Error(err))
	}
}

func snapshotRecord(result SyncResult) *models.HealthSnapshotRecord {
	snap := result.Snapshot
	return &models.HealthSnapshotRecord{
		WindowStart:  result.Range.Start,
		WindowEnd:    result.Range.End,
		Steps:        snap.Steps,
		HeightM:      decimal.NewFromFloat(snap.Height),
		WeightKg:     decimal.NewFromFloat(snap.Weight),
		SleepHours:   decimal.NewFromFloat(snap.SleepDuration),
		DistanceKm:   decimal.NewFromFloat(snap.Distance),
		HeartRateBPM: decimal.NewFromFloat(snap.HeartRate),
		CaloriesKcal: decimal.NewFromFloat(snap.Calories),
		RecordsJSON:  statsJSON(result.Counts),
	}
}

func statsJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func (s *BackgroundSyncService) lookback() time.Duration {
	if s.Lookback <= 0 {
		return defaultLookback
	}
	return s.Lookback
}

func (s *BackgroundSyncService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *BackgroundSyncService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
