package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"healthsync/internal/kv"
	"healthsync/internal/models"
	"healthsync/internal/repository"
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("db missing")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --- kv.Store ----------------------------------------------------------------

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("%w: db missing", kv.ErrStore)
	}
	var item models.KVItem
	err := s.db.WithContext(ctx).First(&item, "item_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", kv.ErrStore, key, err)
	}
	if item.ExpiresAt != nil && s.now().After(*item.ExpiresAt) {
		return nil, false, nil
	}
	return item.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: db missing", kv.ErrStore)
	}
	now := s.now().UTC()
	item := models.KVItem{Key: key, Value: value, UpdatedAt: now}
	if value == nil {
		item.Value = []byte{}
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		item.ExpiresAt = &exp
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", kv.ErrStore, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: db missing", kv.ErrStore)
	}
	if err := s.db.WithContext(ctx).Delete(&models.KVItem{}, "item_key = ?", key).Error; err != nil {
		return fmt.Errorf("%w: delete %s: %v", kv.ErrStore, key, err)
	}
	return nil
}

// --- sync state ----------------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).First(&state, "scope = ?", scope).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"watermark_ts",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var states []models.SyncState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

// --- snapshot history ------------------------------------------------------------

// InsertHealthSnapshot stores a completed window. Recomputing the same window
// replaces the earlier row.
func (s *Store) InsertHealthSnapshot(ctx context.Context, item *models.HealthSnapshotRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "window_end"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"window_start",
			"steps",
			"height_m",
			"weight_kg",
			"sleep_hours",
			"distance_km",
			"heart_rate_bpm",
			"calories_kcal",
			"records_json",
		}),
	}).Create(item).Error
}

func (s *Store) ListHealthSnapshots(ctx context.Context, params repository.ListHealthSnapshotsParams) ([]models.HealthSnapshotRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	var items []models.HealthSnapshotRecord
	err := s.db.WithContext(ctx).
		Order("window_end desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

var _ repository.Repository = (*Store)(nil)
