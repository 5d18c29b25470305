package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"healthsync/internal/health"
	"healthsync/internal/kv"
	"healthsync/internal/models"
	"healthsync/internal/repository"
	"healthsync/internal/watermark"
)

// SnapshotQueryService reads what the background sync persisted.
type SnapshotQueryService struct {
	KV        kv.Store
	Watermark watermark.Store
	Repo      repository.SyncRepository
}

type LatestSnapshot struct {
	Snapshot *health.Snapshot `json:"snapshot"`
	LastSync *time.Time       `json:"last_sync"`
}

type HistoryItem struct {
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Snapshot    health.Snapshot `json:"snapshot"`
	Records     json.RawMessage `json:"records,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Latest returns the last window snapshot and the watermark. Either may be nil
// before the first successful sync.
func (s *SnapshotQueryService) Latest(ctx context.Context) (LatestSnapshot, error) {
	var out LatestSnapshot
	if s == nil || s.KV == nil {
		return out, nil
	}
	raw, found, err := s.KV.Get(ctx, kv.KeyHealthData)
	if err != nil {
		return out, err
	}
	if found && len(raw) > 0 {
		var snap health.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return out, fmt.Errorf("%w: decode %s: %v", kv.ErrStore, kv.KeyHealthData, err)
		}
		out.Snapshot = &snap
	}
	if s.Watermark != nil {
		t, ok, err := s.Watermark.Get(ctx)
		if err != nil {
			return out, err
		}
		if ok {
			out.LastSync = &t
		}
	}
	return out, nil
}

func (s *SnapshotQueryService) History(ctx context.Context, limit, offset int) ([]HistoryItem, error) {
	if s == nil || s.Repo == nil {
		return []HistoryItem{}, nil
	}
	rows, err := s.Repo.ListHealthSnapshots(ctx, repository.ListHealthSnapshotsParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	out := make([]HistoryItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, historyItem(row))
	}
	return out, nil
}

func (s *SnapshotQueryService) States(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.Repo == nil {
		return []models.SyncState{}, nil
	}
	return s.Repo.ListSyncStates(ctx)
}

func historyItem(row models.HealthSnapshotRecord) HistoryItem {
	item := HistoryItem{
		WindowStart: row.WindowStart,
		WindowEnd:   row.WindowEnd,
		Snapshot: health.Snapshot{
			Steps:         row.Steps,
			Height:        row.HeightM.InexactFloat64(),
			Weight:        row.WeightKg.InexactFloat64(),
			SleepDuration: row.SleepHours.InexactFloat64(),
			Distance:      row.DistanceKm.InexactFloat64(),
			HeartRate:     row.HeartRateBPM.InexactFloat64(),
			Calories:      row.CaloriesKcal.InexactFloat64(),
		},
		CreatedAt: row.CreatedAt,
	}
	if len(row.RecordsJSON) > 0 {
		item.Records = json.RawMessage(row.RecordsJSON)
	}
	return item
}
