package repository

import (
	"context"

	"healthsync/internal/kv"
	"healthsync/internal/models"
)

// SyncRepository records background sync attempts and completed windows.
type SyncRepository interface {
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)
	InsertHealthSnapshot(ctx context.Context, item *models.HealthSnapshotRecord) error
	ListHealthSnapshots(ctx context.Context, params ListHealthSnapshotsParams) ([]models.HealthSnapshotRecord, error)
}

// Repository is the full persistence surface, including the kv backend.
type Repository interface {
	kv.Store
	SyncRepository
	Ping(ctx context.Context) error
}

type ListHealthSnapshotsParams struct {
	Limit  int
	Offset int
}
