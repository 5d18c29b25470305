package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState records the outcome of the most recent background sync attempt per scope.
type SyncState struct {
	Scope         string     `gorm:"primaryKey;type:varchar(64)"`
	WatermarkTS   *time.Time `gorm:"comment:end of the last completed window"`
	LastSuccessAt *time.Time
	LastAttemptAt *time.Time
	LastError     *string `gorm:"type:text"`
	StatsJSON     datatypes.JSON
}

func (SyncState) TableName() string {
	return "sync_state"
}
