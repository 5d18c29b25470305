package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// HealthSnapshotRecord is one completed background sync window.
type HealthSnapshotRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	WindowStart time.Time `gorm:"not null;index"`
	WindowEnd   time.Time `gorm:"not null;uniqueIndex"`

	Steps        int64           `gorm:"not null;default:0"`
	HeightM      decimal.Decimal `gorm:"column:height_m;type:numeric(12,4);not null;default:0"`
	WeightKg     decimal.Decimal `gorm:"column:weight_kg;type:numeric(12,4);not null;default:0"`
	SleepHours   decimal.Decimal `gorm:"type:numeric(12,4);not null;default:0"`
	DistanceKm   decimal.Decimal `gorm:"type:numeric(14,6);not null;default:0"`
	HeartRateBPM decimal.Decimal `gorm:"column:heart_rate_bpm;type:numeric(10,4);not null;default:0"`
	CaloriesKcal decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0"`
	RecordsJSON  datatypes.JSON  `gorm:"comment:record counts per type"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
}

func (HealthSnapshotRecord) TableName() string {
	return "health_snapshots"
}
