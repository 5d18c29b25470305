package models

import "time"

// KVItem backs the persistent key-value store (lastSync, healthData,
// healthPermissions, height, weight).
type KVItem struct {
	Key       string     `gorm:"column:item_key;primaryKey;type:varchar(191)"`
	Value     []byte     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
}

func (KVItem) TableName() string {
	return "kv_items"
}
