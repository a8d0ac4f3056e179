package models

import (
	"time"

	"gorm.io/datatypes"
)

// CacheEntry is one value of the durable namespaced cache. Timestamp holds
// unix milliseconds of the moment the value was produced.
type CacheEntry struct {
	Namespace string         `gorm:"primaryKey;type:text"`
	Key       string         `gorm:"primaryKey;type:text"`
	Data      datatypes.JSON `gorm:"not null"`
	Timestamp int64          `gorm:"not null"`

	UpdatedAt time.Time
}

func (CacheEntry) TableName() string { return "cache_entries" }
