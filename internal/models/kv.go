package models

import "time"

// KVEntry is one slot of the device-local key/value store. Version grows by
// one on every write and backs compare-and-put.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:100"`
	Value     string `gorm:"type:text;not null"`
	Version   int64  `gorm:"not null;default:1"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable across naming strategies.
func (KVEntry) TableName() string { return "kv_entries" }
