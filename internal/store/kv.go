package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/go-pos/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("kv_not_found")
	// ErrVersionConflict is returned by CompareAndPut when the slot changed
	// since it was read.
	ErrVersionConflict = errors.New("kv_version_conflict")
)

// KV is a versioned key/value table.
type KV struct {
	db *gorm.DB
}

// NewKV wraps an open database.
func NewKV(db *gorm.DB) *KV {
	return &KV{db: db}
}

// Get returns the value and version stored under key.
func (s *KV) Get(ctx context.Context, key string) (string, int64, error) {
	var e models.KVEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("kv get %s: %w", key, err)
	}
	return e.Value, e.Version, nil
}

// Put stores value unconditionally and returns the new version.
func (s *KV) Put(ctx context.Context, key, value string) (int64, error) {
	var version int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.KVEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("key = ?", key).First(&e).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			version = 1
			return tx.Create(&models.KVEntry{Key: key, Value: value, Version: version}).Error
		case err != nil:
			return err
		}
		version = e.Version + 1
		return tx.Model(&e).Updates(map[string]any{"value": value, "version": version}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("kv put %s: %w", key, err)
	}
	return version, nil
}

// CompareAndPut stores value only if the slot is still at expected. An
// expected version of 0 means the slot must not exist.
func (s *KV) CompareAndPut(ctx context.Context, key, value string, expected int64) (int64, error) {
	db := s.db.WithContext(ctx)
	if expected == 0 {
		res := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.KVEntry{Key: key, Value: value, Version: 1})
		if res.Error != nil {
			return 0, fmt.Errorf("kv put %s: %w", key, res.Error)
		}
		if res.RowsAffected == 0 {
			return 0, ErrVersionConflict
		}
		return 1, nil
	}
	res := db.Model(&models.KVEntry{}).
		Where("key = ? AND version = ?", key, expected).
		Updates(map[string]any{"value": value, "version": expected + 1})
	if res.Error != nil {
		return 0, fmt.Errorf("kv put %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.KVEntry{}).Error; err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// CompareAndDelete removes key only if it is still at expected.
func (s *KV) CompareAndDelete(ctx context.Context, key string, expected int64) error {
	res := s.db.WithContext(ctx).Where("key = ? AND version = ?", key, expected).Delete(&models.KVEntry{})
	if res.Error != nil {
		return fmt.Errorf("kv delete %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
