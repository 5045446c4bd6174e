// Package store is the device-local key/value store backing the session and
// the in-progress draft invoice. It runs on gorm over sqlite, or postgres when
// several terminals share one database.
package store

import (
	"fmt"
	"log"
	"time"

	"github.com/diewo77/go-pos/internal/config"
	"github.com/diewo77/go-pos/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// connectAttempts bounds the retries while a postgres container starts.
const connectAttempts = 5

// Open connects to the configured database and applies migrations.
func Open(cfg config.StoreConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "sqlite", "":
		db, err = gorm.Open(sqlite.Open(cfg.Path), gcfg)
	case "postgres":
		dsn := cfg.PostgresDSN()
		for i := 0; i < connectAttempts; i++ {
			db, err = gorm.Open(postgres.Open(dsn), gcfg)
			if err == nil {
				break
			}
			log.Printf("[store] connect attempt %d/%d failed: %v", i+1, connectAttempts, err)
			time.Sleep(2 * time.Second)
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the store tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.KVEntry{}); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	return nil
}
