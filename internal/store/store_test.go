package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestKVPutGetDelete(t *testing.T) {
	kv := NewKV(setupDB(t))
	ctx := context.Background()

	if _, _, err := kv.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
	v1, err := kv.Put(ctx, "a", "one")
	if err != nil || v1 != 1 {
		t.Fatalf("first put: version=%d err=%v", v1, err)
	}
	v2, err := kv.Put(ctx, "a", "two")
	if err != nil || v2 != 2 {
		t.Fatalf("second put: version=%d err=%v", v2, err)
	}
	val, ver, err := kv.Get(ctx, "a")
	if err != nil || val != "two" || ver != 2 {
		t.Fatalf("get: %q %d %v", val, ver, err)
	}
	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete missing should be a no-op: %v", err)
	}
	if _, _, err := kv.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete got %v", err)
	}
}

func TestKVCompareAndPut(t *testing.T) {
	kv := NewKV(setupDB(t))
	ctx := context.Background()

	v, err := kv.CompareAndPut(ctx, "draft", "d1", 0)
	if err != nil || v != 1 {
		t.Fatalf("create on empty slot: %d %v", v, err)
	}
	if _, err := kv.CompareAndPut(ctx, "draft", "d1bis", 0); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict when slot exists, got %v", err)
	}
	v, err = kv.CompareAndPut(ctx, "draft", "d2", 1)
	if err != nil || v != 2 {
		t.Fatalf("update at version 1: %d %v", v, err)
	}
	// a writer still holding version 1 loses
	if _, err := kv.CompareAndPut(ctx, "draft", "stale", 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}
	val, _, _ := kv.Get(ctx, "draft")
	if val != "d2" {
		t.Fatalf("stale writer must not overwrite, got %q", val)
	}
	if err := kv.CompareAndDelete(ctx, "draft", 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict on stale delete, got %v", err)
	}
	if err := kv.CompareAndDelete(ctx, "draft", 2); err != nil {
		t.Fatalf("delete at current version: %v", err)
	}
}

func TestSessionVault(t *testing.T) {
	kv := NewKV(setupDB(t))
	ctx := context.Background()
	v, err := NewSessionVault(kv, "s3cret")
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if _, err := v.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
	if err := v.Save(ctx, "abc123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, _, _ := kv.Get(ctx, KeySession)
	if strings.Contains(raw, "abc123") {
		t.Fatalf("session id stored in clear")
	}
	sid, err := v.Load(ctx)
	if err != nil || sid != "abc123" {
		t.Fatalf("load: %q %v", sid, err)
	}

	other, _ := NewSessionVault(kv, "another secret")
	if _, err := other.Load(ctx); !errors.Is(err, ErrSealBroken) {
		t.Fatalf("expected ErrSealBroken with wrong key, got %v", err)
	}

	if err := v.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := v.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear got %v", err)
	}
	if _, err := NewSessionVault(kv, ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
