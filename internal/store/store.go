// Package store implements the persisted key-value pairing store of
// spec.md §6: Wi-Fi credentials and per-variant MAC/serial bindings,
// namespaced "ecoflow". Grounded on the pack's kgiusti-go-fdo-server, the
// one example repo with a real persistence stack (gorm.io/gorm over
// gorm.io/driver/sqlite) — the teacher repo itself has no KV store of its
// own, this concern is adopted wholesale from the pack rather than
// hand-rolled.
package store

import (
	"fmt"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// record is a single namespaced key-value row.
type record struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value"`
}

func (record) TableName() string { return "ecoflow_kv" }

// Store serializes all reads and writes internally (§5 "the persisted
// key-value store serializes reads and writes internally"), so callers
// never need their own lock around it.
type Store struct {
	mu sync.Mutex
	db *gorm.DB
}

// Open opens (creating if absent) the sqlite-backed store at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec record
	err := s.db.First(&rec, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get %s: %w", key, err)
	}
	return rec.Value, true, nil
}

// Set upserts key/value.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record{Key: key, Value: value}
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key, if present.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Delete(&record{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}
