// Package settings is the versioned persistence layer for module settings.
// A Store wraps one key in a key/value Area with a schema version and a
// migration chain; modules keep their own Store and never touch the Area
// directly.
//
//	store := settings.NewStore(settings.StoreOptions{
//		Key:     "notifications",
//		Version: 2,
//		Defaults: map[string]any{"enabled": true},
//		Area:    area,
//		Migrations: map[int]settings.Migration{
//			2: func(old map[string]any) map[string]any { ... },
//		},
//	})
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/muselink/muselink/dbopen"
)

// Area is a raw key/value persistence area holding one JSON record per
// key. Get returns (nil, nil) for an absent key.
type Area interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Remove(ctx context.Context, key string) error
}

// MemoryArea is an in-process Area for tests and for contexts without a
// database (the popup proxies settings through messages instead).
type MemoryArea struct {
	mu      sync.Mutex
	records map[string]json.RawMessage
}

// NewMemoryArea creates an empty in-memory area.
func NewMemoryArea() *MemoryArea {
	return &MemoryArea{records: make(map[string]json.RawMessage)}
}

func (a *MemoryArea) Get(_ context.Context, key string) (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[key]
	if !ok {
		return nil, nil
	}
	out := make(json.RawMessage, len(rec))
	copy(out, rec)
	return out, nil
}

func (a *MemoryArea) Set(_ context.Context, key string, value json.RawMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := make(json.RawMessage, len(value))
	copy(rec, value)
	a.records[key] = rec
	return nil
}

func (a *MemoryArea) Remove(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.records, key)
	return nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteArea persists records in one settings table. Open the database
// through dbopen so the WAL and busy-timeout pragmas are in place.
type SQLiteArea struct {
	db *sql.DB
}

// NewSQLiteArea creates the settings table if needed and returns the area.
func NewSQLiteArea(db *sql.DB) (*SQLiteArea, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("settings: init schema: %w", err)
	}
	return &SQLiteArea{db: db}, nil
}

func (a *SQLiteArea) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := a.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: get %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

func (a *SQLiteArea) Set(ctx context.Context, key string, value json.RawMessage) error {
	err := dbopen.RunTx(ctx, a.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, string(value))
		return err
	})
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

func (a *SQLiteArea) Remove(ctx context.Context, key string) error {
	err := dbopen.RunTx(ctx, a.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("settings: remove %s: %w", key, err)
	}
	return nil
}
