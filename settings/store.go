package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// versionField tags every persisted record with the schema version it was
// written at. It never appears in values returned to callers.
const versionField = "__version"

// Migration rewrites a record from the previous schema version to its own.
type Migration func(old map[string]any) map[string]any

// StoreOptions configures a Store.
type StoreOptions struct {
	Key      string
	Version  int
	Defaults map[string]any
	Area     Area
	// Migrations maps a target version to the function that lifts a
	// record from version-1 to version. A missing step passes the record
	// through unchanged (logged; see the warning in migrate).
	Migrations map[int]Migration
	Logger     *slog.Logger
}

// Store reads and writes one versioned settings record. Reads migrate
// stale records forward and persist the result, so migrations run at most
// once per version step. Writes always tag with the configured version,
// never the version the data came from. Concurrent writers are
// last-write-wins; settings changes originate from a single human.
type Store struct {
	key        string
	version    int
	defaults   map[string]any
	area       Area
	migrations map[int]Migration
	logger     *slog.Logger
}

// NewStore creates a Store. The record itself is created lazily on first
// Get or Set.
func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		key:        opts.Key,
		version:    opts.Version,
		defaults:   opts.Defaults,
		area:       opts.Area,
		migrations: opts.Migrations,
		logger:     logger,
	}
}

// Get returns the effective settings value: defaults overlaid with the
// persisted fields, after any pending migrations have been applied and
// written back. An absent record yields a copy of the defaults.
func (s *Store) Get(ctx context.Context) (map[string]any, error) {
	raw, err := s.area.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return cloneMap(s.defaults), nil
	}

	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("settings: decode %s: %w", s.key, err)
	}

	storedVersion := 0
	if v, ok := stored[versionField].(float64); ok {
		storedVersion = int(v)
	}

	if storedVersion < s.version {
		stored = s.migrate(stored, storedVersion)
		if err := s.write(ctx, stored); err != nil {
			return nil, err
		}
	}

	merged := cloneMap(s.defaults)
	for k, v := range stored {
		if k == versionField {
			continue
		}
		merged[k] = v
	}
	return merged, nil
}

// Set shallow-merges partial into the current effective value and persists
// the whole record at the configured version.
func (s *Store) Set(ctx context.Context, partial map[string]any) error {
	current, err := s.Get(ctx)
	if err != nil {
		return err
	}
	for k, v := range partial {
		current[k] = v
	}
	return s.write(ctx, current)
}

// Reset discards all persisted state and writes the defaults at the
// configured version.
func (s *Store) Reset(ctx context.Context) error {
	return s.write(ctx, cloneMap(s.defaults))
}

func (s *Store) write(ctx context.Context, data map[string]any) error {
	record := cloneMap(data)
	record[versionField] = s.version
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("settings: encode %s: %w", s.key, err)
	}
	return s.area.Set(ctx, s.key, raw)
}

// migrate folds the migration chain for versions from+1..version in
// ascending order. A step with no registered function passes the record
// through unchanged; that gap is logged because it usually means a
// migration was forgotten rather than intended.
func (s *Store) migrate(data map[string]any, from int) map[string]any {
	current := cloneMap(data)
	for v := from + 1; v <= s.version; v++ {
		fn, ok := s.migrations[v]
		if !ok {
			s.logger.Warn("no migration registered for version step",
				"key", s.key, "version", v)
			continue
		}
		current = fn(current)
	}
	return current
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
