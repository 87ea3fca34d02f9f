/*
Package sqlite provides a SQLite-backed store for year configurations and
calculation runs.

PURPOSE:
  The quota engine is pure: it takes a YearConfig and inputs and returns
  results. This package is the persistence around it:
  - year_configs:     one provisioned YearConfig per calendar year
  - calculation_runs: an audit trail of every calculation served

INTERFACES IMPLEMENTED:
  quota.Resolver:       Resolve(ctx, year) reads year_configs
  assessment.Recorder:  SaveRun(ctx, run) writes calculation_runs

YEAR CONFIGS:
  Stored as the factory's JSON document (config_json), like policy configs
  are stored as JSON: the document is the contract, the table is a cache of
  it keyed by year. Saving an existing year replaces the document and bumps
  its version.

CALCULATION RUNS:
  Append-only. Each run keeps the request and the result as JSON so a
  filing can be re-checked later against the exact numbers returned.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, as SQLite allows a single writer.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block.

USAGE:
  store, err := sqlite.New("./levy.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.SaveYearConfig(ctx, cfg)
  cfg, err := store.Resolve(ctx, 2025)

SEE ALSO:
  - quota/resolver.go: Resolver interface
  - factory/yearconfig.go: Document format stored in config_json
  - assessment/service.go: Writes calculation runs
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/levy-engine/factory"
	"github.com/warp/levy-engine/quota"
)

// Store implements the year-config and run stores using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.YearConfigFactory
}

var _ quota.Resolver = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would open its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, factory: factory.NewYearConfigFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Year configurations (one document per year)
	CREATE TABLE IF NOT EXISTS year_configs (
		year INTEGER PRIMARY KEY,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Calculation runs (append-only audit trail)
	CREATE TABLE IF NOT EXISTS calculation_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		year INTEGER NOT NULL,
		input_json TEXT NOT NULL,
		result_json TEXT,
		error TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_kind_created
		ON calculation_runs(kind, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_year
		ON calculation_runs(year);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// YEAR CONFIG STORE
// =============================================================================

// YearConfigRecord is a stored year document.
type YearConfigRecord struct {
	Year       int
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SaveYearConfig validates cfg and provisions (or replaces) its year.
func (s *Store) SaveYearConfig(ctx context.Context, cfg quota.YearConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	doc, err := factory.MarshalJSON(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO year_configs (year, config_json, version, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(year) DO UPDATE SET
			config_json = excluded.config_json,
			version = year_configs.version + 1,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, cfg.Year, doc, now, now); err != nil {
		return fmt.Errorf("failed to save year config %d: %w", cfg.Year, err)
	}
	return nil
}

// GetYearConfig returns the stored record for year, or nil if absent.
func (s *Store) GetYearConfig(ctx context.Context, year int) (*YearConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r YearConfigRecord
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT year, config_json, version, created_at, updated_at FROM year_configs WHERE year = ?",
		year,
	).Scan(&r.Year, &r.ConfigJSON, &r.Version, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

// ListYearConfigs returns every stored year, oldest first.
func (s *Store) ListYearConfigs(ctx context.Context) ([]YearConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT year, config_json, version, created_at, updated_at FROM year_configs ORDER BY year",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []YearConfigRecord
	for rows.Next() {
		var r YearConfigRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&r.Year, &r.ConfigJSON, &r.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteYearConfig removes a year. Deleting a missing year is an error
// matching quota.ErrConfigNotFound.
func (s *Store) DeleteYearConfig(ctx context.Context, year int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM year_configs WHERE year = ?", year)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.ConfigNotFoundError{Year: year}
	}
	return nil
}

// Resolve implements quota.Resolver.
func (s *Store) Resolve(ctx context.Context, year int) (quota.YearConfig, error) {
	rec, err := s.GetYearConfig(ctx, year)
	if err != nil {
		return quota.YearConfig{}, fmt.Errorf("failed to load year config %d: %w", year, err)
	}
	if rec == nil {
		return quota.YearConfig{}, &quota.ConfigNotFoundError{Year: year}
	}
	cfg, err := s.factory.ParseJSON([]byte(rec.ConfigJSON))
	if err != nil {
		return quota.YearConfig{}, fmt.Errorf("stored year config %d is corrupt: %w", year, err)
	}
	return cfg, nil
}

// SeedYearConfigs saves every config whose year is not yet provisioned.
// Existing years are left untouched. Returns the years that were added.
func (s *Store) SeedYearConfigs(ctx context.Context, configs []quota.YearConfig) ([]int, error) {
	var added []int
	for _, cfg := range configs {
		existing, err := s.GetYearConfig(ctx, cfg.Year)
		if err != nil {
			return added, err
		}
		if existing != nil {
			continue
		}
		if err := s.SaveYearConfig(ctx, cfg); err != nil {
			return added, err
		}
		added = append(added, cfg.Year)
	}
	return added, nil
}

// =============================================================================
// CALCULATION RUN STORE
// =============================================================================

// RunKind identifies which engine operation a run recorded.
type RunKind string

const (
	RunLevy       RunKind = "levy"
	RunAnnualLevy RunKind = "annual_levy"
	RunReduction  RunKind = "reduction"
	RunIncentive  RunKind = "incentive"
	RunAssessment RunKind = "assessment"
)

// runTimeLayout is fixed width so created_at sorts as text.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is one recorded calculation.
type RunRecord struct {
	ID         string
	Kind       RunKind
	Year       int
	InputJSON  string
	ResultJSON string
	Error      string
	CreatedAt  time.Time
}

// SaveRun appends a calculation run.
func (s *Store) SaveRun(ctx context.Context, r RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO calculation_runs (id, kind, year, input_json, result_json, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, string(r.Kind), r.Year, r.InputJSON,
		nullString(r.ResultJSON), nullString(r.Error),
		r.CreatedAt.UTC().Format(runTimeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("run %s already recorded: %w", r.ID, err)
		}
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun returns a run by ID, or nil if absent.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	runs, err := s.queryRuns(ctx, `
		SELECT id, kind, year, input_json, result_json, error, created_at
		FROM calculation_runs WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListRuns returns the most recent runs, newest first. An empty kind lists
// every kind; limit <= 0 means 100.
func (s *Store) ListRuns(ctx context.Context, kind RunKind, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if kind != "" {
		return s.queryRuns(ctx, `
			SELECT id, kind, year, input_json, result_json, error, created_at
			FROM calculation_runs
			WHERE kind = ?
			ORDER BY created_at DESC
			LIMIT ?
		`, string(kind), limit)
	}
	return s.queryRuns(ctx, `
		SELECT id, kind, year, input_json, result_json, error, created_at
		FROM calculation_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var kind, createdAt string
		var result, runErr sql.NullString
		if err := rows.Scan(&r.ID, &kind, &r.Year, &r.InputJSON, &result, &runErr, &createdAt); err != nil {
			return nil, err
		}
		r.Kind = RunKind(kind)
		r.ResultJSON = result.String
		r.Error = runErr.String
		r.CreatedAt, _ = time.Parse(runTimeLayout, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"calculation_runs", "year_configs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
