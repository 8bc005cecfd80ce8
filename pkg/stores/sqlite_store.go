package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/provisio/provisio/pkg/resolver"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateResolution records a new resolution run
func (s *SQLiteStore) CreateResolution(ctx context.Context, res *Resolution) error {
	query := `
		INSERT INTO resolutions (
			id, root, requested, status, features_resolved, directives, warnings,
			error, started_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		res.ID,
		res.Root,
		res.Requested,
		res.Status,
		res.FeaturesResolved,
		res.Directives,
		res.Warnings,
		res.Error,
		res.StartedAt,
		res.CompletedAt,
		res.CreatedAt,
		res.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create resolution: %w", err)
	}

	return nil
}

// GetResolution retrieves a resolution by ID
func (s *SQLiteStore) GetResolution(ctx context.Context, id string) (*Resolution, error) {
	query := `
		SELECT id, root, requested, status, features_resolved, directives, warnings,
			   error, started_at, completed_at, created_at, updated_at
		FROM resolutions
		WHERE id = ?
	`

	res := &Resolution{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&res.ID,
		&res.Root,
		&res.Requested,
		&res.Status,
		&res.FeaturesResolved,
		&res.Directives,
		&res.Warnings,
		&res.Error,
		&res.StartedAt,
		&res.CompletedAt,
		&res.CreatedAt,
		&res.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resolution not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution: %w", err)
	}

	return res, nil
}

// UpdateResolutionStatus updates the status of a resolution
func (s *SQLiteStore) UpdateResolutionStatus(ctx context.Context, id string, status ResolutionStatus, errMsg *string) error {
	query := `
		UPDATE resolutions
		SET status = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now()
	var completedAt *time.Time
	if status == ResolutionStatusCompleted || status == ResolutionStatusFailed {
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, now, id)
	if err != nil {
		return fmt.Errorf("failed to update resolution status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("resolution not found: %s", id)
	}

	return nil
}

// ListResolutions lists resolutions with pagination
func (s *SQLiteStore) ListResolutions(ctx context.Context, limit, offset int) ([]*Resolution, error) {
	query := `
		SELECT id, root, requested, status, features_resolved, directives, warnings,
			   error, started_at, completed_at, created_at, updated_at
		FROM resolutions
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	defer rows.Close()

	resolutions := []*Resolution{}
	for rows.Next() {
		res := &Resolution{}
		err := rows.Scan(
			&res.ID,
			&res.Root,
			&res.Requested,
			&res.Status,
			&res.FeaturesResolved,
			&res.Directives,
			&res.Warnings,
			&res.Error,
			&res.StartedAt,
			&res.CompletedAt,
			&res.CreatedAt,
			&res.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		resolutions = append(resolutions, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolutions: %w", err)
	}

	return resolutions, nil
}

// DeleteResolution deletes a resolution by ID
func (s *SQLiteStore) DeleteResolution(ctx context.Context, id string) error {
	query := `DELETE FROM resolutions WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete resolution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("resolution not found: %s", id)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// RecordResult persists a finished resolver result as a completed
// resolution record.
func RecordResult(ctx context.Context, store Store, result *resolver.Result) error {
	requested, err := json.Marshal(result.Requested)
	if err != nil {
		return fmt.Errorf("failed to encode requested features: %w", err)
	}
	directives, err := json.Marshal(result.Directives)
	if err != nil {
		return fmt.Errorf("failed to encode directives: %w", err)
	}
	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	now := time.Now()
	completed := result.StartedAt.Add(result.Duration)
	return store.CreateResolution(ctx, &Resolution{
		ID:               result.RunID,
		Root:             result.Root,
		Requested:        string(requested),
		Status:           ResolutionStatusCompleted,
		FeaturesResolved: result.FeaturesResolved,
		Directives:       string(directives),
		Warnings:         string(warnings),
		StartedAt:        result.StartedAt,
		CompletedAt:      &completed,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}
