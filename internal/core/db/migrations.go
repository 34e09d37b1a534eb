package db

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/stagekeeper/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// migration represents a parsed migration file
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// migrationSource selects the embedded migration set for the connection's driver.
func migrationSource(db *sqlx.DB) (embed.FS, string, error) {
	switch db.DriverName() {
	case "sqlite3":
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case "postgres":
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	default:
		return embed.FS{}, "", fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}
}

// loadMigrations ensures the tracking table exists and parses the embedded files.
func loadMigrations(db *sqlx.DB) ([]migration, error) {
	fsys, dir, err := migrationSource(db)
	if err != nil {
		return nil, err
	}
	if err := createMigrationsTable(db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := parseMigrationFiles(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return migrations, nil
}

// MigrateUp runs all pending migrations against the database.
// Checksums of applied migrations are verified before anything new runs.
// It returns the ids of the migrations it applied.
func MigrateUp(db *sqlx.DB) ([]string, error) {
	migrations, err := loadMigrations(db)
	if err != nil {
		return nil, err
	}

	// A changed file that already ran means the schema no longer matches the source.
	if err := validateChecksums(db, migrations); err != nil {
		return nil, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	applied, err := getAppliedMigrations(db)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	var ran []string
	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}

		start := time.Now()

		// Statements and the bookkeeping row commit together.
		tx, err := db.Beginx()
		if err != nil {
			return ran, fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
		}

		if err := applyMigration(tx, m); err != nil {
			tx.Rollback()
			return ran, fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}

		if err := recordMigration(tx, m.ID, m.Checksum, time.Since(start)); err != nil {
			tx.Rollback()
			return ran, fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return ran, fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
		}
		ran = append(ran, m.ID)
	}

	return ran, nil
}

// MigrateStatus returns the status of all migrations (applied and pending).
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	migrations, err := loadMigrations(db)
	if err != nil {
		return nil, err
	}

	rows, err := db.Queryx("SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]MigrationStatus)
	for rows.Next() {
		var status MigrationStatus
		var appliedAt sql.NullString
		if err := rows.Scan(&status.ID, &status.Checksum, &appliedAt, &status.ExecutionMs); err != nil {
			return nil, err
		}
		// sqlite stores RFC3339 text; postgres returns a timestamp that scans as RFC3339Nano.
		if appliedAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, appliedAt.String); err == nil {
				status.AppliedAt = &ts
			}
		}
		status.Applied = true
		applied[status.ID] = status
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		if s, ok := applied[m.ID]; ok {
			statuses = append(statuses, s)
		} else {
			statuses = append(statuses, MigrationStatus{
				ID:       m.ID,
				Checksum: m.Checksum,
			})
		}
	}

	return statuses, nil
}

// RequireCurrent returns an error naming the first pending migration, if any.
func RequireCurrent(db *sqlx.DB) error {
	statuses, err := MigrateStatus(db)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'stagekeeper migrate' first", s.ID)
		}
	}
	return nil
}

// parseMigrationFiles extracts ordered list of migrations from embed.FS
func parseMigrationFiles(fsys embed.FS, dir string) ([]migration, error) {
	var migrations []migration

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		content, err := fsys.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		migrations = append(migrations, migration{
			ID:       filepath.Base(path),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
			SQL:      string(content),
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})

	return migrations, nil
}

// createMigrationsTable ensures migrations tracking table exists.
// Must match the migrations table in 001_initial_schema.sql.
func createMigrationsTable(db *sqlx.DB) error {
	var createSQL string

	if db.DriverName() == "sqlite3" {
		createSQL = `
			CREATE TABLE IF NOT EXISTS migrations (
				migration_id TEXT PRIMARY KEY,
				checksum TEXT NOT NULL,
				applied_at TEXT NOT NULL,
				execution_ms INTEGER NOT NULL,
				CHECK (applied_at LIKE '____-__-__T__:__:__Z')
			)
		`
	} else {
		createSQL = `
			CREATE TABLE IF NOT EXISTS migrations (
				migration_id TEXT PRIMARY KEY,
				checksum TEXT NOT NULL,
				applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
				execution_ms INTEGER NOT NULL
			)
		`
	}

	_, err := db.Exec(createSQL)
	return err
}

// getAppliedMigrations returns a set of applied migration IDs
func getAppliedMigrations(db *sqlx.DB) (map[string]bool, error) {
	var ids []string
	if err := db.Select(&ids, "SELECT migration_id FROM migrations"); err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	return applied, nil
}

// validateChecksums verifies all applied migrations match embedded checksums
func validateChecksums(db *sqlx.DB, migrations []migration) error {
	var recorded []struct {
		ID       string `db:"migration_id"`
		Checksum string `db:"checksum"`
	}
	if err := db.Select(&recorded, "SELECT migration_id, checksum FROM migrations"); err != nil {
		return err
	}

	checksumMap := make(map[string]string, len(migrations))
	for _, m := range migrations {
		checksumMap[m.ID] = m.Checksum
	}

	for _, r := range recorded {
		expected, ok := checksumMap[r.ID]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", r.ID)
		}
		if r.Checksum != expected {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", r.ID, expected, r.Checksum)
		}
	}

	return nil
}

// splitStatements splits a migration into statements, dropping comment lines.
// lib/pq does not accept several statements in one Exec.
func splitStatements(sqlText string) []string {
	var lines []string
	for _, line := range strings.Split(sqlText, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// applyMigration executes a single migration within a transaction
func applyMigration(tx *sqlx.Tx, m migration) error {
	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}

// recordMigration stores migration metadata within the migration's transaction
func recordMigration(tx *sqlx.Tx, id, checksum string, duration time.Duration) error {
	now := time.Now().UTC()
	var appliedAt any = now
	if tx.DriverName() == "sqlite3" {
		appliedAt = now.Format(time.RFC3339)
	}

	_, err := tx.Exec(
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		id, checksum, appliedAt, duration.Milliseconds(),
	)
	return err
}
