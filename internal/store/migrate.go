// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// Register the pure-Go sqlite database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// prefixPlaceholder is replaced with the configured table prefix in every migration.
const prefixPlaceholder = "{{prefix}}"

// migrateIface abstracts golang-migrate for testing. The real golang-migrate
// library requires a database connection, making unit tests slow and brittle.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator wraps golang-migrate for database schema management.
type Migrator struct {
	m   migrateIface
	dir string
}

// NewMigrator creates a Migrator for driver.
//
// For DriverPostgres, databaseURL is a postgres:// or pgx5:// URL; postgres://
// is converted to pgx5:// for golang-migrate. For DriverSQLite it is a
// sqlite:// URL (see SQLiteURL). A non-empty prefix is applied to every table
// and to the migrations bookkeeping table.
func NewMigrator(driver Driver, databaseURL, prefix string) (*Migrator, error) {
	dir, err := migrationDir(driver)
	if err != nil {
		return nil, err
	}

	fsys, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}
	src := &prefixedSource{Driver: fsys, prefix: prefix}

	migrateURL := migrationURL(driver, databaseURL, prefix)

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL)
	if err != nil {
		_ = src.Close() //nolint:errcheck // cleanup for embedded FS; init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").
			With("operation", "initialize migrator").
			With("driver", string(driver)).
			Wrap(err)
	}

	return &Migrator{m: m, dir: dir}, nil
}

func migrationDir(driver Driver) (string, error) {
	switch driver {
	case DriverPostgres:
		return "migrations/postgres", nil
	case DriverSQLite:
		return "migrations/sqlite", nil
	default:
		return "", oops.Code("MIGRATION_UNKNOWN_DRIVER").
			With("driver", string(driver)).
			Errorf("unknown storage driver %q", driver)
	}
}

func migrationURL(driver Driver, databaseURL, prefix string) string {
	u := databaseURL
	if driver == DriverPostgres {
		if rest, found := strings.CutPrefix(u, "postgres://"); found {
			u = "pgx5://" + rest
		} else if rest, found := strings.CutPrefix(u, "postgresql://"); found {
			u = "pgx5://" + rest
		}
	}
	if prefix == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "x-migrations-table=" + prefix + "schema_migrations"
}

// prefixedSource rewrites the table prefix placeholder as migrations are read.
type prefixedSource struct {
	source.Driver
	prefix string
}

func (s *prefixedSource) ReadUp(version uint) (io.ReadCloser, string, error) {
	r, identifier, err := s.Driver.ReadUp(version)
	if err != nil {
		return nil, identifier, err //nolint:wrapcheck // golang-migrate inspects os.ErrNotExist
	}
	return s.rewrite(r, identifier)
}

func (s *prefixedSource) ReadDown(version uint) (io.ReadCloser, string, error) {
	r, identifier, err := s.Driver.ReadDown(version)
	if err != nil {
		return nil, identifier, err //nolint:wrapcheck // golang-migrate inspects os.ErrNotExist
	}
	return s.rewrite(r, identifier)
}

func (s *prefixedSource) rewrite(r io.ReadCloser, identifier string) (io.ReadCloser, string, error) {
	defer r.Close() //nolint:errcheck // embedded FS reader
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, identifier, oops.Code("MIGRATION_READ_FAILED").With("migration", identifier).Wrap(err)
	}
	body = bytes.ReplaceAll(body, []byte(prefixPlaceholder), []byte(s.prefix))
	return io.NopCloser(bytes.NewReader(body)), identifier, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back all migrations to version 0, dropping every auth table.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations. Positive n migrates up, negative n migrates down.
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the current migration version and dirty state.
// Returns version 0 with dirty=false if no migrations have been applied.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Use only for recovering from a dirty state after manually fixing the database.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases resources.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil && dbErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	}
	if srcErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	}
	if dbErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// PendingMigrations returns the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	currentVersion, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	allVersions, err := migrationVersions(m.dir)
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	var pending []uint
	for _, v := range allVersions {
		if v > currentVersion {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// AppliedMigrations returns the versions already applied, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	currentVersion, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}
	if currentVersion == 0 {
		return nil, nil
	}

	allVersions, err := migrationVersions(m.dir)
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}

	var applied []uint
	for _, v := range allVersions {
		if v <= currentVersion {
			applied = append(applied, v)
		}
	}
	return applied, nil
}

// migrationVersions reads dir from the embedded FS and parses version numbers.
// Malformed file names are logged and skipped.
func migrationVersions(dir string) ([]uint, error) {
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").With("dir", dir).Wrap(err)
	}

	versionSet := make(map[uint]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(name, "%06d", &version); err != nil {
			slog.Warn("migration file name doesn't match expected format, skipping",
				"filename", name,
				"expected_format", "NNNNNN_name.up.sql",
				"error", err)
			continue
		}
		versionSet[version] = struct{}{}
	}

	versions := make([]uint, 0, len(versionSet))
	for v := range versionSet {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// MigrationName returns the name of a migration (NNNNNN_name) for driver and version,
// or "" when no such version exists.
func MigrationName(driver Driver, version uint) (string, error) {
	dir, err := migrationDir(driver)
	if err != nil {
		return "", err
	}
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return "", oops.Code("MIGRATION_READ_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	prefix := fmt.Sprintf("%06d_", version)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".up.sql") {
			return strings.TrimSuffix(name, ".up.sql"), nil
		}
	}
	return "", nil
}
