package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
)

const (
	// LatestMigrationVersion is the newest schema version this binary
	// knows. Databases at a higher version are refused.
	//
	// NOTE: This MUST be updated when a new migration is added.
	LatestMigrationVersion uint = 2
)

// MigrationTarget moves a migrate instance to some version. currentDBVersion
// is -1 for a database that was never migrated.
type MigrationTarget func(mig *migrate.Migrate, currentDBVersion int,
	maxMigrationVersion uint) error

var (
	// TargetLatest migrates all the way up.
	TargetLatest = func(mig *migrate.Migrate, _ int, _ uint) error {
		return mig.Up()
	}

	// TargetVersion migrates up or down to an exact version.
	TargetVersion = func(version uint) MigrationTarget {
		return func(mig *migrate.Migrate, _ int, _ uint) error {
			return mig.Migrate(version)
		}
	}
)

var (
	// ErrMigrationDowngrade is returned when the database schema is newer
	// than this binary.
	ErrMigrationDowngrade = errors.New("database downgrade detected")

	// ErrDirtySchema is returned when an earlier migration stopped half
	// way.
	ErrDirtySchema = errors.New("database schema is dirty")
)

type migrateOptions struct {
	latestVersion uint

	// backup takes a VACUUM INTO copy of the database before pending
	// migrations run.
	backup bool
}

func defaultMigrateOptions() *migrateOptions {
	return &migrateOptions{
		latestVersion: LatestMigrationVersion,
	}
}

// MigrateOpt modifies how migrations are applied.
type MigrateOpt func(*migrateOptions)

// WithLatestVersion overrides the newest version the downgrade guard
// accepts.
func WithLatestVersion(version uint) MigrateOpt {
	return func(o *migrateOptions) {
		o.latestVersion = version
	}
}

// WithBackup copies the database file aside before pending migrations run.
func WithBackup() MigrateOpt {
	return func(o *migrateOptions) {
		o.backup = true
	}
}

// MigrateSQLite applies the embedded migrations to an open SQLite database
// using golang-migrate's sqlite3 driver.
func MigrateSQLite(db *sql.DB, dbPath string, target MigrationTarget,
	log *slog.Logger, opts ...MigrateOpt) error {

	o := defaultMigrateOptions()
	for _, opt := range opts {
		opt(o)
	}

	driver, err := sqlite_migrate.WithInstance(
		db, &sqlite_migrate.Config{},
	)
	if err != nil {
		return fmt.Errorf("unable to create migration driver: %w", err)
	}

	if o.backup {
		current, _, err := driver.Version()
		if err != nil {
			return fmt.Errorf("unable to get db version: %w", err)
		}

		// A fresh database has nothing worth copying.
		if current > 0 && uint(current) < o.latestVersion {
			err := backupSqliteDatabase(db, dbPath, log)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
		}
	}

	return applyMigrations(
		sqlSchemas, driver, "migrations", "sqlite3", target, o, log,
	)
}

// SchemaVersion reports the migration version recorded in the database,
// -1 when none was ever applied.
func SchemaVersion(db *sql.DB) (int, bool, error) {
	driver, err := sqlite_migrate.WithInstance(
		db, &sqlite_migrate.Config{},
	)
	if err != nil {
		return 0, false, err
	}

	return driver.Version()
}

// migrationLogger adapts slog to migrate.Logger.
type migrationLogger struct {
	log *slog.Logger
}

// Printf implements migrate.Logger.
func (m *migrationLogger) Printf(format string, v ...any) {
	format = strings.TrimRight(format, "\n")
	m.log.Info(fmt.Sprintf(format, v...))
}

// Verbose implements migrate.Logger.
func (m *migrationLogger) Verbose() bool {
	return true
}

// applyMigrations runs the migrations found at path inside fsys against the
// driver until the target is reached.
func applyMigrations(fsys fs.FS, driver database.Driver, path, dbName string,
	targetVersion MigrationTarget, opts *migrateOptions,
	log *slog.Logger) error {

	src, err := httpfs.New(http.FS(fsys), path)
	if err != nil {
		return err
	}

	sqlMigrate, err := migrate.NewWithInstance(
		"migrations", src, dbName, driver,
	)
	if err != nil {
		return err
	}

	migrationVersion, dirty, err := sqlMigrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine current migration "+
			"version: %w", err)
	}

	if dirty {
		return fmt.Errorf("%w: version %v needs manual repair",
			ErrDirtySchema, migrationVersion)
	}

	// Down migrations drop review history, so never run them implicitly.
	if migrationVersion > opts.latestVersion {
		return fmt.Errorf("%w: db_version=%v, "+
			"latest_migration_version=%v", ErrMigrationDowngrade,
			migrationVersion, opts.latestVersion)
	}

	currentDBVersion, _, err := driver.Version()
	if err != nil {
		return fmt.Errorf("unable to get current db version: %w", err)
	}
	log.InfoContext(
		context.Background(), "Applying schema migrations",
		"current_db_version", currentDBVersion,
		"latest_migration_version", opts.latestVersion,
	)

	sqlMigrate.Log = &migrationLogger{log}

	err = targetVersion(sqlMigrate, currentDBVersion, opts.latestVersion)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	currentDBVersion, _, err = driver.Version()
	if err != nil {
		return fmt.Errorf("unable to get current db version: %w", err)
	}
	log.InfoContext(
		context.Background(), "Schema up to date",
		"current_db_version", currentDBVersion,
	)

	return nil
}

// backupSqliteDatabase writes a consistent copy of srcDB next to the
// database file.
func backupSqliteDatabase(srcDB *sql.DB, dbFullFilePath string,
	log *slog.Logger) error {

	if srcDB == nil {
		return fmt.Errorf("backup source database is nil")
	}

	backupPath := fmt.Sprintf(
		"%s.%d.backup", dbFullFilePath, time.Now().UnixNano(),
	)

	log.InfoContext(context.Background(), "Backing up database",
		"source", dbFullFilePath,
		"backup", backupPath,
	)

	_, err := srcDB.Exec("VACUUM INTO ?", backupPath)

	return err
}
