package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database reads the profile and share-link tables of the web front end.
type Database struct {
	db        *sql.DB
	dbPath    string
	nicknames *nicknameCache
}

// Options tunes the nickname cache.
type Options struct {
	NicknameCacheSize int
	NicknameCacheTTL  time.Duration
}

// New opens the SQLite database at dbPath, creating the tables it reads
// when they do not exist yet.
func New(ctx context.Context, dbPath string, opts Options) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors while the web
	// front end writes to the same file.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:        db,
		dbPath:    dbPath,
		nicknames: newNicknameCache(opts.NicknameCacheSize, opts.NicknameCacheTTL),
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profile_profile (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user TEXT NOT NULL UNIQUE,
		nickname TEXT NOT NULL DEFAULT '',
		intro TEXT NOT NULL DEFAULT '',
		lang_code TEXT,
		login_id TEXT,
		contact_email TEXT
	);

	CREATE TABLE IF NOT EXISTS share_fileshare (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		repo_id TEXT NOT NULL,
		path TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		ctime INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		view_cnt INTEGER NOT NULL DEFAULT 0,
		s_type TEXT NOT NULL DEFAULT 'f',
		password TEXT,
		expire_date INTEGER,
		permission TEXT NOT NULL DEFAULT 'view_download'
	);

	CREATE INDEX IF NOT EXISTS idx_share_fileshare_repo ON share_fileshare(repo_id);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping reports whether the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		p := dbPath + suffix
		if info, err := os.Stat(p); err == nil && info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause lock failures", p, info.Mode())
		}
	}

	return nil
}
