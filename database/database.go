package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/angas/gasquota/dates"
	sqlite "modernc.org/sqlite"
)

// Database is the household's reading and calculation store. It keeps separate
// pools for reads and writes on the same SQLite file.
type Database struct {
	logger *slog.Logger
	read   *sql.DB
	write  *sql.DB
	path   string
}

const initSQL = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = MEMORY;
	PRAGMA busy_timeout = 5000;
	PRAGMA automatic_index = true;
	PRAGMA foreign_keys = ON;
	PRAGMA analysis_limit = 1000;
	PRAGMA trusted_schema = OFF;
`

const (
	maxReaders = 10
	// SQLite allows one writer at a time, a single connection serializes them
	maxWriters = 1
)

var registerHook sync.Once

// New opens the store at path and brings its schema up to date.
func New(ctx context.Context, path string) (*Database, error) {
	registerHook.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			_, err := conn.ExecContext(context.Background(), initSQL, nil)
			return err
		})
	})

	read, err := openPool(path, maxReaders)
	if err != nil {
		return nil, fmt.Errorf("open read pool: %w", err)
	}
	write, err := openPool(path, maxWriters)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("open write pool: %w", err)
	}

	d := &Database{
		logger: slog.Default().With(slog.String("module", "database")),
		read:   read,
		write:  write,
		path:   path,
	}

	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	return d, nil
}

func openPool(path string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetConnMaxIdleTime(time.Minute)
	return db, nil
}

func (d *Database) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

func (d *Database) Close() {
	d.read.Close()
	d.write.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.read.PingContext(ctx)
}

func scanDate(s string) (dates.Date, error) {
	d, err := dates.Parse(s)
	if err != nil {
		return dates.Date{}, fmt.Errorf("scanning date column: %w", err)
	}
	return d, nil
}

func scanTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("scanning timestamp column: %w", err)
	}
	return t, nil
}
