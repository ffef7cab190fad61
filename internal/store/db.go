package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DefaultTimeout bounds every store call when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Options configures how the store connects.
type Options struct {
	Driver  string
	DSN     string // file path for sqlite3, connection URL for pgx
	Timeout time.Duration
}

// DB wraps the relational store that holds conversations, participants and
// messages, plus read access to profiles, user settings and connections.
type DB struct {
	*sql.DB
	driver  string
	sb      sq.StatementBuilderType
	timeout time.Duration
}

// Open connects to the configured database and verifies the connection.
// SQLite connections use WAL mode with foreign keys enforced.
func Open(opts Options) (*DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		dsn         string
		placeholder sq.PlaceholderFormat
	)
	switch driver {
	case DriverSQLite:
		dsn = opts.DSN + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
		placeholder = sq.Question
	case DriverPostgres:
		dsn = opts.DSN
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{
		DB:      db,
		driver:  driver,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
		timeout: timeout,
	}, nil
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// bounded derives the per-call context so no store call can block forever.
func (db *DB) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.timeout)
}

// inTx runs fn inside a transaction, committing only when fn succeeds.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translate(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translate(err))
	}
	return nil
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execStmt(ctx context.Context, r runner, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	res, err := r.ExecContext(ctx, query, args...)
	return res, translate(err)
}

func queryStmt(ctx context.Context, r runner, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.QueryContext(ctx, query, args...)
	return rows, translate(err)
}

func scanStmt(ctx context.Context, r runner, b sq.Sqlizer, dest ...any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return translate(r.QueryRowContext(ctx, query, args...).Scan(dest...))
}

// affected reports whether a write touched at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
