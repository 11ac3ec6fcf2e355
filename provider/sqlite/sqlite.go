// Package sqlite stores cache rows in a SQLite table through database/sql and mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"

	pr "github.com/unkn0wn-root/dbcache/provider"
)

var (
	ErrNilDB        = errors.New("sqlite provider: nil db")
	ErrInvalidTable = errors.New("sqlite provider: invalid table name")

	tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type SQLite struct {
	db      *sql.DB
	table   string
	meta    string
	closeDB bool
}

var (
	_ pr.Provider = (*SQLite)(nil)
	_ pr.Admin    = (*SQLite)(nil)
)

type Config struct {
	DB      *sql.DB
	Table   string // default provider.DefaultTable
	CloseDB bool   // set true only if this provider exclusively owns the handle
}

func New(cfg Config) (*SQLite, error) {
	if cfg.DB == nil {
		return nil, ErrNilDB
	}
	table := cfg.Table
	if table == "" {
		table = pr.DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &SQLite{db: cfg.DB, table: table, meta: table + "_meta", closeDB: cfg.CloseDB}, nil
}

// Open opens (creating if needed) a SQLite database file and verifies the connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (p *SQLite) EnsureSchema(ctx context.Context, version int) (bool, error) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ` + p.table + ` (
			cache_group TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			data BLOB NOT NULL,
			expires_at INTEGER DEFAULT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			ttl_label TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (cache_group, cache_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + p.table + `_expires_at ON ` + p.table + `(expires_at)`,
		`CREATE TABLE IF NOT EXISTS ` + p.meta + ` (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return false, fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	var current int
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM `+p.meta+` WHERE name = 'schema_version'`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to read schema version: %w", err)
	}
	if current >= version {
		return true, nil
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+p.meta+` (name, value) VALUES ('schema_version', ?)`, version)
	if err != nil {
		return false, fmt.Errorf("failed to record schema version: %w", err)
	}
	return true, nil
}

func (p *SQLite) SelectOne(ctx context.Context, group, key string) (pr.Row, bool, error) {
	var (
		data []byte
		exp  sql.NullInt64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM `+p.table+` WHERE cache_group = ? AND cache_key = ? LIMIT 1`,
		group, key).Scan(&data, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return pr.Row{}, false, nil
	}
	if err != nil {
		return pr.Row{}, false, fmt.Errorf("failed to select row: %w", err)
	}
	row := pr.Row{Data: data}
	if exp.Valid {
		row.ExpiresAt = time.Unix(0, exp.Int64)
	}
	return row, true, nil
}

func (p *SQLite) Insert(ctx context.Context, e pr.Entry) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+p.table+` (cache_group, cache_key, data, expires_at, size, ttl_label)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Group, e.Key, e.Data, nullTime(e.ExpiresAt), e.Size, e.TTLLabel)
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

func (p *SQLite) UpdateData(ctx context.Context, group, key string, data []byte) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE `+p.table+` SET data = ? WHERE cache_group = ? AND cache_key = ?`,
		data, group, key)
	if err != nil {
		return fmt.Errorf("failed to update row: %w", err)
	}
	return nil
}

func (p *SQLite) DeleteRow(ctx context.Context, group, key string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM `+p.table+` WHERE cache_group = ? AND cache_key = ?`, group, key)
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	return nil
}

func (p *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM `+p.table+` WHERE expires_at IS NOT NULL AND expires_at < ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (p *SQLite) Truncate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM `+p.table); err != nil {
		return fmt.Errorf("failed to truncate table: %w", err)
	}
	return nil
}

func (p *SQLite) ResetSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM `+p.meta+` WHERE name = 'schema_version'`)
	if err != nil {
		return fmt.Errorf("failed to reset schema version: %w", err)
	}
	return nil
}

func (p *SQLite) DropTable(ctx context.Context) error {
	for _, t := range []string{p.table, p.meta} {
		if _, err := p.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+t); err != nil {
			return fmt.Errorf("failed to drop %s: %w", t, err)
		}
	}
	return nil
}

// Close releases the database handle only when this provider owns it.
func (p *SQLite) Close() error {
	if p.closeDB {
		return p.db.Close()
	}
	return nil
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	if t.After(pr.MaxExpiry) {
		t = pr.MaxExpiry
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
