// Package postgres stores cache rows in a PostgreSQL table through jackc/pgx/v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	pr "github.com/unkn0wn-root/dbcache/provider"
)

var (
	ErrNilDB        = errors.New("postgres provider: nil db")
	ErrInvalidTable = errors.New("postgres provider: invalid table name")

	tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// DB is the subset of *pgxpool.Pool (and *pgx.Conn) the provider needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	db    DB
	table string
	meta  string
}

var (
	_ pr.Provider = (*Postgres)(nil)
	_ pr.Admin    = (*Postgres)(nil)
	_ DB          = (*pgxpool.Pool)(nil)
)

type Config struct {
	DB    DB
	Table string // default provider.DefaultTable
}

func New(cfg Config) (*Postgres, error) {
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
	return &Postgres{db: cfg.DB, table: table, meta: table + "_meta"}, nil
}

// Connect opens a pgx pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context, version int) (bool, error) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ` + p.table + ` (
			cache_group TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			data BYTEA NOT NULL,
			expires_at BIGINT DEFAULT NULL,
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
		if _, err := p.db.Exec(ctx, q); err != nil {
			return false, fmt.Errorf("migrate: %w", err)
		}
	}

	_, err := p.db.Exec(ctx,
		`INSERT INTO `+p.meta+` (name, value) VALUES ('schema_version', $1)
		 ON CONFLICT (name) DO UPDATE SET value = GREATEST(`+p.meta+`.value, EXCLUDED.value)`,
		version)
	if err != nil {
		return false, fmt.Errorf("record schema version: %w", err)
	}
	return true, nil
}

func (p *Postgres) SelectOne(ctx context.Context, group, key string) (pr.Row, bool, error) {
	var (
		data []byte
		exp  *int64
	)
	err := p.db.QueryRow(ctx,
		`SELECT data, expires_at FROM `+p.table+` WHERE cache_group = $1 AND cache_key = $2 LIMIT 1`,
		group, key).Scan(&data, &exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return pr.Row{}, false, nil
	}
	if err != nil {
		return pr.Row{}, false, fmt.Errorf("select row: %w", err)
	}
	row := pr.Row{Data: data}
	if exp != nil {
		row.ExpiresAt = time.Unix(0, *exp)
	}
	return row, true, nil
}

func (p *Postgres) Insert(ctx context.Context, e pr.Entry) error {
	var exp *int64
	if !e.ExpiresAt.IsZero() {
		t := e.ExpiresAt
		if t.After(pr.MaxExpiry) {
			t = pr.MaxExpiry
		}
		n := t.UnixNano()
		exp = &n
	}
	_, err := p.db.Exec(ctx,
		`INSERT INTO `+p.table+` (cache_group, cache_key, data, expires_at, size, ttl_label)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cache_group, cache_key) DO UPDATE SET
			data = EXCLUDED.data,
			expires_at = EXCLUDED.expires_at,
			size = EXCLUDED.size,
			ttl_label = EXCLUDED.ttl_label`,
		e.Group, e.Key, e.Data, exp, e.Size, e.TTLLabel)
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateData(ctx context.Context, group, key string, data []byte) error {
	_, err := p.db.Exec(ctx,
		`UPDATE `+p.table+` SET data = $1 WHERE cache_group = $2 AND cache_key = $3`,
		data, group, key)
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteRow(ctx context.Context, group, key string) error {
	_, err := p.db.Exec(ctx,
		`DELETE FROM `+p.table+` WHERE cache_group = $1 AND cache_key = $2`, group, key)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM `+p.table+` WHERE expires_at IS NOT NULL AND expires_at < $1`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Truncate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, `TRUNCATE TABLE `+p.table); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

func (p *Postgres) ResetSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM `+p.meta+` WHERE name = 'schema_version'`); err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}
	return nil
}

func (p *Postgres) DropTable(ctx context.Context) error {
	for _, t := range []string{p.table, p.meta} {
		if _, err := p.db.Exec(ctx, `DROP TABLE IF EXISTS `+t); err != nil {
			return fmt.Errorf("drop %s: %w", strconv.Quote(t), err)
		}
	}
	return nil
}
