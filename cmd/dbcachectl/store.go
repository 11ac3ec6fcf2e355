package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/dbcache"
	zaplog "github.com/unkn0wn-root/dbcache/log/zap"
	pr "github.com/unkn0wn-root/dbcache/provider"
	"github.com/unkn0wn-root/dbcache/provider/pebble"
	"github.com/unkn0wn-root/dbcache/provider/postgres"
	"github.com/unkn0wn-root/dbcache/provider/redis"
	"github.com/unkn0wn-root/dbcache/provider/sqlite"
)

// session is one opened store plus a cache over it. close releases everything it opened.
type session struct {
	store  pr.Provider
	admin  pr.Admin
	cache  *dbcache.Cache
	events *events
	log    *zap.Logger
	close  func() error
}

// events tallies what the cache reports while the command runs.
type events struct {
	dbcache.NopHooks
	swept int64
}

func (e *events) ExpiredSwept(n int64) { e.swept += n }

type adminProvider interface {
	pr.Provider
	pr.Admin
}

func openStore(ctx context.Context, cctx *cli.Context) (adminProvider, func() error, error) {
	table := cctx.String("table")
	switch backend := cctx.String("backend"); backend {
	case "sqlite":
		path := cctx.String("sqlite-path")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		p, err := sqlite.New(sqlite.Config{DB: db, Table: table, CloseDB: true})
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return p, p.Close, nil

	case "postgres":
		dsn := cctx.String("db-url")
		if dsn == "" {
			return nil, nil, fmt.Errorf("postgres backend requires --db-url")
		}
		pool, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		p, err := postgres.New(postgres.Config{DB: pool, Table: table})
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return p, func() error { pool.Close(); return nil }, nil

	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cctx.String("redis-addr")})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		p, err := redis.New(redis.Config{Client: rdb, Namespace: table, CloseClient: true})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return p, func() error { return p.Close(ctx) }, nil

	case "pebble":
		db, err := pebble.Open(cctx.String("pebble-dir"))
		if err != nil {
			return nil, nil, err
		}
		p, err := pebble.New(pebble.Config{DB: db, Namespace: table, CloseDB: true})
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return p, p.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func newLogger(cctx *cli.Context) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if cctx.Bool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// openSession opens the store and builds a cache over it. The cache is made ready
// unless the command only needs the admin surface.
func openSession(cctx *cli.Context, ready bool) (*session, error) {
	ctx := cctx.Context
	logger, err := newLogger(cctx)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := openStore(ctx, cctx)
	if err != nil {
		return nil, err
	}

	tenant := cctx.String("tenant")
	ev := &events{}
	cache, err := dbcache.New(store, dbcache.Options{
		Logger:        zaplog.New(logger),
		Hooks:         ev,
		MultiTenant:   tenant != "",
		TenantID:      tenant,
		GlobalGroups:  cctx.StringSlice("global-group"),
		SchemaVersion: cctx.Int("schema-version"),
	})
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	s := &session{
		store:  store,
		admin:  store,
		cache:  cache,
		events: ev,
		log:    logger,
		close: func() error {
			_ = logger.Sync()
			return closeStore()
		},
	}
	if !ready {
		return s, nil
	}
	ok, err := cache.AttemptReady(ctx)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	if !ok {
		_ = s.close()
		return nil, fmt.Errorf("store schema is not ready")
	}
	return s, nil
}

// withSession runs fn against a ready cache and closes the session afterwards.
func withSession(ready bool, fn func(cctx *cli.Context, s *session) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		s, err := openSession(cctx, ready)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(cctx, s)
	}
}
