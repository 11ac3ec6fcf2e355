// Package redis stores cache rows in Redis through redis/go-redis/v9.
//
// Each row is a single string key holding a wire-framed row. Rows with an expiry are
// also indexed in a sorted set scored by their expiry (unix micros, exact in a float64)
// so DeleteExpired is one range query.
// Redis-level TTLs are never set: expiry is swept explicitly, like the relational stores.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/dbcache/internal/wire"
	pr "github.com/unkn0wn-root/dbcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

const scanBatch = 512

type Redis struct {
	rdb         goredis.UniversalClient
	ns          string
	closeClient bool
}

var (
	_ pr.Provider = (*Redis)(nil)
	_ pr.Admin    = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	Namespace   string // key namespace; default provider.DefaultTable
	CloseClient bool   // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = pr.DefaultTable
	}
	return &Redis{rdb: cfg.Client, ns: ns, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) expiryKey() string { return p.ns + ":expiry" }

func (p *Redis) EnsureSchema(ctx context.Context, version int) (bool, error) {
	b, err := p.rdb.Get(ctx, wire.SchemaKey(p.ns)).Bytes()
	if err != nil && err != goredis.Nil {
		return false, err
	}
	if err == nil {
		if current, derr := wire.DecodeSchema(b); derr == nil && current >= version {
			return true, nil
		}
	}
	if err := p.rdb.Set(ctx, wire.SchemaKey(p.ns), wire.EncodeSchema(version), 0).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) SelectOne(ctx context.Context, group, key string) (pr.Row, bool, error) {
	k := wire.RowKey(p.ns, group, key)
	b, err := p.rdb.Get(ctx, k).Bytes()
	if err == goredis.Nil {
		return pr.Row{}, false, nil // miss
	}
	if err != nil {
		return pr.Row{}, false, err // transport/server error
	}
	r, err := wire.DecodeRow(b)
	if err != nil {
		// self-heal: a foreign or truncated value under our keyspace is a miss
		_ = p.del(ctx, k)
		return pr.Row{}, false, nil
	}
	return pr.Row{Data: r.Payload, ExpiresAt: r.ExpiresAt}, true, nil
}

func (p *Redis) Insert(ctx context.Context, e pr.Entry) error {
	b, err := wire.EncodeRow(wire.Row{
		ExpiresAt: e.ExpiresAt,
		Size:      uint32(e.Size),
		TTLLabel:  e.TTLLabel,
		Payload:   e.Data,
	})
	if err != nil {
		return err
	}
	k := wire.RowKey(p.ns, e.Group, e.Key)
	_, err = p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, k, b, 0)
		if e.ExpiresAt.IsZero() {
			pipe.ZRem(ctx, p.expiryKey(), k)
		} else {
			pipe.ZAdd(ctx, p.expiryKey(), goredis.Z{Score: float64(e.ExpiresAt.UnixMicro()), Member: k})
		}
		return nil
	})
	return err
}

func (p *Redis) UpdateData(ctx context.Context, group, key string, data []byte) error {
	k := wire.RowKey(p.ns, group, key)
	b, err := p.rdb.Get(ctx, k).Bytes()
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	r, err := wire.DecodeRow(b)
	if err != nil {
		return fmt.Errorf("redis provider: update %s: %w", k, err)
	}
	r.Payload = data
	nb, err := wire.EncodeRow(r)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, k, nb, 0).Err()
}

func (p *Redis) DeleteRow(ctx context.Context, group, key string) error {
	return p.del(ctx, wire.RowKey(p.ns, group, key))
}

func (p *Redis) del(ctx context.Context, keys ...string) error {
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, p.expiryKey(), members...)
		return nil
	})
	return err
}

func (p *Redis) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	keys, err := p.rdb.ZRangeByScore(ctx, p.expiryKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.UnixMicro(), 10), // strictly before now
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := p.del(ctx, keys...); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (p *Redis) Truncate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, wire.RowPrefix(p.ns)+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return p.rdb.Del(ctx, p.expiryKey()).Err()
}

func (p *Redis) ResetSchema(ctx context.Context) error {
	return p.rdb.Del(ctx, wire.SchemaKey(p.ns)).Err()
}

func (p *Redis) DropTable(ctx context.Context) error {
	if err := p.Truncate(ctx); err != nil {
		return err
	}
	return p.ResetSchema(ctx)
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
