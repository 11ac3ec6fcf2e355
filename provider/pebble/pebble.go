// Package pebble stores cache rows in an embedded cockroachdb/pebble database.
package pebble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/unkn0wn-root/dbcache/internal/wire"
	pr "github.com/unkn0wn-root/dbcache/provider"
)

var ErrNilDB = errors.New("pebble provider: nil db")

type Pebble struct {
	db      *pebble.DB
	ns      string
	closeDB bool
}

var (
	_ pr.Provider = (*Pebble)(nil)
	_ pr.Admin    = (*Pebble)(nil)
)

type Config struct {
	DB        *pebble.DB
	Namespace string // key namespace; default provider.DefaultTable
	CloseDB   bool   // set true only if this provider exclusively owns the db
}

func New(cfg Config) (*Pebble, error) {
	if cfg.DB == nil {
		return nil, ErrNilDB
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = pr.DefaultTable
	}
	return &Pebble{db: cfg.DB, ns: ns, closeDB: cfg.CloseDB}, nil
}

// Open opens (creating if needed) a pebble database at path.
func Open(path string) (*pebble.DB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return db, nil
}

func (p *Pebble) get(key []byte) ([]byte, bool, error) {
	v, closer, err := p.db.Get(key)
	if closer != nil {
		defer closer.Close()
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// v is only valid until closer is closed
	return append([]byte(nil), v...), true, nil
}

func (p *Pebble) EnsureSchema(_ context.Context, version int) (bool, error) {
	k := []byte(wire.SchemaKey(p.ns))
	b, ok, err := p.get(k)
	if err != nil {
		return false, fmt.Errorf("read schema version: %w", err)
	}
	if ok {
		if current, derr := wire.DecodeSchema(b); derr == nil && current >= version {
			return true, nil
		}
	}
	if err := p.db.Set(k, wire.EncodeSchema(version), pebble.Sync); err != nil {
		return false, fmt.Errorf("record schema version: %w", err)
	}
	return true, nil
}

func (p *Pebble) SelectOne(_ context.Context, group, key string) (pr.Row, bool, error) {
	k := []byte(wire.RowKey(p.ns, group, key))
	b, ok, err := p.get(k)
	if err != nil || !ok {
		return pr.Row{}, false, err
	}
	r, err := wire.DecodeRow(b)
	if err != nil {
		_ = p.db.Delete(k, pebble.Sync) // self-heal corrupt
		return pr.Row{}, false, nil
	}
	return pr.Row{Data: r.Payload, ExpiresAt: r.ExpiresAt}, true, nil
}

func (p *Pebble) Insert(_ context.Context, e pr.Entry) error {
	b, err := wire.EncodeRow(wire.Row{
		ExpiresAt: e.ExpiresAt,
		Size:      uint32(e.Size),
		TTLLabel:  e.TTLLabel,
		Payload:   e.Data,
	})
	if err != nil {
		return err
	}
	return p.db.Set([]byte(wire.RowKey(p.ns, e.Group, e.Key)), b, pebble.Sync)
}

func (p *Pebble) UpdateData(_ context.Context, group, key string, data []byte) error {
	k := []byte(wire.RowKey(p.ns, group, key))
	b, ok, err := p.get(k)
	if err != nil || !ok {
		return err
	}
	r, err := wire.DecodeRow(b)
	if err != nil {
		return fmt.Errorf("pebble provider: update %s: %w", k, err)
	}
	r.Payload = data
	nb, err := wire.EncodeRow(r)
	if err != nil {
		return err
	}
	return p.db.Set(k, nb, pebble.Sync)
}

func (p *Pebble) DeleteRow(_ context.Context, group, key string) error {
	return p.db.Delete([]byte(wire.RowKey(p.ns, group, key)), pebble.Sync)
}

func (p *Pebble) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	lower, upper := p.rowBounds()
	iter, err := p.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return 0, fmt.Errorf("expiry iter start: %w", err)
	}
	defer iter.Close()

	batch := p.db.NewBatch()
	defer batch.Close()

	var n int64
	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return 0, fmt.Errorf("expiry iter: %w", err)
		}
		expired, err := wire.Expired(value, now)
		if err != nil || !expired {
			continue
		}
		if err := batch.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			return 0, err
		}
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("expiry iter: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("expiry commit: %w", err)
	}
	return n, nil
}

func (p *Pebble) Truncate(_ context.Context) error {
	lower, upper := p.rowBounds()
	return p.db.DeleteRange(lower, upper, pebble.Sync)
}

func (p *Pebble) ResetSchema(_ context.Context) error {
	return p.db.Delete([]byte(wire.SchemaKey(p.ns)), pebble.Sync)
}

func (p *Pebble) DropTable(ctx context.Context) error {
	if err := p.Truncate(ctx); err != nil {
		return err
	}
	return p.ResetSchema(ctx)
}

// Close flushes and closes the database only when this provider owns it.
func (p *Pebble) Close() error {
	if !p.closeDB {
		return nil
	}
	if err := p.db.Flush(); err != nil {
		return err
	}
	return p.db.Close()
}

// rowBounds returns [lower, upper) covering every row key in the namespace.
func (p *Pebble) rowBounds() ([]byte, []byte) {
	lower := []byte(wire.RowPrefix(p.ns))
	upper := append([]byte(nil), lower...)
	upper[len(upper)-1]++ // prefix ends in ':' so this never overflows
	return lower, upper
}
