// Package bigcache is a volatile, in-process row store on allegro/bigcache/v3.
// Rows survive only as long as the process and bigcache's LifeWindow allow;
// use it for tests and single-process deployments that can rebuild their cache.
package bigcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/dbcache/internal/wire"
	pr "github.com/unkn0wn-root/dbcache/provider"
)

type Provider struct {
	c  *bc.BigCache
	ns string
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Namespace string
	// LifeWindow is bigcache's own eviction age (0 => 24h). It applies to every row,
	// so a row stored without expiry ("never") is still gone once it is this old.
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Provider, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = pr.DefaultTable
	}
	return &Provider{c: c, ns: ns}, nil
}

// EnsureSchema always succeeds: there is no table to provision in memory.
func (p *Provider) EnsureSchema(context.Context, int) (bool, error) { return true, nil }

func (p *Provider) SelectOne(_ context.Context, group, key string) (pr.Row, bool, error) {
	k := wire.RowKey(p.ns, group, key)
	b, err := p.c.Get(k)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return pr.Row{}, false, nil
	}
	if err != nil {
		return pr.Row{}, false, err
	}
	r, err := wire.DecodeRow(b)
	if err != nil {
		_ = p.c.Delete(k) // self-heal
		return pr.Row{}, false, nil
	}
	return pr.Row{Data: r.Payload, ExpiresAt: r.ExpiresAt}, true, nil
}

func (p *Provider) Insert(_ context.Context, e pr.Entry) error {
	b, err := wire.EncodeRow(wire.Row{
		ExpiresAt: e.ExpiresAt,
		Size:      uint32(e.Size),
		TTLLabel:  e.TTLLabel,
		Payload:   e.Data,
	})
	if err != nil {
		return err
	}
	return p.c.Set(wire.RowKey(p.ns, e.Group, e.Key), b)
}

func (p *Provider) UpdateData(_ context.Context, group, key string, data []byte) error {
	k := wire.RowKey(p.ns, group, key)
	b, err := p.c.Get(k)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	r, err := wire.DecodeRow(b)
	if err != nil {
		return fmt.Errorf("bigcache provider: update %s: %w", k, err)
	}
	r.Payload = data
	nb, err := wire.EncodeRow(r)
	if err != nil {
		return err
	}
	return p.c.Set(k, nb)
}

func (p *Provider) DeleteRow(_ context.Context, group, key string) error {
	err := p.c.Delete(wire.RowKey(p.ns, group, key))
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

// DeleteExpired walks every entry; bigcache has no secondary index.
func (p *Provider) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var expired []string
	it := p.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue // entry evicted mid-iteration
		}
		if ok, err := wire.Expired(info.Value(), now); err == nil && ok {
			expired = append(expired, info.Key())
		}
	}
	var n int64
	for _, k := range expired {
		if err := p.c.Delete(k); err == nil {
			n++
		}
	}
	return n, nil
}

func (p *Provider) Truncate(context.Context) error {
	return p.c.Reset()
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
