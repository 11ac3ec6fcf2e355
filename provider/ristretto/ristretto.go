// Package ristretto is a volatile, in-process row store on dgraph-io/ristretto.
//
// Expiry lives in the framed row and is enforced only by DeleteExpired against the
// caller's clock, the same as the durable adapters. Ristretto itself keeps rows without
// a TTL; it may still evict them under cost pressure or refuse a write on admission,
// which Insert reports as provider.ErrRejected.
package ristretto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/dbcache/internal/wire"
	pr "github.com/unkn0wn-root/dbcache/provider"
)

type Provider struct {
	c  *rc.Cache
	ns string

	mu   sync.Mutex
	keys map[string]struct{} // written keys; ristretto cannot be iterated
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Namespace   string
	NumCounters int64
	MaxCost     int64 // bytes; each row costs its framed length
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = pr.DefaultTable
	}
	return &Provider{c: c, ns: ns, keys: make(map[string]struct{})}, nil
}

func (p *Provider) EnsureSchema(context.Context, int) (bool, error) { return true, nil }

func (p *Provider) SelectOne(_ context.Context, group, key string) (pr.Row, bool, error) {
	k := wire.RowKey(p.ns, group, key)
	b, ok := p.raw(k)
	if !ok {
		return pr.Row{}, false, nil
	}
	r, err := wire.DecodeRow(b)
	if err != nil {
		p.del(k) // self-heal
		return pr.Row{}, false, nil
	}
	return pr.Row{Data: r.Payload, ExpiresAt: r.ExpiresAt}, true, nil
}

func (p *Provider) raw(k string) ([]byte, bool) {
	v, ok := p.c.Get(k)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.del(k)
		return nil, false
	}
	return b, true
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
	return p.set(wire.RowKey(p.ns, e.Group, e.Key), b)
}

func (p *Provider) set(k string, b []byte) error {
	if !p.c.Set(k, b, int64(len(b))) {
		return fmt.Errorf("ristretto provider: %s: %w", k, pr.ErrRejected)
	}
	p.c.Wait() // make the write visible to the next Get
	p.mu.Lock()
	p.keys[k] = struct{}{}
	p.mu.Unlock()
	return nil
}

func (p *Provider) del(k string) {
	p.c.Del(k)
	p.mu.Lock()
	delete(p.keys, k)
	p.mu.Unlock()
}

func (p *Provider) UpdateData(_ context.Context, group, key string, data []byte) error {
	k := wire.RowKey(p.ns, group, key)
	b, ok := p.raw(k)
	if !ok {
		return nil
	}
	r, err := wire.DecodeRow(b)
	if err != nil {
		return fmt.Errorf("ristretto provider: update %s: %w", k, err)
	}
	r.Payload = data
	nb, err := wire.EncodeRow(r)
	if err != nil {
		return err
	}
	return p.set(k, nb)
}

func (p *Provider) DeleteRow(_ context.Context, group, key string) error {
	p.del(wire.RowKey(p.ns, group, key))
	return nil
}

// DeleteExpired walks the tracked keys and removes rows whose expiry is before now.
// Keys ristretto has evicted in the meantime are forgotten.
func (p *Provider) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	p.mu.Lock()
	keys := make([]string, 0, len(p.keys))
	for k := range p.keys {
		keys = append(keys, k)
	}
	p.mu.Unlock()

	var n int64
	for _, k := range keys {
		v, ok := p.c.Get(k)
		if !ok {
			p.mu.Lock()
			delete(p.keys, k)
			p.mu.Unlock()
			continue
		}
		b, _ := v.([]byte)
		if expired, err := wire.Expired(b, now); err != nil || !expired {
			continue
		}
		p.del(k)
		n++
	}
	return n, nil
}

func (p *Provider) Truncate(context.Context) error {
	p.c.Clear()
	p.mu.Lock()
	p.keys = make(map[string]struct{})
	p.mu.Unlock()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Helper to expose metrics if desired by the application (not part of provider.Provider).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
