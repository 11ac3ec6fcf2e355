package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/dbcache/internal/wire"
	pr "github.com/unkn0wn-root/dbcache/provider"
	"github.com/unkn0wn-root/dbcache/provider/providertest"
)

func newTestRistretto(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{NumCounters: 1e4, MaxCost: 1 << 20, BufferItems: 64})
	require.NoError(t, err)
	t.Cleanup(func() { p.c.Close() })
	return p
}

func TestRistrettoConformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) pr.Provider { return newTestRistretto(t) },
		providertest.Options{NoAdmin: true})
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestExpiryFollowsCallerClock(t *testing.T) {
	ctx := context.Background()
	p := newTestRistretto(t)
	past := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	// a row that is long expired by the wall clock stays until swept
	require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "k", Data: []byte("1"), ExpiresAt: past.Add(time.Hour)}))
	_, ok, err := p.SelectOne(ctx, "g", "k")
	require.NoError(t, err)
	require.True(t, ok)

	n, err := p.DeleteExpired(ctx, past)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = p.DeleteExpired(ctx, past.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, p.keys)
}

func TestDeleteExpiredForgetsEvictedKeys(t *testing.T) {
	ctx := context.Background()
	p := newTestRistretto(t)

	require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "k", Data: []byte("1")}))
	p.c.Del(wire.RowKey(p.ns, "g", "k"))

	n, err := p.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Empty(t, p.keys)
}
