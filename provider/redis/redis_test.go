package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/dbcache/internal/wire"
	pr "github.com/unkn0wn-root/dbcache/provider"
	"github.com/unkn0wn-root/dbcache/provider/providertest"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	p, err := New(Config{Client: client, CloseClient: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p, mr
}

func TestRedisConformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) pr.Provider {
		p, _ := newTestRedis(t)
		return p
	}, providertest.Options{})
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestSelfHealOnCorruptRow(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestRedis(t)

	k := wire.RowKey(p.ns, "g", "bad")
	require.NoError(t, mr.Set(k, "not-wire-format"))

	_, ok, err := p.SelectOne(ctx, "g", "bad")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(k), "corrupt row should be deleted")
}

func TestTruncateLeavesForeignKeys(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestRedis(t)

	require.NoError(t, mr.Set("unrelated", "v"))
	require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "k", Data: []byte("x")}))
	require.NoError(t, p.Truncate(ctx))

	assert.True(t, mr.Exists("unrelated"))
	assert.False(t, mr.Exists(wire.RowKey(p.ns, "g", "k")))
}
