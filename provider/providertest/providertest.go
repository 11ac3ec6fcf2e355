// Package providertest is a conformance suite shared by the provider adapters' tests.
package providertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/dbcache/provider"
)

// Options tune which behaviors are asserted.
type Options struct {
	// NoAdmin skips ResetSchema/DropTable checks.
	NoAdmin bool
}

// Run exercises p against the Provider contract. newProvider must return an empty store.
func Run(t *testing.T, newProvider func(t *testing.T) pr.Provider, opts Options) {
	t.Run("ensure_schema_idempotent", func(t *testing.T) {
		p := newProvider(t)
		ctx := context.Background()
		for i := 0; i < 2; i++ {
			ok, err := p.EnsureSchema(ctx, 1)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})

	t.Run("insert_select_exact_match", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()

		require.NoError(t, p.Insert(ctx, pr.Entry{
			Group: "theme", Key: "color", Data: []byte(`"blue"`), Size: 6, TTLLabel: "never",
		}))

		row, ok, err := p.SelectOne(ctx, "theme", "color")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte(`"blue"`), row.Data)
		assert.True(t, row.ExpiresAt.IsZero())

		// same key in another group must not match
		_, ok, err = p.SelectOne(ctx, "other", "color")
		require.NoError(t, err)
		assert.False(t, ok)

		// no prefix matching
		_, ok, err = p.SelectOne(ctx, "theme", "colo")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("insert_overwrites", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()

		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "k", Data: []byte("1")}))
		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "k", Data: []byte("2")}))

		row, ok, err := p.SelectOne(ctx, "g", "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("2"), row.Data)
	})

	t.Run("update_data_keeps_expiry", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour).Truncate(time.Microsecond)

		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "n", Data: []byte("5"), ExpiresAt: exp}))
		require.NoError(t, p.UpdateData(ctx, "g", "n", []byte("6")))

		row, ok, err := p.SelectOne(ctx, "g", "n")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("6"), row.Data)
		assert.True(t, exp.Equal(row.ExpiresAt), "got=%v want=%v", row.ExpiresAt, exp)
	})

	t.Run("delete_row", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()

		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "a", Data: []byte("x")}))
		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "h", Key: "a", Data: []byte("y")}))
		require.NoError(t, p.DeleteRow(ctx, "g", "a"))
		require.NoError(t, p.DeleteRow(ctx, "g", "missing"))

		_, ok, err := p.SelectOne(ctx, "g", "a")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = p.SelectOne(ctx, "h", "a")
		require.NoError(t, err)
		assert.True(t, ok, "delete must match group exactly")
	})

	t.Run("delete_expired", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "forever", Data: []byte("1")}))
		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "later", Data: []byte("2"), ExpiresAt: now.Add(time.Hour)}))
		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "past", Data: []byte("3"), ExpiresAt: now.Add(-time.Hour)}))

		n, err := p.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, ok, err := p.SelectOne(ctx, "g", "past")
		require.NoError(t, err)
		assert.False(t, ok)

		for _, k := range []string{"forever", "later"} {
			_, ok, err := p.SelectOne(ctx, "g", k)
			require.NoError(t, err)
			assert.True(t, ok, "row %q should survive the sweep", k)
		}
	})

	t.Run("delete_expired_uses_given_now", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "k", Data: []byte("1"), ExpiresAt: now.Add(time.Hour)}))

		n, err := p.DeleteExpired(ctx, now.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		n, err = p.DeleteExpired(ctx, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, ok, err := p.SelectOne(ctx, "g", "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("far_future_expiry", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()

		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "k", Data: []byte("1"), ExpiresAt: pr.MaxExpiry}))

		n, err := p.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		row, ok, err := p.SelectOne(ctx, "g", "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, row.ExpiresAt.After(time.Date(2262, 1, 1, 0, 0, 0, 0, time.UTC)), "got=%v", row.ExpiresAt)
	})

	t.Run("truncate", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()

		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "a", Data: []byte("x")}))
		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "h", Key: "b", Data: []byte("y")}))
		require.NoError(t, p.Truncate(ctx))

		for _, gk := range [][2]string{{"g", "a"}, {"h", "b"}} {
			_, ok, err := p.SelectOne(ctx, gk[0], gk[1])
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	if opts.NoAdmin {
		return
	}

	t.Run("admin_reset_and_drop", func(t *testing.T) {
		p := ready(t, newProvider)
		ctx := context.Background()
		admin, ok := p.(pr.Admin)
		require.True(t, ok, "provider should implement provider.Admin")

		require.NoError(t, p.Insert(ctx, pr.Entry{Group: "g", Key: "a", Data: []byte("x")}))
		require.NoError(t, admin.ResetSchema(ctx))
		ok, err := p.EnsureSchema(ctx, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, admin.DropTable(ctx))
		ok, err = p.EnsureSchema(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		_, found, err := p.SelectOne(ctx, "g", "a")
		require.NoError(t, err)
		assert.False(t, found, "drop must remove rows")
	})
}

func ready(t *testing.T, newProvider func(t *testing.T) pr.Provider) pr.Provider {
	t.Helper()
	p := newProvider(t)
	ok, err := p.EnsureSchema(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	return p
}
