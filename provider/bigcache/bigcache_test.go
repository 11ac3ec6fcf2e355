package bigcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/dbcache/provider"
	"github.com/unkn0wn-root/dbcache/provider/providertest"
)

func TestBigcacheConformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) pr.Provider {
		p, err := New(Config{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.c.Close() })
		return p
	}, providertest.Options{NoAdmin: true})
}
