package dbcache

import (
	"fmt"
	"time"

	"github.com/unkn0wn-root/dbcache/codec"
	pr "github.com/unkn0wn-root/dbcache/provider"
)

// Options tune a Cache. All fields are optional.
type Options struct {
	Codec  codec.Codec // nil => codec.JSON
	Logger Logger      // nil => NopLogger
	Hooks  Hooks       // nil => NopHooks
	Clock  func() time.Time

	// Multi-tenancy. Keys of non-global groups are prefixed with "<TenantID>:".
	MultiTenant bool
	TenantID    string

	GlobalGroups        []string // never tenant-prefixed
	NonPersistentGroups []string // mirror-only, never written to the store

	// AdditionsSuspended is consulted by Add only. nil => never suspended.
	AdditionsSuspended func() bool

	SchemaVersion int // 0 => 1

	// Precondition gates AttemptReady (e.g. "the host finished booting"). nil => always met.
	Precondition func() bool
}

// New builds a Cache over p. p is shared, the cache never closes it.
// The cache starts not ready; call AttemptReady before serving traffic.
func New(p pr.Provider, opts Options) (*Cache, error) {
	if p == nil {
		return nil, fmt.Errorf("dbcache: provider is required")
	}
	if opts.SchemaVersion < 0 {
		return nil, fmt.Errorf("dbcache: schema version must be >= 0, got %d", opts.SchemaVersion)
	}
	c := &Cache{
		store:         p,
		multiTenant:   opts.MultiTenant,
		global:        make(map[string]struct{}),
		nonPersistent: make(map[string]struct{}),
		suspended:     opts.AdditionsSuspended,
		precondition:  opts.Precondition,
	}

	c.codec = coalesce[codec.Codec](opts.Codec, codec.JSON{})
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.now = coalesceClock(opts.Clock)
	c.schemaVersion = coalesce(opts.SchemaVersion, defaultSchemaVersion)

	c.AddGlobalGroups(opts.GlobalGroups...)
	c.AddNonPersistentGroups(opts.NonPersistentGroups...)
	c.SwitchTenant(opts.TenantID)
	c.reset()
	return c, nil
}
