// Package dbcache implements a key/group addressed object cache in front of a durable store.
// A Cache keeps an in-process mirror of resolved values and a negative memo of keys the
// store confirmed absent, so each (group, key) costs at most one store read per instance.
//
// Components:
//   - Provider: durable row store (SQLite, Postgres, Redis, Pebble, or a volatile in-process store).
//   - Codec: (de)serializes values <-> []byte. JSON by default.
//   - Hooks/Logger: optional observability; both default to no-ops.
//
// A Cache is owned by one unit of work (a request, a job) and is not safe for concurrent
// use. Instances share only the provider, there is no coherency between their mirrors.
//
// Lifecycle:
//
//	cache, _ := dbcache.New(store, dbcache.Options{MultiTenant: true, TenantID: "7"})
//	if ok, err := cache.AttemptReady(ctx); err != nil || !ok {
//	    // not ready: writes are no-ops, reads miss
//	}
//	_ = cache.Set(ctx, "color", "blue", "theme", time.Hour)
//	v, found, _ := cache.Get(ctx, "color", "theme")
package dbcache
