// Package provider defines the durable store abstraction used by dbcache.
//
// A Provider holds one row per (group, key) pair. Lookups are exact matches on both
// columns; no pattern matching is ever issued. Data is opaque to the provider and must
// be returned byte-for-byte as it was written.
//
// The engine shares the provider and never closes it. Callers own its lifecycle.
package provider

import (
	"context"
	"errors"
	"math"
	"time"
)

// DefaultTable is the table (or key namespace) used when an adapter is not told otherwise.
const DefaultTable = "dbcache"

// MaxExpiry is the latest expiry an adapter has to represent. Adapters store
// expiry as Unix nanoseconds, which run out in 2262.
var MaxExpiry = time.Unix(0, math.MaxInt64)

// ErrRejected is returned when a store refused a write (e.g. admission under pressure).
var ErrRejected = errors.New("provider: write rejected")

// Row is the result of an exact-match lookup.
type Row struct {
	Data      []byte
	ExpiresAt time.Time // zero => never
}

// Entry is a full durable row as written by Insert.
type Entry struct {
	Group     string
	Key       string
	Data      []byte
	ExpiresAt time.Time // zero => never
	Size      int       // byte length of Data at write time
	TTLLabel  string    // human-readable time-to-live
}

// Provider is the durable store consumed by the cache engine.
// Any returned error is treated as the store being unavailable and is propagated to the caller.
type Provider interface {
	// EnsureSchema creates the backing table if absent and records version.
	// Idempotent. Returns true once the store is usable.
	EnsureSchema(ctx context.Context, version int) (bool, error)

	// SelectOne returns the row for (group, key); ok=false when there is none.
	SelectOne(ctx context.Context, group, key string) (row Row, ok bool, err error)

	// Insert writes a new row. An existing row for (group, key) is overwritten.
	Insert(ctx context.Context, e Entry) error

	// UpdateData replaces only the data column of an existing row.
	UpdateData(ctx context.Context, group, key string, data []byte) error

	// DeleteRow removes the row for (group, key); deleting a missing row is not an error.
	DeleteRow(ctx context.Context, group, key string) error

	// DeleteExpired removes every row with a non-zero expiry strictly before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Truncate removes every row.
	Truncate(ctx context.Context) error
}

// Admin is the optional administrative surface of a provider.
type Admin interface {
	// ResetSchema forgets the recorded schema version so the next EnsureSchema re-provisions.
	ResetSchema(ctx context.Context) error
	// DropTable removes the backing table (or key namespace) entirely.
	DropTable(ctx context.Context) error
}
