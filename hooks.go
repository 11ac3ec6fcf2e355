package dbcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them inline with the operation that produced the event.
type Hooks interface {
	// The store schema is confirmed at version and the cache became ready.
	SchemaReady(version int)

	// AttemptReady was called while the readiness precondition was not met.
	ReadyDeferred()

	// Expired rows removed from the store by Expire (including the sweep on ready).
	ExpiredSwept(removed int64)

	// Flush truncated the store and reset the in-memory state.
	Flushed()

	// The store failed a call. op is the provider call ("select_one", "insert", ...).
	StoreError(op, group, key string, err error)

	// A key that is neither a string nor an integer was passed to op.
	// The call degraded to a no-op (writes) or a miss (reads).
	InvalidKey(op, keyType string)

	// A stored payload could not be decoded; the key is mirrored as nil.
	UndecodableRow(group, key string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SchemaReady(int)                          {}
func (NopHooks) ReadyDeferred()                           {}
func (NopHooks) ExpiredSwept(int64)                       {}
func (NopHooks) Flushed()                                 {}
func (NopHooks) StoreError(string, string, string, error) {}
func (NopHooks) InvalidKey(string, string)                {}
func (NopHooks) UndecodableRow(string, string, error)     {}
