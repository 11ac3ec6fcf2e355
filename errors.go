package dbcache

import (
	"fmt"
)

// StoreError is returned when the durable store failed a call. The cache never retries.
// Overwrites delete before they insert: an insert failing after a successful delete
// leaves the key absent in both the store and the mirror.
type StoreError struct {
	Op    string // provider call, e.g. "select_one", "insert"
	Group string
	Key   string
	Err   error
}

func (e *StoreError) Error() string {
	switch {
	case e.Group == "" && e.Key == "":
		return fmt.Sprintf("dbcache: store %s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("dbcache: store %s %s/%q failed: %v", e.Op, e.Group, e.Key, e.Err)
	}
}

func (e *StoreError) Unwrap() error { return e.Err }

// EncodeError is returned by write paths when the codec cannot serialize a value.
type EncodeError struct {
	Group string
	Key   string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("dbcache: encode %s/%q: %v", e.Group, e.Key, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
