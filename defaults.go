package dbcache

import "time"

const (
	defaultSchemaVersion = 1
	neverLabel           = "never"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func coalesceClock(f func() time.Time) func() time.Time {
	if f == nil {
		return time.Now
	}
	return f
}
