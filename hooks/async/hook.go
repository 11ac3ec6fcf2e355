// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/dbcache"
//	asynchook "github.com/unkn0wn-root/dbcache/hooks/async"
//	"github.com/unkn0wn-root/dbcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    InvalidKeyEvery: 100, // sample logs: ~every 100th invalid key
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := dbcache.New(store, dbcache.Options{
//	    Hooks: hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/dbcache"
)

// Hooks forwards events to inner on a worker pool. Events are dropped when the queue is full.
type Hooks struct {
	inner   dbcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ dbcache.Hooks = (*Hooks)(nil)

func New(inner dbcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) SchemaReady(v int)        { h.try(func() { h.inner.SchemaReady(v) }) }
func (h *Hooks) ReadyDeferred()           { h.try(func() { h.inner.ReadyDeferred() }) }
func (h *Hooks) ExpiredSwept(n int64)     { h.try(func() { h.inner.ExpiredSwept(n) }) }
func (h *Hooks) Flushed()                 { h.try(func() { h.inner.Flushed() }) }
func (h *Hooks) InvalidKey(op, kt string) { h.try(func() { h.inner.InvalidKey(op, kt) }) }
func (h *Hooks) StoreError(op, group, key string, err error) {
	h.try(func() { h.inner.StoreError(op, group, key, err) })
}
func (h *Hooks) UndecodableRow(group, key string, err error) {
	h.try(func() { h.inner.UndecodableRow(group, key, err) })
}
