package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/dbcache"
)

type recorder struct {
	dbcache.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (r *recorder) add(ev string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Flushed()                            { r.add("flushed") }
func (r *recorder) StoreError(op, _, _ string, _ error) { r.add("store_error:" + op) }
func (r *recorder) ExpiredSwept(int64)                  { r.add("swept") }

func TestAsyncDeliversBeforeClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 16)

	h.Flushed()
	h.StoreError("insert", "g", "k", errors.New("boom"))
	h.ExpiredSwept(3)
	h.Close()

	if len(rec.events) != 3 {
		t.Fatalf("got=%v want 3 events", rec.events)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d want=0", h.Dropped())
	}
}

func TestAsyncDropsWhenFullAndAfterClose(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	// worker takes the first event and blocks; the second fills the queue
	h.Flushed()
	for i := 0; i < 10; i++ {
		h.Flushed()
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops on a full queue")
	}
	close(rec.block)
	h.Close()

	before := h.Dropped()
	h.Flushed()
	if h.Dropped() != before+1 {
		t.Fatalf("event after Close not counted as dropped")
	}
}
