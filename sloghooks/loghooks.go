// Package sloghooks logs cache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/dbcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	InvalidKeyEvery uint64
	SweepEvery      uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	invalidKeyCtr atomic.Uint64
	sweepCtr      atomic.Uint64
}

var _ dbcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SchemaReady(version int) {
	if h.l == nil {
		return
	}
	h.l.Info("dbcache.schema_ready", "version", version)
}

func (h *Hooks) ReadyDeferred() {
	if h.l == nil {
		return
	}
	h.l.Debug("dbcache.ready_deferred")
}

func (h *Hooks) ExpiredSwept(removed int64) {
	if h.l == nil || removed == 0 || !sample(h.opts.SweepEvery, &h.sweepCtr) {
		return
	}
	h.l.Debug("dbcache.expired_swept", "removed", removed)
}

func (h *Hooks) Flushed() {
	if h.l == nil {
		return
	}
	h.l.Info("dbcache.flushed")
}

func (h *Hooks) StoreError(op, group, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("dbcache.store_error",
		"op", op,
		"group", group,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) InvalidKey(op, keyType string) {
	if h.l == nil || !sample(h.opts.InvalidKeyEvery, &h.invalidKeyCtr) {
		return
	}
	h.l.Warn("dbcache.invalid_key",
		"op", op,
		"key_type", keyType)
}

func (h *Hooks) UndecodableRow(group, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("dbcache.undecodable_row",
		"group", group,
		"key", h.redact(key),
		"err", err)
}
