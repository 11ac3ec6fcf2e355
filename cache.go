package dbcache

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/unkn0wn-root/dbcache/codec"
	"github.com/unkn0wn-root/dbcache/internal/util"
	pr "github.com/unkn0wn-root/dbcache/provider"
)

// mirrored is a value known to match the store. raw is the serialized form val was
// decoded from; reference-like values are handed out as fresh decodes of raw.
type mirrored struct {
	val any
	raw []byte
}

// Cache is the key/group cache engine. It is not safe for concurrent use.
type Cache struct {
	store pr.Provider
	codec codec.Codec
	log   Logger
	hooks Hooks
	now   func() time.Time

	schemaVersion int
	precondition  func() bool
	suspended     func() bool

	multiTenant   bool
	tenantID      string
	prefix        string
	global        map[string]struct{}
	nonPersistent map[string]struct{}

	ready bool

	mirror map[string]map[string]mirrored
	memo   map[string]map[string]struct{} // keys the store confirmed absent
	hits   map[string]int64
	misses map[string]int64
}

func (c *Cache) reset() {
	c.mirror = make(map[string]map[string]mirrored)
	c.memo = make(map[string]map[string]struct{})
	c.hits = make(map[string]int64)
	c.misses = make(map[string]int64)
}

// ==============================
// Readiness
// ==============================

// AttemptReady moves the cache to ready once the precondition holds and the store schema
// is confirmed at the configured version, then sweeps expired rows.
// It is idempotent; a ready cache returns true without touching the store.
// If the sweep fails the cache is still ready and the sweep error is returned.
func (c *Cache) AttemptReady(ctx context.Context) (bool, error) {
	if c.ready {
		return true, nil
	}
	if c.precondition != nil && !c.precondition() {
		c.hooks.ReadyDeferred()
		c.log.Debug("readiness deferred (precondition not met)", nil)
		return false, nil
	}
	ok, err := c.store.EnsureSchema(ctx, c.schemaVersion)
	if err != nil {
		return false, c.storeErr("ensure_schema", "", "", err)
	}
	if !ok {
		c.log.Debug("store schema not ready", Fields{"version": c.schemaVersion})
		return false, nil
	}
	c.ready = true
	c.hooks.SchemaReady(c.schemaVersion)
	c.log.Debug("cache ready", Fields{"version": c.schemaVersion})

	if _, err := c.Expire(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Ready reports whether AttemptReady has succeeded.
func (c *Cache) Ready() bool { return c.ready }

// ==============================
// Reads
// ==============================

// Get returns the value for key in group. found=false is a miss, never an error.
// Maps, slices, pointers and structs are returned as copies.
func (c *Cache) Get(ctx context.Context, key any, group string) (any, bool, error) {
	group = util.NormalizeGroup(group)
	sk, valid := c.scoped(key, group)
	if !valid {
		c.hooks.InvalidKey("get", fmt.Sprintf("%T", key))
	}

	present, err := c.exists(ctx, group, sk, valid)
	if err != nil {
		return nil, false, err
	}
	if !present {
		c.misses[group]++
		return nil, false, nil
	}
	c.hits[group]++
	return c.copyOut(c.mirror[group][sk]), true, nil
}

// GetInto is Get for callers that know the stored type. The payload is decoded into dst,
// which must be a non-nil pointer; on a miss dst is left untouched. Hits and misses are
// counted as for Get. A payload that does not fit dst is reported as found with an error.
func (c *Cache) GetInto(ctx context.Context, key any, group string, dst any) (bool, error) {
	if rv := reflect.ValueOf(dst); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false, fmt.Errorf("dbcache: GetInto needs a non-nil pointer, got %T", dst)
	}
	group = util.NormalizeGroup(group)
	sk, valid := c.scoped(key, group)
	if !valid {
		c.hooks.InvalidKey("get", fmt.Sprintf("%T", key))
	}

	present, err := c.exists(ctx, group, sk, valid)
	if err != nil {
		return false, err
	}
	if !present {
		c.misses[group]++
		return false, nil
	}
	c.hits[group]++
	if err := codec.DecodeInto(c.codec, c.mirror[group][sk].raw, dst); err != nil {
		return true, fmt.Errorf("dbcache: decode %s/%q into %T: %w", group, sk, dst, err)
	}
	return true, nil
}

// GetMultiple calls Get once per key. The result is keyed by fmt.Sprint(key);
// missing keys map to nil.
func (c *Cache) GetMultiple(ctx context.Context, keys []any, group string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, _, err := c.Get(ctx, k, group)
		if err != nil {
			return nil, err
		}
		out[fmt.Sprint(k)] = v
	}
	return out, nil
}

// ==============================
// Writes
// ==============================

// Set stores data under key for ttl (ttl <= 0 => never expires).
// Before the cache is ready, and for keys that are neither strings nor integers,
// Set does nothing and returns nil. An existing key is deleted and re-inserted
// only after data has been encoded; an *EncodeError leaves the old value intact.
func (c *Cache) Set(ctx context.Context, key any, data any, group string, ttl time.Duration) error {
	if !c.ready {
		return nil
	}
	group = util.NormalizeGroup(group)
	sk, valid := c.scoped(key, group)
	if !valid {
		c.hooks.InvalidKey("set", fmt.Sprintf("%T", key))
		return nil
	}

	// another instance may have inserted the key since it was memoized as absent
	c.unmemo(group, sk)

	present, err := c.exists(ctx, group, sk, true)
	if err != nil {
		return err
	}
	raw, val, err := c.prepare(group, sk, data)
	if err != nil {
		return err
	}
	if present {
		if err := c.remove(ctx, group, sk); err != nil {
			return err
		}
	}
	return c.write(ctx, group, sk, raw, val, ttl)
}

// Add stores data only if key is absent. It returns false when additions are
// suspended, the cache is not ready, or the key exists.
func (c *Cache) Add(ctx context.Context, key, data any, group string, ttl time.Duration) (bool, error) {
	if c.suspended != nil && c.suspended() {
		return false, nil
	}
	if !c.ready {
		return false, nil
	}
	group = util.NormalizeGroup(group)
	sk, valid := c.scoped(key, group)
	present, err := c.exists(ctx, group, sk, valid)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}
	if err := c.Set(ctx, key, data, group, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Replace overwrites an existing key. It returns false when the key is absent.
func (c *Cache) Replace(ctx context.Context, key, data any, group string, ttl time.Duration) (bool, error) {
	group = util.NormalizeGroup(group)
	sk, valid := c.scoped(key, group)
	present, err := c.exists(ctx, group, sk, valid)
	if err != nil || !present {
		return false, err
	}
	raw, val, err := c.prepare(group, sk, data)
	if err != nil {
		return false, err
	}
	if err := c.remove(ctx, group, sk); err != nil {
		return false, err
	}
	if err := c.write(ctx, group, sk, raw, val, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes key from the store and the mirror. It returns false when the key is absent.
// The key is not memoized as absent; the next lookup asks the store again.
func (c *Cache) Delete(ctx context.Context, key any, group string) (bool, error) {
	group = util.NormalizeGroup(group)
	sk, valid := c.scoped(key, group)
	present, err := c.exists(ctx, group, sk, valid)
	if err != nil || !present {
		return false, err
	}
	if err := c.remove(ctx, group, sk); err != nil {
		return false, err
	}
	return true, nil
}

// Incr adds offset to the numeric value of key. See Decr.
func (c *Cache) Incr(ctx context.Context, key any, offset int64, group string) (int64, bool, error) {
	return c.bump(ctx, key, offset, group)
}

// Decr subtracts offset from the numeric value of key.
// Non-numeric values count as 0 and the result never goes below 0.
// The new value is written in place: expiry, size hint and ttl label of the row are kept.
func (c *Cache) Decr(ctx context.Context, key any, offset int64, group string) (int64, bool, error) {
	if offset == minInt64 {
		return c.bump(ctx, key, maxInt64, group)
	}
	return c.bump(ctx, key, -offset, group)
}

func (c *Cache) bump(ctx context.Context, key any, delta int64, group string) (int64, bool, error) {
	group = util.NormalizeGroup(group)
	sk, valid := c.scoped(key, group)
	present, err := c.exists(ctx, group, sk, valid)
	if err != nil || !present {
		return 0, false, err
	}

	cur, _, err := c.Get(ctx, key, group)
	if err != nil {
		return 0, false, err
	}
	n := addClamped(toInt64(cur), delta)

	raw, err := c.codec.Encode(n)
	if err != nil {
		return 0, false, &EncodeError{Group: group, Key: sk, Err: err}
	}
	if !c.isNonPersistent(group) {
		if err := c.store.UpdateData(ctx, group, sk, raw); err != nil {
			return 0, false, c.storeErr("update_data", group, sk, err)
		}
	}
	c.mirrorPut(group, sk, mirrored{val: n, raw: raw})
	return n, true, nil
}

// Flush truncates the store and resets the mirror, the negative memo and the counters.
// It does nothing before the cache is ready.
func (c *Cache) Flush(ctx context.Context) error {
	if !c.ready {
		return nil
	}
	if err := c.store.Truncate(ctx); err != nil {
		return c.storeErr("truncate", "", "", err)
	}
	c.reset()
	c.hooks.Flushed()
	c.log.Debug("cache flushed", nil)
	return nil
}

// Expire deletes rows whose expiry is before now. Mirrored values stay readable
// for the lifetime of the cache.
func (c *Cache) Expire(ctx context.Context) (int64, error) {
	if !c.ready {
		return 0, nil
	}
	n, err := c.store.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, c.storeErr("delete_expired", "", "", err)
	}
	c.hooks.ExpiredSwept(n)
	if n > 0 {
		c.log.Debug("expired rows swept", Fields{"removed": n})
	}
	return n, nil
}

// ==============================
// Groups & tenancy
// ==============================

// AddGlobalGroups marks groups as shared across tenants.
func (c *Cache) AddGlobalGroups(groups ...string) {
	for _, g := range groups {
		c.global[util.NormalizeGroup(g)] = struct{}{}
	}
}

// AddNonPersistentGroups marks groups as mirror-only.
func (c *Cache) AddNonPersistentGroups(groups ...string) {
	for _, g := range groups {
		c.nonPersistent[util.NormalizeGroup(g)] = struct{}{}
	}
}

// SwitchTenant changes the tenant prefix for subsequent calls. In-memory state is kept.
func (c *Cache) SwitchTenant(tenantID string) {
	c.tenantID = tenantID
	c.prefix = util.TenantPrefix(c.multiTenant, tenantID)
}

func (c *Cache) GlobalGroups() []string        { return sortedSet(c.global) }
func (c *Cache) NonPersistentGroups() []string { return sortedSet(c.nonPersistent) }
func (c *Cache) TenantPrefix() string          { return c.prefix }

// ==============================
// Internals
// ==============================

func (c *Cache) scoped(key any, group string) (string, bool) {
	k, ok := util.KeyString(key)
	if !ok {
		return "", false
	}
	_, global := c.global[group]
	return util.Scope(k, c.prefix, global), true
}

// exists answers whether (group, sk) is present, reading the store at most once per
// key: mirrored keys are present, memoized keys are absent, anything else is looked up
// and the answer is remembered.
func (c *Cache) exists(ctx context.Context, group, sk string, valid bool) (bool, error) {
	if !c.ready || !valid {
		return false, nil
	}
	if _, ok := c.mirror[group][sk]; ok {
		return true, nil
	}
	if _, ok := c.memo[group][sk]; ok {
		return false, nil
	}
	if c.isNonPersistent(group) {
		c.memoize(group, sk)
		return false, nil
	}

	row, ok, err := c.store.SelectOne(ctx, group, sk)
	if err != nil {
		return false, c.storeErr("select_one", group, sk, err)
	}
	if !ok {
		c.memoize(group, sk)
		return false, nil
	}
	v, err := c.codec.Decode(row.Data)
	if err != nil {
		c.hooks.UndecodableRow(group, sk, err)
		c.log.Warn("stored payload not decodable", Fields{"group": group, "key": sk, "err": err})
		v = nil
	}
	c.mirrorPut(group, sk, mirrored{val: v, raw: row.Data})
	return true, nil
}

// prepare encodes data and decodes it back, so nothing is touched when the value
// cannot be represented by the codec.
func (c *Cache) prepare(group, sk string, data any) ([]byte, any, error) {
	raw, err := c.codec.Encode(data)
	if err != nil {
		return nil, nil, &EncodeError{Group: group, Key: sk, Err: err}
	}
	val, err := c.codec.Decode(raw)
	if err != nil {
		return nil, nil, &EncodeError{Group: group, Key: sk, Err: err}
	}
	return raw, val, nil
}

// write inserts a new row (unless the group is mirror-only) and mirrors the decoded value.
func (c *Cache) write(ctx context.Context, group, sk string, raw []byte, val any, ttl time.Duration) error {
	if !c.isNonPersistent(group) {
		now := c.now()
		e := pr.Entry{
			Group:    group,
			Key:      sk,
			Data:     raw,
			Size:     len(raw),
			TTLLabel: neverLabel,
		}
		if ttl > 0 {
			e.ExpiresAt = now.Add(ttl)
			// stores keep nanoseconds in an int64
			if e.ExpiresAt.After(pr.MaxExpiry) {
				e.ExpiresAt = pr.MaxExpiry
			}
			e.TTLLabel = ttlLabel(now, e.ExpiresAt)
		}
		if err := c.store.Insert(ctx, e); err != nil {
			return c.storeErr("insert", group, sk, err)
		}
	}
	c.mirrorPut(group, sk, mirrored{val: val, raw: raw})
	return nil
}

func (c *Cache) remove(ctx context.Context, group, sk string) error {
	if !c.isNonPersistent(group) {
		if err := c.store.DeleteRow(ctx, group, sk); err != nil {
			return c.storeErr("delete_row", group, sk, err)
		}
	}
	delete(c.mirror[group], sk)
	return nil
}

func (c *Cache) mirrorPut(group, sk string, m mirrored) {
	g, ok := c.mirror[group]
	if !ok {
		g = make(map[string]mirrored)
		c.mirror[group] = g
	}
	g[sk] = m
	c.unmemo(group, sk)
}

func (c *Cache) memoize(group, sk string) {
	g, ok := c.memo[group]
	if !ok {
		g = make(map[string]struct{})
		c.memo[group] = g
	}
	g[sk] = struct{}{}
}

func (c *Cache) unmemo(group, sk string) { delete(c.memo[group], sk) }

func (c *Cache) isNonPersistent(group string) bool {
	_, ok := c.nonPersistent[group]
	return ok
}

// copyOut returns m.val, or a fresh decode of m.raw for reference-like values.
func (c *Cache) copyOut(m mirrored) any {
	if !referenceLike(m.val) {
		return m.val
	}
	v, err := c.codec.Decode(m.raw)
	if err != nil {
		return nil
	}
	return v
}

func referenceLike(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Struct, reflect.Array, reflect.Interface:
		return true
	default:
		return false
	}
}

func (c *Cache) storeErr(op, group, key string, err error) error {
	c.hooks.StoreError(op, group, key, err)
	c.log.Error("store call failed", Fields{"op": op, "group": group, "key": key, "err": err})
	return &StoreError{Op: op, Group: group, Key: key, Err: err}
}

func ttlLabel(now, expiresAt time.Time) string {
	return strings.TrimSpace(humanize.RelTime(now, expiresAt, "", ""))
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
