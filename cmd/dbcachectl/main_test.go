package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctl struct {
	t    *testing.T
	base []string
}

func newCtl(t *testing.T) *ctl {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	return &ctl{t: t, base: []string{"dbcachectl", "--backend", "sqlite", "--sqlite-path", path}}
}

func (c *ctl) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	err := run(append(append([]string{}, c.base...), args...), &out)
	return strings.TrimSpace(out.String()), err
}

func (c *ctl) must(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "dbcachectl %v", args)
	return out
}

func TestSetGetDelete(t *testing.T) {
	c := newCtl(t)

	assert.Equal(t, "ok", c.must("--group", "theme", "set", "color", "blue"))
	assert.Equal(t, "ok", c.must("--group", "theme", "set", "palette", `{"primary":"red","shades":[1,2]}`))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.must("--group", "theme", "get", "color", "palette", "missing")), &got))
	assert.Equal(t, "blue", got["color"])
	assert.Equal(t, map[string]any{"primary": "red", "shades": []any{1.0, 2.0}}, got["palette"])
	assert.Nil(t, got["missing"])

	assert.JSONEq(t, `{"deleted":true}`, c.must("--group", "theme", "delete", "color"))
	assert.JSONEq(t, `{"deleted":false}`, c.must("--group", "theme", "delete", "color"))
}

func TestCounters(t *testing.T) {
	c := newCtl(t)

	c.must("set", "n", "5")
	assert.Equal(t, "8", c.must("incr", "n", "3"))
	assert.Equal(t, "0", c.must("decr", "n", "10"))
	assert.Equal(t, "1", c.must("incr", "n"))

	_, err := c.run("incr", "absent")
	assert.ErrorContains(t, err, "not found")
	_, err = c.run("incr", "n", "x")
	assert.ErrorContains(t, err, "invalid offset")
}

func TestTenantScoping(t *testing.T) {
	c := newCtl(t)

	c.must("--tenant", "7", "set", "k", "mine")
	out := c.must("--tenant", "8", "get", "k")
	assert.JSONEq(t, `{"k":null}`, out)
	out = c.must("--tenant", "7", "get", "k")
	assert.JSONEq(t, `{"k":"mine"}`, out)
}

func TestStatsFlushAndExpire(t *testing.T) {
	c := newCtl(t)
	c.must("set", "a", "1")

	var s struct {
		Hits, Misses int64
	}
	require.NoError(t, json.Unmarshal([]byte(c.must("stats", "a", "b")), &s))
	assert.EqualValues(t, 1, s.Hits)
	assert.EqualValues(t, 1, s.Misses)

	assert.Equal(t, "removed 0", c.must("expire"))
	assert.Equal(t, "flushed", c.must("flush"))
	assert.JSONEq(t, `{"a":null}`, c.must("get", "a"))
}

func TestAdminCommands(t *testing.T) {
	c := newCtl(t)
	c.must("set", "a", "1")

	assert.Equal(t, "reset", c.must("reset"))
	assert.JSONEq(t, `{"a":null}`, c.must("get", "a"))

	_, err := c.run("drop")
	assert.ErrorContains(t, err, "--yes")
	assert.Equal(t, "dropped", c.must("drop", "--yes"))

	// the next session re-provisions the table
	assert.Equal(t, "ok", c.must("set", "a", "2"))
}

func TestUnknownBackend(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"dbcachectl", "--backend", "mongo", "flush"}, &out)
	assert.ErrorContains(t, err, "unknown backend")
}
