//go:build go1.21

package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/dbcache"
)

func TestSlogLoggerStableAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})
	l := New(stdslog.New(h))

	l.Debug("suppressed", dbcache.Fields{"a": 1})
	l.Info("expired rows swept", dbcache.Fields{"removed": 3, "group": "g"})

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("debug line emitted at info level: %s", out)
	}
	if !strings.Contains(out, "dbcache.group=g dbcache.removed=3") {
		t.Fatalf("attrs not grouped/sorted: %s", out)
	}
}
