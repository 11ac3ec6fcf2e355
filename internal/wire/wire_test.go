package wire

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func mustDecodeRow(t *testing.T, b []byte) Row {
	t.Helper()
	r, err := DecodeRow(b)
	if err != nil {
		t.Fatalf("DecodeRow error: %v", err)
	}
	return r
}

func mustEncodeRow(t *testing.T, r Row) []byte {
	t.Helper()
	b, err := EncodeRow(r)
	if err != nil {
		t.Fatalf("EncodeRow error: %v", err)
	}
	return b
}

func TestRowRTEmptyAndNonEmpty(t *testing.T) {
	exp := time.Unix(1700000000, 123)
	cases := []Row{
		{},
		{Size: 5, TTLLabel: "never", Payload: []byte("hello")},
		{ExpiresAt: exp, Size: 3, TTLLabel: "1 hour from now", Payload: []byte{0, 1, 2}},
	}
	for _, tc := range cases {
		got := mustDecodeRow(t, mustEncodeRow(t, tc))
		if !got.ExpiresAt.Equal(tc.ExpiresAt) {
			t.Fatalf("exp mismatch: got %v want %v", got.ExpiresAt, tc.ExpiresAt)
		}
		if got.Size != tc.Size || got.TTLLabel != tc.TTLLabel {
			t.Fatalf("meta mismatch: got %+v want %+v", got, tc)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestRowRejectsTrailingBytes(t *testing.T) {
	enc := mustEncodeRow(t, Row{Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := DecodeRow(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestRowCorruptHeadersAndLengths(t *testing.T) {
	enc := mustEncodeRow(t, Row{TTLLabel: "never", Payload: []byte("abc")})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeRow(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeRow(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindSchema
	if _, err := DecodeRow(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	if _, err := DecodeRow(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated payload")
	}
	if _, err := DecodeRow(enc[:10]); err == nil {
		t.Fatalf("expected error on truncated header")
	}
}

func TestEncodeRowLabelLimit(t *testing.T) {
	if _, err := EncodeRow(Row{TTLLabel: strings.Repeat("a", 0x10000)}); err == nil {
		t.Fatalf("expected error on label > 0xFFFF")
	}
	if _, err := EncodeRow(Row{TTLLabel: strings.Repeat("b", 0xFFFF)}); err != nil {
		t.Fatalf("boundary label should encode, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	never := mustEncodeRow(t, Row{Payload: []byte("v")})
	past := mustEncodeRow(t, Row{ExpiresAt: now.Add(-time.Second), Payload: []byte("v")})
	exact := mustEncodeRow(t, Row{ExpiresAt: now, Payload: []byte("v")})

	for name, tc := range map[string]struct {
		b    []byte
		want bool
	}{
		"never": {never, false},
		"past":  {past, true},
		"exact": {exact, false}, // strictly less than now
	} {
		got, err := Expired(tc.b, now)
		if err != nil || got != tc.want {
			t.Fatalf("%s: got=(%v,%v) want %v", name, got, err, tc.want)
		}
	}
	if _, err := Expired([]byte("junk"), now); err == nil {
		t.Fatalf("expected error on junk")
	}
}

func TestSchemaRT(t *testing.T) {
	v, err := DecodeSchema(EncodeSchema(3))
	if err != nil || v != 3 {
		t.Fatalf("got=(%d,%v) want 3", v, err)
	}
	if _, err := DecodeSchema(append(EncodeSchema(3), 0)); err == nil {
		t.Fatalf("expected error on trailing byte")
	}
}

func TestRowKeyDoesNotAlias(t *testing.T) {
	a := RowKey("ns", "a:b", "c")
	b := RowKey("ns", "a", "b:c")
	if a == b {
		t.Fatalf("row keys alias: %q", a)
	}
	if !strings.HasPrefix(a, RowPrefix("ns")) {
		t.Fatalf("row key %q lacks prefix %q", a, RowPrefix("ns"))
	}
}
