package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"time"
)

const (
	version    byte = 1
	kindRow    byte = 1
	kindSchema byte = 2
)

var (
	ErrCorrupt = errors.New("dbcache: corrupt row")
	magic4     = [...]byte{'D', 'B', 'C', 'R'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Row is the framed form of a durable row for key-value backed providers.
type Row struct {
	ExpiresAt time.Time // zero => never
	Size      uint32
	TTLLabel  string
	Payload   []byte
}

// Row: magic(4) | ver(1) | kind(1=row) | exp(i64 be, unix nanos; 0=never) | size(u32 be) |
// labelLen(u16 be) | label | vlen(u32 be) | payload(vlen)
func EncodeRow(r Row) ([]byte, error) {
	if len(r.TTLLabel) > 0xFFFF {
		return nil, errors.New("dbcache: ttl label too long")
	}
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + 2 + len(r.TTLLabel) + 4 + len(r.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindRow)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	var exp int64
	switch {
	case r.ExpiresAt.IsZero():
	case r.ExpiresAt.After(time.Unix(0, math.MaxInt64)):
		exp = math.MaxInt64
	default:
		exp = r.ExpiresAt.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(exp))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], r.Size)
	buf.Write(u4[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(r.TTLLabel)))
	buf.Write(u2[:])
	buf.WriteString(r.TTLLabel)

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
	buf.Write(u4[:])
	buf.Write(r.Payload)
	return buf.Bytes(), nil
}

func DecodeRow(b []byte) (Row, error) {
	const hdr = 4 + 1 + 1 + 8 + 4 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindRow {
		return Row{}, ErrCorrupt
	}
	off := 6

	var r Row
	if exp := int64(binary.BigEndian.Uint64(b[off : off+8])); exp != 0 {
		r.ExpiresAt = time.Unix(0, exp)
	}
	off += 8

	r.Size = binary.BigEndian.Uint32(b[off : off+4])
	off += 4

	llen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if llen > len(b)-off {
		return Row{}, ErrCorrupt
	}
	r.TTLLabel = string(b[off : off+llen])
	off += llen

	if off+4 > len(b) {
		return Row{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict: no trailing bytes
		return Row{}, ErrCorrupt
	}
	r.Payload = b[off : off+vlen]
	return r, nil
}

// Expired reports whether a framed row carries an expiry strictly before now.
// Only the header is inspected.
func Expired(b []byte, now time.Time) (bool, error) {
	if len(b) < 14 || !hasMagic(b) || b[4] != version || b[5] != kindRow {
		return false, ErrCorrupt
	}
	exp := int64(binary.BigEndian.Uint64(b[6:14]))
	return exp != 0 && exp < now.UnixNano(), nil
}

// Schema: magic(4) | ver(1) | kind(2=schema) | version(u32 be)
func EncodeSchema(v int) []byte {
	b := make([]byte, 0, 10)
	b = append(b, magic4[:]...)
	b = append(b, version, kindSchema)
	return binary.BigEndian.AppendUint32(b, uint32(v))
}

func DecodeSchema(b []byte) (int, error) {
	if len(b) != 10 || !hasMagic(b) || b[4] != version || b[5] != kindSchema {
		return 0, ErrCorrupt
	}
	return int(binary.BigEndian.Uint32(b[6:10])), nil
}

// RowKey builds a collision-free storage key for (group, key).
// The group is length-prefixed so that separators inside group or key cannot alias.
func RowKey(ns, group, key string) string {
	return ns + ":r:" + strconv.Itoa(len(group)) + ":" + group + ":" + key
}

// RowPrefix is the common prefix of every RowKey in ns.
func RowPrefix(ns string) string { return ns + ":r:" }

// SchemaKey is where the schema version of ns is recorded.
func SchemaKey(ns string) string { return ns + ":schema" }
