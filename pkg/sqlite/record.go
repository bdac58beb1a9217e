// pkg/sqlite/record.go

package sqlite

import (
	"bytes"
	"math"
)

// getVarint decodes a SQLite varint (1-9 bytes, big-endian base 128)
// and returns the value with the number of bytes consumed, or 0 bytes
// on a truncated buffer.
func getVarint(buf []byte) (int64, int) {
	var v uint64
	for i := 0; i < 8; i++ {
		if i >= len(buf) {
			return 0, 0
		}
		v = v<<7 | uint64(buf[i]&0x7f)
		if buf[i] < 0x80 {
			return int64(v), i + 1
		}
	}
	if len(buf) < 9 {
		return 0, 0
	}
	v = v<<8 | uint64(buf[8])
	return int64(v), 9
}

var intSizes = [7]int{0, 1, 2, 3, 4, 6, 8}

// decodeRecord decodes a record payload into Go values: nil, int64,
// float64, string or []byte per column.
func decodeRecord(payload []byte) ([]interface{}, error) {
	hlen, n := getVarint(payload)
	if n == 0 || hlen < int64(n) || hlen > int64(len(payload)) {
		return nil, corrupt(0, "bad record header length %d", hlen)
	}
	var types []int64
	pos := n
	for pos < int(hlen) {
		st, m := getVarint(payload[pos:hlen])
		if m == 0 {
			return nil, corrupt(0, "truncated record header")
		}
		pos += m
		types = append(types, st)
	}

	vals := make([]interface{}, 0, len(types))
	body := int(hlen)
	for _, st := range types {
		switch {
		case st == 0:
			vals = append(vals, nil)
		case st >= 1 && st <= 6:
			size := intSizes[st]
			if body+size > len(payload) {
				return nil, corrupt(0, "truncated integer column")
			}
			var u uint64
			for _, c := range payload[body : body+size] {
				u = u<<8 | uint64(c)
			}
			shift := uint(64 - 8*size)
			vals = append(vals, int64(u<<shift)>>shift)
			body += size
		case st == 7:
			if body+8 > len(payload) {
				return nil, corrupt(0, "truncated float column")
			}
			var u uint64
			for _, c := range payload[body : body+8] {
				u = u<<8 | uint64(c)
			}
			vals = append(vals, math.Float64frombits(u))
			body += 8
		case st == 8:
			vals = append(vals, int64(0))
		case st == 9:
			vals = append(vals, int64(1))
		case st >= 12 && st%2 == 0:
			size := int(st-12) / 2
			if body+size > len(payload) {
				return nil, corrupt(0, "truncated blob column")
			}
			b := make([]byte, size)
			copy(b, payload[body:body+size])
			vals = append(vals, b)
			body += size
		case st >= 13:
			size := int(st-13) / 2
			if body+size > len(payload) {
				return nil, corrupt(0, "truncated text column")
			}
			vals = append(vals, string(payload[body:body+size]))
			body += size
		default:
			return nil, corrupt(0, "reserved serial type %d", st)
		}
	}
	return vals, nil
}

func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	case string:
		return 2
	default:
		return 3
	}
}

// cmpValues orders two column values the way SQLite does with the
// BINARY collation: NULL < numbers < text < blob.
func cmpValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return 0
	case 1:
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 2:
		return bytes.Compare([]byte(a.(string)), []byte(b.(string)))
	default:
		return bytes.Compare(a.([]byte), b.([]byte))
	}
}

// cmpPrefix compares the leading columns of an index key with prefix;
// an empty prefix matches every key.
func cmpPrefix(key, prefix []interface{}) int {
	for i, p := range prefix {
		if i >= len(key) {
			return -1
		}
		if c := cmpValues(key[i], p); c != 0 {
			return c
		}
	}
	return 0
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// AsInt converts an integer-typed column value, returning 0 for NULL.
func AsInt(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	}
	return 0
}

// AsFloat converts a numeric column value, returning 0 for NULL.
func AsFloat(v interface{}) float64 {
	return asFloat(v)
}

// AsString converts a text column value, returning "" for NULL.
func AsString(v interface{}) string {
	return asString(v)
}
