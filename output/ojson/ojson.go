// Package ojson provides append-style JSON byte-buffer helpers for the
// output emitters, modeled directly on the teacher's json package (its
// Hex/U32/Bool/S/Q/SQ helpers) rather than round-tripping through
// encoding/json for output that's built incrementally, field by field.
package ojson

import (
	"strconv"
)

// AppendString appends a double-quoted, escaped JSON string.
func AppendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\\':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

// AppendU64 appends an unsigned integer verbatim (no quotes).
func AppendU64(dst []byte, v uint64) []byte {
	return strconv.AppendUint(dst, v, 10)
}

// AppendI64 appends a signed integer verbatim (no quotes).
func AppendI64(dst []byte, v int64) []byte {
	return strconv.AppendInt(dst, v, 10)
}

// AppendFloat appends v rounded to prec decimal places.
func AppendFloat(dst []byte, v float64, prec int) []byte {
	return strconv.AppendFloat(dst, v, 'f', prec, 64)
}

// AppendBool appends true/false verbatim.
func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, "true"...)
	}
	return append(dst, "false"...)
}

// AppendKey appends "key": with no trailing comma.
func AppendKey(dst []byte, key string) []byte {
	dst = AppendString(dst, key)
	return append(dst, ':', ' ')
}
