// Package vpack implements a minimal self-describing binary tagged value
// format (a VelocyPack-equivalent) used for document payload comparisons
// and as key suffixes for index values.
//
// The encoding is intentionally small: null, bool, number, string and
// array. It is not wire-compatible with any external VelocyPack
// implementation; it only needs to satisfy the total ordering and
// round-trip properties the storage-engine core relies on.
package vpack

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Frrank1/arangodb/internal/storeerr"
)

// Kind identifies the dynamic type of a Value.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
)

// class orders the Kinds for total comparison: Null < Bool < Number <
// String < Array, matching VelocyPack's "numbers precede strings" rule.
func (k Kind) class() int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindNumber:
		return 2
	case KindString:
		return 3
	case KindArray:
		return 4
	default:
		return 5
	}
}

// Value is an in-memory decoded vpack value.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	Arr  []Value
}

func Null() Value                 { return Value{Kind: KindNull} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Number(n float64) Value       { return Value{Kind: KindNumber, Num: n} }
func String(s string) Value        { return Value{Kind: KindString, Str: s} }
func Array(items ...Value) Value   { return Value{Kind: KindArray, Arr: items} }

const (
	tagNull   byte = 0x00
	tagFalse  byte = 0x01
	tagTrue   byte = 0x02
	tagNumber byte = 0x03
	tagString byte = 0x04
	tagArray  byte = 0x05
)

// Encode serializes v into its tagged binary form.
func Encode(v Value) []byte {
	var buf []byte
	switch v.Kind {
	case KindNull:
		buf = append(buf, tagNull)
	case KindBool:
		if v.Bool {
			buf = append(buf, tagTrue)
		} else {
			buf = append(buf, tagFalse)
		}
	case KindNumber:
		buf = append(buf, tagNumber)
		var bits [8]byte
		binary.BigEndian.PutUint64(bits[:], math.Float64bits(v.Num))
		buf = append(buf, bits[:]...)
	case KindString:
		buf = append(buf, tagString)
		var lenBuf [10]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(v.Str)))
		buf = append(buf, lenBuf[:n]...)
		buf = append(buf, []byte(v.Str)...)
	case KindArray:
		buf = append(buf, tagArray)
		var lenBuf [10]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(v.Arr)))
		buf = append(buf, lenBuf[:n]...)
		for _, item := range v.Arr {
			buf = append(buf, Encode(item)...)
		}
	}
	return buf
}

// Decode parses one Value from the front of data, returning the value and
// the number of bytes consumed.
func Decode(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return Value{}, 0, storeerr.NewCorruptedJson("vpack: empty buffer", nil)
	}
	switch data[0] {
	case tagNull:
		return Null(), 1, nil
	case tagFalse:
		return Bool(false), 1, nil
	case tagTrue:
		return Bool(true), 1, nil
	case tagNumber:
		if len(data) < 9 {
			return Value{}, 0, storeerr.NewCorruptedJson("vpack: truncated number", nil)
		}
		bits := binary.BigEndian.Uint64(data[1:9])
		return Number(math.Float64frombits(bits)), 9, nil
	case tagString:
		strLen, n, err := decodeUvarint(data[1:])
		if err != nil {
			return Value{}, 0, err
		}
		start := 1 + n
		end := start + int(strLen)
		if end > len(data) {
			return Value{}, 0, storeerr.NewCorruptedJson("vpack: truncated string", nil)
		}
		return String(string(data[start:end])), end, nil
	case tagArray:
		count, n, err := decodeUvarint(data[1:])
		if err != nil {
			return Value{}, 0, err
		}
		pos := 1 + n
		items := make([]Value, 0, count)
		for i := uint64(0); i < count; i++ {
			if pos >= len(data) {
				return Value{}, 0, storeerr.NewCorruptedJson("vpack: truncated array", nil)
			}
			item, consumed, err := Decode(data[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, item)
			pos += consumed
		}
		return Array(items...), pos, nil
	default:
		return Value{}, 0, storeerr.NewCorruptedJson(fmt.Sprintf("vpack: unknown tag 0x%02x", data[0]), nil)
	}
}

func decodeUvarint(data []byte) (uint64, int, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, 0, storeerr.NewCorruptedJson("vpack: malformed varint", nil)
	}
	return v, n, nil
}

// Compare decodes a and b and returns -1, 0 or 1 following the total
// order: Null < Bool(false < true) < Number < String < Array, arrays
// compared element-wise with shorter-prefix-is-less.
func Compare(a, b []byte) (int, error) {
	va, _, err := Decode(a)
	if err != nil {
		return 0, err
	}
	vb, _, err := Decode(b)
	if err != nil {
		return 0, err
	}
	return CompareValues(va, vb), nil
}

// CompareValues compares two already-decoded values by the same total
// order as Compare.
func CompareValues(a, b Value) int {
	ca, cb := a.Kind.class(), b.Kind.class()
	if ca != cb {
		if ca < cb {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindNull:
		return 0
	case KindBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool && b.Bool {
			return -1
		}
		return 1
	case KindNumber:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	case KindArray:
		n := len(a.Arr)
		if len(b.Arr) < n {
			n = len(b.Arr)
		}
		for i := 0; i < n; i++ {
			if c := CompareValues(a.Arr[i], b.Arr[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a.Arr) < len(b.Arr):
			return -1
		case len(a.Arr) > len(b.Arr):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}
