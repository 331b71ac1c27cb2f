package unphp

import (
	"math"
	"strconv"
	"unicode/utf8"
)

// Kind identifies the variant held by a Value.
type Kind string

const (
	// KindNull is the PHP null value (`N;`).
	KindNull Kind = "null"

	// KindBool is a boolean (`b:0;` / `b:1;`).
	KindBool Kind = "bool"

	// KindInt is a signed integer (`i:...;`).
	KindInt Kind = "int"

	// KindFloat is a double (`d:...;`).
	KindFloat Kind = "float"

	// KindString is a byte-length-prefixed string (`s:<len>:"...";`).
	KindString Kind = "string"

	// KindList is an array whose keys were exactly 0..n-1 in order.
	KindList Kind = "list"

	// KindMap is any other array, with insertion order preserved.
	KindMap Kind = "map"
)

// Value is a decoded PHP-serialized value. Exactly one variant field is
// meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Value
	Map   *OrderedMap
}

// NewNull returns a null Value.
func NewNull() Value { return Value{Kind: KindNull} }

// NewBool returns a boolean Value.
func NewBool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NewInt returns an integer Value.
func NewInt(n int64) Value { return Value{Kind: KindInt, Int: n} }

// NewFloat returns a float Value.
func NewFloat(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// NewString returns a string Value.
func NewString(s string) Value { return Value{Kind: KindString, Str: s} }

// NewList returns a list Value.
func NewList(items []Value) Value { return Value{Kind: KindList, List: items} }

// NewMap returns a map Value.
func NewMap(m *OrderedMap) Value { return Value{Kind: KindMap, Map: m} }

// MapEntry is a single key/value pair of an OrderedMap. Keys are always
// KindInt or KindString.
type MapEntry struct {
	Key Value
	Val Value
}

// OrderedMap preserves the source order of array entries so that JSON output
// is deterministic. A write to an existing key replaces the value in place
// (last write wins), keeping the position of the first write.
type OrderedMap struct {
	entries []MapEntry
	index   map[string]int
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{index: map[string]int{}}
}

// Set inserts or replaces the value for key.
func (m *OrderedMap) Set(key, val Value) {
	ik := indexKey(key)
	if i, ok := m.index[ik]; ok {
		m.entries[i].Val = val
		return
	}
	m.index[ik] = len(m.entries)
	m.entries = append(m.entries, MapEntry{Key: key, Val: val})
}

// Get returns the value stored under key, if any.
func (m *OrderedMap) Get(key Value) (Value, bool) {
	i, ok := m.index[indexKey(key)]
	if !ok {
		return Value{}, false
	}
	return m.entries[i].Val, true
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.entries) }

// Entries returns the entries in insertion order. The slice is shared with
// the map and must not be mutated.
func (m *OrderedMap) Entries() []MapEntry { return m.entries }

// indexKey keeps integer and string keys distinct even when they render to
// the same JSON object key ("5" vs 5), matching associative-array semantics.
func indexKey(key Value) string {
	if key.Kind == KindInt {
		return "i\x00" + strconv.FormatInt(key.Int, 10)
	}
	return "s\x00" + key.Str
}

// JSON renders the value as compact JSON text. Object keys are the
// stringified form of integer or string keys; non-ASCII text is emitted
// verbatim and HTML characters are not escaped.
func (v Value) JSON() []byte {
	return v.appendJSON(nil)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.JSON(), nil
}

func (v Value) appendJSON(dst []byte) []byte {
	switch v.Kind {
	case KindBool:
		return strconv.AppendBool(dst, v.Bool)
	case KindInt:
		return strconv.AppendInt(dst, v.Int, 10)
	case KindFloat:
		return appendFloat(dst, v.Float)
	case KindString:
		return appendQuoted(dst, v.Str)
	case KindList:
		dst = append(dst, '[')
		for i, item := range v.List {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = item.appendJSON(dst)
		}
		return append(dst, ']')
	case KindMap:
		dst = append(dst, '{')
		for i, e := range v.Map.Entries() {
			if i > 0 {
				dst = append(dst, ',')
			}
			if e.Key.Kind == KindInt {
				dst = append(dst, '"')
				dst = strconv.AppendInt(dst, e.Key.Int, 10)
				dst = append(dst, '"')
			} else {
				dst = appendQuoted(dst, e.Key.Str)
			}
			dst = append(dst, ':')
			dst = e.Val.appendJSON(dst)
		}
		return append(dst, '}')
	default:
		return append(dst, "null"...)
	}
}

func appendFloat(dst []byte, f float64) []byte {
	// NaN and infinity have no JSON representation.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, "null"...)
	}
	// Shortest representation that round-trips, same as encoding/json.
	abs := f
	if abs < 0 {
		abs = -abs
	}
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	return strconv.AppendFloat(dst, f, format, -1, 64)
}

// appendQuoted writes s as a JSON string without escaping HTML characters
// or non-ASCII runes.
func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				dst = append(dst, `�`...)
			} else {
				dst = append(dst, s[i:i+size]...)
			}
			i += size
			continue
		}
		switch {
		case c == '"':
			dst = append(dst, '\\', '"')
		case c == '\\':
			dst = append(dst, '\\', '\\')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == '\t':
			dst = append(dst, '\\', 't')
		case c < 0x20:
			const hex = "0123456789abcdef"
			dst = append(dst, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
		default:
			dst = append(dst, c)
		}
		i++
	}
	return append(dst, '"')
}
