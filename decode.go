package unphp

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxRepairLookahead bounds the forward scan used to repair broken string
// length prefixes, so that adversarial input cannot stall the decoder.
const maxRepairLookahead = 1_000_000

// DiagnosticKind classifies a non-fatal anomaly found during one decode.
type DiagnosticKind string

const (
	// DiagnosticStringRepairShort means a string declared more bytes than
	// the input had left and a closing terminator was recovered by scanning.
	DiagnosticStringRepairShort DiagnosticKind = "string_length_repair_short"

	// DiagnosticStringRepairMismatch means a string's declared length did
	// not line up with its terminator and the payload was recovered with a
	// different length.
	DiagnosticStringRepairMismatch DiagnosticKind = "string_length_repair_mismatch"

	// DiagnosticTrailingData means non-whitespace bytes followed the root
	// value.
	DiagnosticTrailingData DiagnosticKind = "trailing_data"
)

// Diagnostic records a repair or anomaly encountered while decoding. It is
// scoped to a single Decode call and never shared across calls.
type Diagnostic struct {
	Kind           DiagnosticKind `json:"kind"`
	Offset         int            `json:"offset"`
	DeclaredLength int            `json:"declared_length,omitempty"`
	ActualLength   int            `json:"actual_length,omitempty"`
	BytesRemaining int            `json:"bytes_remaining,omitempty"`
}

// ParseError is a fatal grammar violation. Offset is the byte position of
// the failure in the decoded input; Context is a rendered snippet filled in
// by Convert for display, empty when the error comes straight from Decode.
type ParseError struct {
	Message string
	Offset  int
	Context string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (at byte %d)", e.Message, e.Offset)
}

// Decode parses a PHP-serialized value from data. When lenient is true,
// string length mismatches are repaired by a bounded forward scan and
// reported as diagnostics; grammar-shape errors are fatal regardless.
// Trailing non-whitespace bytes after the root value are reported as a
// trailing_data diagnostic, not an error.
func Decode(data []byte, lenient bool) (Value, []Diagnostic, error) {
	d := &decoder{buf: data, lenient: lenient}
	v, err := d.value()
	if err != nil {
		return Value{}, nil, err
	}
	if rest := bytes.TrimSpace(d.buf[d.pos:]); len(rest) > 0 {
		d.diags = append(d.diags, Diagnostic{
			Kind:           DiagnosticTrailingData,
			Offset:         d.pos,
			BytesRemaining: len(d.buf) - d.pos,
		})
	}
	return v, d.diags, nil
}

// DecodeString is Decode over the UTF-8 bytes of s.
func DecodeString(s string, lenient bool) (Value, []Diagnostic, error) {
	return Decode([]byte(s), lenient)
}

// decoder walks the input with a single advancing offset. The only
// backwards-looking operation is the bounded repair scan, which commits
// nothing until it finds a viable terminator.
type decoder struct {
	buf     []byte
	pos     int
	lenient bool
	diags   []Diagnostic
}

func (d *decoder) errf(offset int, format string, args ...any) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Offset: offset}
}

// readUntil consumes bytes up to and including delim, returning the bytes
// before it.
func (d *decoder) readUntil(delim byte) ([]byte, error) {
	j := bytes.IndexByte(d.buf[d.pos:], delim)
	if j < 0 {
		return nil, d.errf(d.pos, "unexpected end: delimiter not found")
	}
	tok := d.buf[d.pos : d.pos+j]
	d.pos += j + 1
	return tok, nil
}

func (d *decoder) value() (Value, error) {
	tag := d.lead()
	switch tag {
	case "N;":
		d.pos += 2
		return NewNull(), nil
	case "b:":
		d.pos += 2
		return d.boolean()
	case "i:":
		d.pos += 2
		n, err := d.integer()
		if err != nil {
			return Value{}, err
		}
		return NewInt(n), nil
	case "d:":
		d.pos += 2
		return d.float()
	case "s:":
		d.pos += 2
		return d.str()
	case "a:":
		d.pos += 2
		return d.container()
	default:
		return Value{}, d.errf(d.pos, "unsupported value type: %q", d.preview(10))
	}
}

// key parses a container key, which may only be an integer or a string.
func (d *decoder) key() (Value, error) {
	switch d.lead() {
	case "i:":
		d.pos += 2
		n, err := d.integer()
		if err != nil {
			return Value{}, err
		}
		return NewInt(n), nil
	case "s:":
		d.pos += 2
		return d.str()
	default:
		return Value{}, d.errf(d.pos, "unsupported key type: %q", d.preview(2))
	}
}

// lead returns the two-byte tag at the cursor, or "" near end of input.
func (d *decoder) lead() string {
	if d.pos+2 > len(d.buf) {
		return ""
	}
	return string(d.buf[d.pos : d.pos+2])
}

// preview returns up to n raw bytes at the cursor for error messages.
func (d *decoder) preview(n int) []byte {
	end := d.pos + n
	if end > len(d.buf) {
		end = len(d.buf)
	}
	return d.buf[d.pos:end]
}

func (d *decoder) integer() (int64, error) {
	tok, err := d.readUntil(';')
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(strings.TrimSpace(string(tok)), 10, 64)
	if perr != nil {
		return 0, d.errf(d.pos, "invalid integer: %q", tok)
	}
	return n, nil
}

func (d *decoder) float() (Value, error) {
	tok, err := d.readUntil(';')
	if err != nil {
		return Value{}, err
	}
	f, perr := strconv.ParseFloat(strings.TrimSpace(string(tok)), 64)
	if perr != nil {
		return Value{}, d.errf(d.pos, "invalid float: %q", tok)
	}
	return NewFloat(f), nil
}

func (d *decoder) boolean() (Value, error) {
	rest := d.buf[d.pos:]
	if len(rest) < 2 || rest[1] != ';' || (rest[0] != '0' && rest[0] != '1') {
		return Value{}, d.errf(d.pos, "invalid boolean token (expected 0; or 1;)")
	}
	v := rest[0] == '1'
	d.pos += 2
	return NewBool(v), nil
}

// str parses `<len>:"<len bytes>";` with the `s:` tag already consumed.
// The declared length counts bytes, not characters: the payload is sliced
// raw and only decoded to text afterwards.
func (d *decoder) str() (Value, error) {
	lenTok, err := d.readUntil(':')
	if err != nil {
		return Value{}, err
	}
	declared, perr := strconv.Atoi(strings.TrimSpace(string(lenTok)))
	if perr != nil || declared < 0 {
		return Value{}, d.errf(d.pos, "invalid string length: %q", lenTok)
	}
	if d.pos >= len(d.buf) || d.buf[d.pos] != '"' {
		return Value{}, d.errf(d.pos, "expected opening quote for string")
	}
	d.pos++
	start := d.pos

	if len(d.buf)-start < declared {
		if !d.lenient {
			return Value{}, d.errf(start, "string length mismatch (too short)")
		}
		payload, resume, ok := d.scanClose(start)
		if !ok {
			return Value{}, d.errf(start, "string length mismatch and no viable closing found")
		}
		d.diags = append(d.diags, Diagnostic{
			Kind:           DiagnosticStringRepairShort,
			Offset:         start,
			DeclaredLength: declared,
			ActualLength:   len(payload),
		})
		d.pos = resume
		return NewString(decodeText(payload)), nil
	}

	end := start + declared
	payload := d.buf[start:end]
	j := end
	if j < len(d.buf) && d.buf[j] == '"' {
		j++
		for j < len(d.buf) && asciiSpace(d.buf[j]) {
			j++
		}
		if j < len(d.buf) && d.buf[j] == ';' {
			d.pos = j + 1
			return NewString(decodeText(payload)), nil
		}
	}
	if d.lenient {
		repaired, resume, ok := d.scanClose(start)
		if !ok {
			return Value{}, d.errf(j, `expected closing '";' for string`)
		}
		if len(repaired) != declared {
			d.diags = append(d.diags, Diagnostic{
				Kind:           DiagnosticStringRepairMismatch,
				Offset:         start,
				DeclaredLength: declared,
				ActualLength:   len(repaired),
			})
		}
		d.pos = resume
		return NewString(decodeText(repaired)), nil
	}
	return Value{}, d.errf(j, `expected closing '";' for string`)
}

// scanClose is the repair strategy: scan forward from start, within the
// lookahead bound, for a `"` followed by optional ASCII whitespace and `;`.
// The bytes before that quote become the payload and parsing resumes after
// the semicolon. A payload that itself contains such a sequence defeats the
// heuristic; that is an accepted false-negative risk.
func (d *decoder) scanClose(start int) (payload []byte, resume int, ok bool) {
	limit := start + maxRepairLookahead
	if limit > len(d.buf) {
		limit = len(d.buf)
	}
	for k := start; k < limit; k++ {
		q := bytes.IndexByte(d.buf[k:limit], '"')
		if q < 0 {
			return nil, 0, false
		}
		k += q
		j := k + 1
		for j < len(d.buf) && asciiSpace(d.buf[j]) {
			j++
		}
		if j < len(d.buf) && d.buf[j] == ';' {
			return d.buf[start:k], j + 1, true
		}
	}
	return nil, 0, false
}

// container parses `<count>:{key value ...}` with the `a:` tag already
// consumed. The wire format encodes lists and associative arrays the same
// way; the distinction is re-derived from the keys afterwards.
func (d *decoder) container() (Value, error) {
	countTok, err := d.readUntil(':')
	if err != nil {
		return Value{}, err
	}
	count, perr := strconv.Atoi(strings.TrimSpace(string(countTok)))
	if perr != nil {
		return Value{}, d.errf(d.pos, "invalid array count: %q", countTok)
	}
	if d.pos >= len(d.buf) || d.buf[d.pos] != '{' {
		return Value{}, d.errf(d.pos, "expected '{' after array count")
	}
	d.pos++

	var entries []MapEntry
	for n := 0; n < count; n++ {
		k, err := d.key()
		if err != nil {
			return Value{}, err
		}
		v, err := d.value()
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, MapEntry{Key: k, Val: v})
	}
	if d.pos >= len(d.buf) || d.buf[d.pos] != '}' {
		return Value{}, d.errf(d.pos, "expected '}' to close array")
	}
	d.pos++

	if isSequential(entries) {
		items := make([]Value, len(entries))
		for i, e := range entries {
			items[i] = e.Val
		}
		return NewList(items), nil
	}
	m := NewOrderedMap()
	for _, e := range entries {
		m.Set(e.Key, e.Val)
	}
	return NewMap(m), nil
}

// isSequential reports whether the keys are exactly 0..n-1 in parse order.
// An empty container does not qualify: it stays a map, mirroring how the
// format's associative arrays degrade.
func isSequential(entries []MapEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for i, e := range entries {
		if e.Key.Kind != KindInt || e.Key.Int != int64(i) {
			return false
		}
	}
	return true
}

func asciiSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// decodeText converts a raw payload slice to text. Length-prefixed slices
// can land on encoding boundaries, so invalid UTF-8 falls back to a
// one-rune-per-byte (Latin-1) reading instead of failing.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
