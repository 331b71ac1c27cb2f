// Package loosejson applies a small, conservative set of textual rewrites
// to almost-JSON before a strict parse attempt: single-quoted keys and
// string values become double-quoted, and a trailing comma before a closing
// bracket is removed. The rewrites are order-dependent and deliberately
// minimal; anything the strict parser still rejects afterwards is a
// failure, with no further heuristics.
package loosejson

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrUnrepairable is returned when the rewritten text still fails to parse.
var ErrUnrepairable = errors.New("loosejson: text is not repairable")

var (
	// 'key': -> "key": for simple alphanumeric/underscore/hyphen keys.
	// The captured prefix keeps an escaped quote from being treated as a
	// key delimiter.
	singleQuotedKey = regexp.MustCompile(`(^|[^\\])'([A-Za-z0-9_\-]+)'\s*:`)

	// : 'value' -> : "value", embedded double quotes escaped.
	singleQuotedValue = regexp.MustCompile(`:\s*'([^'\\]*(?:\\.[^'\\]*)*)'`)

	// Trailing comma immediately before } or ].
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// Repair rewrites s and returns it as compact JSON text, or
// ErrUnrepairable when the result is still not valid JSON.
func Repair(s string) (string, error) {
	t := singleQuotedKey.ReplaceAllString(s, `$1"$2":`)
	t = singleQuotedValue.ReplaceAllStringFunc(t, func(m string) string {
		inner := singleQuotedValue.FindStringSubmatch(m)[1]
		return `: "` + strings.ReplaceAll(inner, `"`, `\"`) + `"`
	})
	t = trailingComma.ReplaceAllString(t, "$1")

	if !json.Valid([]byte(t)) {
		return "", ErrUnrepairable
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(t)); err != nil {
		return "", ErrUnrepairable
	}
	return buf.String(), nil
}
