package unphp

import (
	"bytes"
	"encoding/json"
	"html"
	"regexp"
	"strings"

	xjson "github.com/charmbracelet/x/json"

	"github.com/damian-dev1/unphp/loosejson"
)

// invisibleChars matches zero-width and bidi control characters that show
// up in copy-pasted log text and break JSON parsing.
var invisibleChars = regexp.MustCompile(`[\x{200B}-\x{200F}\x{202A}-\x{202E}]`)

// FindJSON scans noisy text for the first parseable JSON block. Candidates
// are balanced `{...}` spans in left-to-right start order, then `[...]`
// spans; each is tried strictly first and with loosejson repair second. The
// winner is returned as compact JSON with its own key order preserved.
func FindJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = html.UnescapeString(s)
	s = invisibleChars.ReplaceAllString(s, "")
	s = StripLeadingNoise(s)

	if out, ok := scanBlocks(s, '{', '}'); ok {
		return out, true
	}
	return scanBlocks(s, '[', ']')
}

// scanBlocks tries every occurrence of open as a candidate start, tracking
// bracket depth over one forward pass to find the matching close. The depth
// count is textual (brackets inside string literals count too); a candidate
// that fails both strict and loose parsing just moves scanning to the next
// start.
func scanBlocks(s string, open, closing byte) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != open {
			continue
		}
		end, ok := balancedEnd(s, start, open, closing)
		if !ok {
			continue
		}
		candidate := s[start : end+1]
		if xjson.IsValid(candidate) {
			if out, err := compactJSON(candidate); err == nil {
				return out, true
			}
		} else if out, err := loosejson.Repair(candidate); err == nil {
			return out, true
		}
	}
	return "", false
}

func balancedEnd(s string, start int, open, closing byte) (int, bool) {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func compactJSON(s string) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
