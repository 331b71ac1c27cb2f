package unphp

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// stringToken matches a complete `s:<len>:"...";` token so its payload can
// be stashed before any text normalization touches the surrounding shell.
var (
	stringToken = regexp.MustCompile(`(?s)s:(\d+):"((?:\\.|[^"\\])*)";`)
	hspaceRun   = regexp.MustCompile(`[ \t\f\v]+`)
	aroundSemi  = regexp.MustCompile(`\s*;\s*`)
	aroundColon = regexp.MustCompile(`\s*:\s*`)
	aroundOpen  = regexp.MustCompile(`\s*\{\s*`)
	aroundClose = regexp.MustCompile(`\s*\}\s*`)
)

// CleanShell normalizes the punctuation shell around serialized tokens:
// HTML entities are decoded, horizontal whitespace runs collapse to one
// space, and whitespace around `;`, `:`, `{`, `}` is removed. Every
// `s:<len>:"...";` token is preserved byte-for-byte so payloads and their
// length accounting survive untouched.
func CleanShell(s string) string {
	var saved []string
	shell := stringToken.ReplaceAllStringFunc(s, func(m string) string {
		saved = append(saved, m)
		return fmt.Sprintf("@@S%d@@", len(saved)-1)
	})
	shell = html.UnescapeString(shell)
	shell = hspaceRun.ReplaceAllString(shell, " ")
	shell = aroundSemi.ReplaceAllString(shell, ";")
	shell = aroundColon.ReplaceAllString(shell, ":")
	shell = aroundOpen.ReplaceAllString(shell, "{")
	shell = aroundClose.ReplaceAllString(shell, "}")
	for i, tok := range saved {
		shell = strings.Replace(shell, fmt.Sprintf("@@S%d@@", i), tok, 1)
	}
	return shell
}

// StripLeadingNoise drops everything before the first `{` or `[` (byte
// order marks, control characters, log preambles) without swallowing the
// bracket itself. Input without a bracket is returned unchanged.
func StripLeadingNoise(s string) string {
	if i := strings.IndexAny(s, "{["); i >= 0 {
		return s[i:]
	}
	return s
}
