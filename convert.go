package unphp

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	xjson "github.com/charmbracelet/x/json"
)

// Status reports which strategy produced a conversion result.
type Status string

const (
	// StatusDecoded means the serialized grammar decoded natively.
	StatusDecoded Status = "decoded"

	// StatusEmbeddedJSON means a JSON block was extracted from noisy text
	// before the grammar decoder ran.
	StatusEmbeddedJSON Status = "embedded-json"

	// StatusPlainJSON means the input (after leading noise) was already
	// JSON and was reformatted.
	StatusPlainJSON Status = "plain-json"

	// StatusRepairedJSON means the opt-in aggressive repairer salvaged the
	// input as JSON after every other strategy failed.
	StatusRepairedJSON Status = "repaired-json"
)

// Config controls one conversion. The grammar decoder itself consumes only
// Lenient; everything else belongs to the orchestration layer.
type Config struct {
	// Lenient permits bounded heuristic recovery from string length
	// mismatches. It never relaxes grammar-shape errors.
	Lenient bool `json:"lenient"`

	// Cleanup runs the shell cleaner and embedded-JSON extraction before
	// grammar decoding.
	Cleanup bool `json:"cleanup"`

	// Pretty indents the JSON output by IndentWidth spaces.
	Pretty bool `json:"pretty"`

	// IndentWidth is the indent size used when Pretty is set.
	IndentWidth int `json:"indent_width"`

	// AggressiveRepair enables the json-repair library as a final fallback
	// after the conservative strategies fail. Off by default.
	AggressiveRepair bool `json:"aggressive_repair"`

	// Schema, when non-empty, is a JSON Schema the converted output must
	// validate against.
	Schema json.RawMessage `json:"schema,omitempty"`
}

// DefaultConfig mirrors the defaults of the desktop front ends this library
// was extracted from: lenient, cleanup on, pretty with two-space indent.
func DefaultConfig() Config {
	return Config{Lenient: true, Cleanup: true, Pretty: true, IndentWidth: 2}
}

// ErrEmptyInput is returned when the input is empty after trimming.
var ErrEmptyInput = errors.New("input is empty")

// Result is a successful conversion: the JSON text, the strategy that
// produced it, and any diagnostics the decoder recorded along the way.
type Result struct {
	JSON        string       `json:"json"`
	Status      Status       `json:"status"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Convert runs the full strategy pipeline over input: shell cleanup and
// embedded-JSON extraction (when enabled), native grammar decoding, then a
// bare-JSON fallback. A *ParseError returned from here carries a rendered
// context snippet around the failure offset.
func Convert(input string, cfg Config) (*Result, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return nil, ErrEmptyInput
	}

	if cfg.Cleanup {
		raw = CleanShell(raw)
		if j, ok := FindJSON(raw); ok {
			out, err := reformat(j, cfg)
			if err != nil {
				return nil, err
			}
			return finish(&Result{JSON: out, Status: StatusEmbeddedJSON}, cfg)
		}
	}

	val, diags, err := Decode([]byte(raw), cfg.Lenient)
	if err == nil {
		out, ferr := reformat(string(val.JSON()), cfg)
		if ferr != nil {
			return nil, ferr
		}
		return finish(&Result{JSON: out, Status: StatusDecoded, Diagnostics: diags}, cfg)
	}

	stripped := StripLeadingNoise(raw)
	if xjson.IsValid(stripped) {
		if out, ferr := reformat(stripped, cfg); ferr == nil {
			return finish(&Result{JSON: out, Status: StatusPlainJSON}, cfg)
		}
	}
	if cfg.AggressiveRepair {
		if repaired, rerr := jsonrepair.RepairJSON(stripped); rerr == nil && xjson.IsValid(repaired) {
			if out, ferr := reformat(repaired, cfg); ferr == nil {
				return finish(&Result{JSON: out, Status: StatusRepairedJSON}, cfg)
			}
		}
	}

	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Context = contextAround([]byte(raw), pe.Offset, 24)
	}
	return nil, err
}

// finish applies the optional schema check before handing the result back.
func finish(res *Result, cfg Config) (*Result, error) {
	if len(cfg.Schema) > 0 {
		if err := ValidateJSON(res.JSON, cfg.Schema); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// reformat compacts jsonText and, when configured, re-indents it.
func reformat(jsonText string, cfg Config) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(jsonText)); err != nil {
		return "", err
	}
	if !cfg.Pretty {
		return compact.String(), nil
	}
	width := cfg.IndentWidth
	if width < 0 {
		width = 0
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", strings.Repeat(" ", width)); err != nil {
		return "", err
	}
	return out.String(), nil
}

// contextAround renders the bytes surrounding offset with a pointer line,
// for display next to a parse failure.
func contextAround(b []byte, offset, radius int) string {
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > len(b) {
		end = len(b)
	}
	mid := offset
	if mid > end {
		mid = end
	}
	snippet := decodeText(b[start:end])
	pointer := strings.Repeat(" ", utf8.RuneCount(b[start:mid]))
	return "..." + snippet + "...\n" + pointer + "▲"
}
