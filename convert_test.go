package unphp

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func compactConfig() Config {
	return Config{Lenient: true, Cleanup: true}
}

func TestConvert(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := Convert("   \n", DefaultConfig())
		require.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("native decode", func(t *testing.T) {
		res, err := Convert(`a:1:{s:3:"key";s:3:"val";}`, Config{Lenient: true})
		require.NoError(t, err)
		require.Equal(t, StatusDecoded, res.Status)
		require.Equal(t, `{"key":"val"}`, res.JSON)
		require.Empty(t, res.Diagnostics)
	})

	t.Run("embedded json short-circuits the decoder", func(t *testing.T) {
		res, err := Convert(`2025-09-15 app[1]: dump {"a":1} done`, compactConfig())
		require.NoError(t, err)
		require.Equal(t, StatusEmbeddedJSON, res.Status)
		require.Equal(t, `{"a":1}`, res.JSON)
		require.Empty(t, res.Diagnostics)
	})

	t.Run("cleanup feeds the decoder on extraction miss", func(t *testing.T) {
		res, err := Convert("a:1: { s:3:\"key\" ; s:3:\"val\" ; }", compactConfig())
		require.NoError(t, err)
		require.Equal(t, StatusDecoded, res.Status)
		require.Equal(t, `{"key":"val"}`, res.JSON)
	})

	t.Run("lenient repair surfaces diagnostics", func(t *testing.T) {
		res, err := Convert(`s:10:"short";`, Config{Lenient: true})
		require.NoError(t, err)
		require.Equal(t, StatusDecoded, res.Status)
		require.Equal(t, `"short"`, res.JSON)
		require.Len(t, res.Diagnostics, 1)
		require.Equal(t, DiagnosticStringRepairShort, res.Diagnostics[0].Kind)
	})

	t.Run("strict mode propagates the parse error", func(t *testing.T) {
		_, err := Convert(`s:10:"short";`, Config{})
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, len(`s:10:"`), pe.Offset)
		require.Contains(t, pe.Context, "▲")
		require.Contains(t, pe.Context, "short")
	})

	t.Run("trailing data is non-fatal", func(t *testing.T) {
		res, err := Convert("N;garbage", Config{Lenient: true})
		require.NoError(t, err)
		require.Equal(t, `null`, res.JSON)
		require.Len(t, res.Diagnostics, 1)
		require.Equal(t, DiagnosticTrailingData, res.Diagnostics[0].Kind)
		require.Equal(t, 7, res.Diagnostics[0].BytesRemaining)
	})

	t.Run("plain json fallback", func(t *testing.T) {
		res, err := Convert(`report: {"x": true}`, Config{})
		require.NoError(t, err)
		require.Equal(t, StatusPlainJSON, res.Status)
		require.Equal(t, `{"x":true}`, res.JSON)
	})

	t.Run("pretty output", func(t *testing.T) {
		res, err := Convert(`a:1:{s:1:"a";i:1;}`, Config{Lenient: true, Pretty: true, IndentWidth: 2})
		require.NoError(t, err)
		require.Equal(t, "{\n  \"a\": 1\n}", res.JSON)
	})

	t.Run("aggressive repair is off by default", func(t *testing.T) {
		_, err := Convert(`{"a": 1`, Config{})
		require.Error(t, err)
	})

	t.Run("aggressive repair salvages truncated json when enabled", func(t *testing.T) {
		res, err := Convert(`{"a": 1`, Config{AggressiveRepair: true})
		require.NoError(t, err)
		require.Equal(t, StatusRepairedJSON, res.Status)
		require.Equal(t, `{"a":1}`, res.JSON)
	})

	t.Run("object notation falls through to plain json", func(t *testing.T) {
		// The decoder rejects `O:` as unsupported, but the fallback strips
		// leading noise down to the `{}` and parses that.
		res, err := Convert(`O:8:"stdClass":0:{}`, Config{Lenient: true})
		require.NoError(t, err)
		require.Equal(t, StatusPlainJSON, res.Status)
		require.Equal(t, `{}`, res.JSON)
	})

	t.Run("leniency never relaxes grammar errors", func(t *testing.T) {
		// No brace or bracket anywhere, so the fallback cannot fire and the
		// decoder's error surfaces.
		_, err := Convert(`O:8:"stdClass"`, Config{Lenient: true, AggressiveRepair: false})
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		require.Contains(t, pe.Message, "unsupported value type")
	})

	t.Run("repeated conversion is deterministic", func(t *testing.T) {
		cfg := Config{Lenient: true}
		input := `a:2:{i:0;s:9:"bad";i:1;s:2:"ok";}tail`
		r1, err1 := Convert(input, cfg)
		r2, err2 := Convert(input, cfg)
		require.NoError(t, err1)
		require.NoError(t, err2)
		require.Equal(t, r1, r2)
	})
}

func TestConvertSchema(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {"key": {"type": "string"}},
		"required": ["key"]
	}`)

	t.Run("conforming output passes", func(t *testing.T) {
		cfg := Config{Lenient: true, Schema: schema}
		res, err := Convert(`a:1:{s:3:"key";s:3:"val";}`, cfg)
		require.NoError(t, err)
		require.Equal(t, `{"key":"val"}`, res.JSON)
	})

	t.Run("non-conforming output fails", func(t *testing.T) {
		cfg := Config{Lenient: true, Schema: schema}
		_, err := Convert(`a:1:{s:5:"other";i:1;}`, cfg)
		require.Error(t, err)
		require.Contains(t, err.Error(), "validation failed")
	})
}

func TestContextAround(t *testing.T) {
	t.Run("pointer lands inside the window", func(t *testing.T) {
		input := strings.Repeat("x", 40) + "!" + strings.Repeat("y", 40)
		ctx := contextAround([]byte(input), 40, 24)
		lines := strings.Split(ctx, "\n")
		require.Len(t, lines, 2)
		require.Contains(t, lines[0], "!")
		require.True(t, strings.HasSuffix(lines[1], "▲"))
	})

	t.Run("offset at end of input", func(t *testing.T) {
		ctx := contextAround([]byte("abc"), 3, 24)
		require.Contains(t, ctx, "abc")
	})
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Message: "boom", Offset: 17}
	require.EqualError(t, err, "boom (at byte 17)")
	require.True(t, errors.As(error(err), new(*ParseError)))
}
