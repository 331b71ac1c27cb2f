// unphp converts PHP-serialized text (or noisy text with embedded JSON) to
// JSON. Input comes from a file argument or stdin; JSON goes to stdout or
// --output, diagnostics to stderr.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/damian-dev1/unphp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := unphp.DefaultConfig()
	var (
		schemaPath  string
		outputPath  string
		quiet       bool
		showVersion bool
	)

	flags := pflag.NewFlagSet("unphp", pflag.ContinueOnError)
	flags.BoolVar(&cfg.Lenient, "lenient", cfg.Lenient, "repair broken string length prefixes")
	flags.BoolVar(&cfg.Cleanup, "cleanup", cfg.Cleanup, "clean shell noise and try embedded-JSON extraction first")
	flags.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "indent the JSON output")
	flags.IntVar(&cfg.IndentWidth, "indent", cfg.IndentWidth, "indent width used with --pretty")
	flags.BoolVar(&cfg.AggressiveRepair, "aggressive", false, "run the aggressive JSON repairer as a last resort")
	flags.StringVar(&schemaPath, "schema", "", "validate output against this JSON Schema file")
	flags.StringVarP(&outputPath, "output", "o", "", "write JSON to this file instead of stdout")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress diagnostics")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("unphp " + unphp.Version)
		return nil
	}

	if schemaPath != "" {
		schema, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
		cfg.Schema = schema
	}

	var input []byte
	var err error
	if args := flags.Args(); len(args) > 0 {
		input, err = os.ReadFile(args[0])
	} else {
		input, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	res, err := unphp.Convert(string(input), cfg)
	if err != nil {
		var pe *unphp.ParseError
		if errors.As(err, &pe) && pe.Context != "" {
			return fmt.Errorf("%w\n%s", err, pe.Context)
		}
		return err
	}

	if !quiet {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		for _, d := range res.Diagnostics {
			switch d.Kind {
			case unphp.DiagnosticTrailingData:
				logger.Warn("decode note", "kind", string(d.Kind),
					"offset", d.Offset, "bytes_remaining", d.BytesRemaining)
			default:
				logger.Warn("decode note", "kind", string(d.Kind),
					"offset", d.Offset, "declared_length", d.DeclaredLength,
					"actual_length", d.ActualLength)
			}
		}
	}

	out := res.JSON + "\n"
	if outputPath != "" {
		return os.WriteFile(outputPath, []byte(out), 0o644)
	}
	_, err = io.WriteString(os.Stdout, out)
	return err
}
