// deltanear is the operator CLI for the derivatives intent core:
// canonicalization, hashing, hash verification, and conformance runs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/canonical"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/config"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/conformance"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/intenthash"
)

func main() {
	os.Exit(Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "canonicalize":
		return runCanonicalize(args[2:], stdin, stdout, stderr)
	case "hash":
		return runHash(args[2:], stdin, stdout, stderr)
	case "verify":
		return runVerify(args[2:], stdin, stdout, stderr)
	case "conform", "conformance":
		return runConform(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Usage: deltanear <command> [flags]

Commands:
  canonicalize  Read a raw intent and print its canonical form
  hash          Print the content hash (and execution hash when a manifest is configured)
  verify        Recompute the content hash and compare against an expected value
  conform       Run the conformance corpus against this implementation
  help          Show this help`)
}

// readIntent loads the raw intent from -in, or stdin when the flag is
// empty or "-".
func readIntent(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func newLogger(stderr io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("DELTANEAR_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func runCanonicalize(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("canonicalize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "raw intent file (default stdin)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	raw, err := readIntent(*in, stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "read intent: %v\n", err)
		return 1
	}
	it, err := canonical.Canonicalize(raw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "canonicalize: %v\n", err)
		return 1
	}
	b, err := it.CanonicalJSON()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "serialize: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, string(b))
	return 0
}

func runHash(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "raw intent file (default stdin)")
	cfgPath := fs.String("config", "", "config file for the manifest identity")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger := newLogger(stderr)

	raw, err := readIntent(*in, stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "read intent: %v\n", err)
		return 1
	}
	it, err := canonical.Canonicalize(raw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "canonicalize: %v\n", err)
		return 1
	}
	b, err := it.CanonicalJSON()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "serialize: %v\n", err)
		return 1
	}

	out := map[string]string{
		"intent_hash": intenthash.ContentHash(b),
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if cfg.ManifestABIHash != "" {
		m, err := cfg.Manifest()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "manifest: %v\n", err)
			return 1
		}
		out["manifest_hash"] = m.Hash()
		out["execution_hash"] = intenthash.ExecutionHash(b, m.Hash())
	} else {
		logger.Debug("no manifest configured, emitting content hash only")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		_, _ = fmt.Fprintf(stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}

func runVerify(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "raw intent file (default stdin)")
	expected := fs.String("hash", "", "expected intent hash (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *expected == "" {
		_, _ = fmt.Fprintln(stderr, "verify: -hash is required")
		return 2
	}

	raw, err := readIntent(*in, stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "read intent: %v\n", err)
		return 1
	}
	got, err := intenthash.VerifyIntentHash(raw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "verify: %v\n", err)
		return 1
	}
	if got != *expected {
		_, _ = fmt.Fprintf(stdout, "MISMATCH\n  got  %s\n  want %s\n", got, *expected)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "OK "+got)
	return 0
}

func runConform(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("conform", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", "pkg/conformance/testdata", "conformance corpus directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	corpus, err := conformance.LoadCorpus(*dir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load corpus: %v\n", err)
		return 1
	}
	failures := corpus.Run()
	total := len(corpus.Vectors) + len(corpus.Negative)
	if len(failures) > 0 {
		for _, f := range failures {
			_, _ = fmt.Fprintln(stderr, "FAIL:", f)
		}
		_, _ = fmt.Fprintf(stdout, "%d/%d vectors passed\n", total-len(failures), total)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "%d/%d vectors passed\n", total, total)
	return 0
}
