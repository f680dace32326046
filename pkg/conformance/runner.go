// Package conformance runs the interoperability corpus: positive vectors
// proving byte-for-byte canonicalization and hashing, and negative vectors
// proving inputs are rejected with the expected error category.
//
// Any independent implementation of the canonicalizer must pass the same
// corpus; the recorded sha256 values are the cross-implementation contract.
package conformance

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/canonical"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/intenthash"
)

//go:embed schema/canonical_intent.schema.json
var canonicalIntentSchema string

// Vector is one positive conformance case. Canonical is kept as a raw
// string so the recorded bytes survive any re-serialization of the fixture
// file itself.
type Vector struct {
	Name      string          `json:"name"`
	Raw       json.RawMessage `json:"raw"`
	Canonical string          `json:"canonical"`
	SHA256    string          `json:"sha256"`
}

// NegativeVector is one rejection case tagged with the exact error category
// expected.
type NegativeVector struct {
	Name      string          `json:"name"`
	Raw       json.RawMessage `json:"raw"`
	ErrorCode string          `json:"error_code"`
}

// Corpus is a loaded fixture set.
type Corpus struct {
	Vectors  []Vector
	Negative []NegativeVector

	schema *jsonschema.Schema
}

// LoadCorpus reads positive vectors from dir/positive and negative vectors
// from dir/negative, and compiles the canonical-intent schema used as a
// cross-check.
func LoadCorpus(dir string) (*Corpus, error) {
	c := &Corpus{}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := "https://deltanear.schemas.local/canonical_intent.schema.json"
	if err := compiler.AddResource(url, strings.NewReader(canonicalIntentSchema)); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	c.schema = schema

	if err := loadDir(filepath.Join(dir, "positive"), &c.Vectors); err != nil {
		return nil, err
	}
	if err := loadDir(filepath.Join(dir, "negative"), &c.Negative); err != nil {
		return nil, err
	}
	return c, nil
}

func loadDir[T any](dir string, out *[]T) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("corpus dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("corpus file %s: %w", name, err)
		}
		*out = append(*out, v)
	}
	return nil
}

// RunVector checks one positive vector: canonicalize(raw) must equal the
// recorded canonical bytes exactly, the content hash must equal the
// recorded sha256, and the canonical form must satisfy the published
// schema.
func (c *Corpus) RunVector(v Vector) error {
	it, err := canonical.Canonicalize(v.Raw)
	if err != nil {
		return fmt.Errorf("%s: canonicalize failed: %w", v.Name, err)
	}
	got, err := it.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("%s: serialize failed: %w", v.Name, err)
	}
	if string(got) != v.Canonical {
		return fmt.Errorf("%s: canonical bytes mismatch:\n  got  %s\n  want %s", v.Name, got, v.Canonical)
	}
	if h := intenthash.ContentHash(got); h != v.SHA256 {
		return fmt.Errorf("%s: content hash mismatch: got %s, want %s", v.Name, h, v.SHA256)
	}

	var doc any
	if err := json.Unmarshal(got, &doc); err != nil {
		return fmt.Errorf("%s: canonical form is not JSON: %w", v.Name, err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return fmt.Errorf("%s: canonical form violates schema: %w", v.Name, err)
	}
	return nil
}

// RunNegative checks one negative vector: canonicalize(raw) must fail with
// the tagged error category.
func (c *Corpus) RunNegative(v NegativeVector) error {
	_, err := canonical.Canonicalize(v.Raw)
	if err == nil {
		return fmt.Errorf("%s: expected rejection %s, input was accepted", v.Name, v.ErrorCode)
	}
	var verr *canonical.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("%s: expected *ValidationError, got %T: %v", v.Name, err, err)
	}
	if verr.Code != v.ErrorCode {
		return fmt.Errorf("%s: expected error code %s, got %s (%v)", v.Name, v.ErrorCode, verr.Code, verr)
	}
	return nil
}

// Run executes the whole corpus and returns every failure.
func (c *Corpus) Run() []error {
	var failures []error
	for _, v := range c.Vectors {
		if err := c.RunVector(v); err != nil {
			failures = append(failures, err)
		}
	}
	for _, v := range c.Negative {
		if err := c.RunNegative(v); err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}
