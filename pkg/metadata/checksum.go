// Package metadata computes and tracks metadata-preservation checksums.
//
// The distribution pipeline hands opaque metadata through three stages
// (pre-distribution, solver-received, post-execution); a checksum recorded
// at each stage is compared against the first to prove nothing was mangled
// in transit. Checksums are audit-trail material only and never influence
// authorization.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"
)

// Pipeline stages at which checksums are recorded.
const (
	StagePreDistribution = "pre_distribution"
	StageSolverReceived  = "solver_received"
	StagePostExecution   = "post_execution"
)

// Checksum returns the sha256 hex digest of the RFC 8785 canonical form of
// v. Lexicographic key order is correct here: metadata carries no schema
// order of its own.
func Checksum(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("metadata marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("metadata canonicalization failed: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Comparison is the outcome of recording one stage checksum.
type Comparison struct {
	IntentHash string
	Stage      string
	Checksum   string
	Reference  string // checksum of the first recorded stage, empty if this is it
	Match      bool
}

// Tracker compares per-intent checksums across stages. The first recorded
// stage becomes the reference; later stages match or mismatch against it.
type Tracker struct {
	mu  sync.Mutex
	ref map[string]string // intentHash -> reference checksum
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ref: make(map[string]string)}
}

// Record registers the checksum observed at a stage and compares it with
// the reference.
func (t *Tracker) Record(intentHash, stage, checksum string) Comparison {
	t.mu.Lock()
	defer t.mu.Unlock()
	ref, ok := t.ref[intentHash]
	if !ok {
		t.ref[intentHash] = checksum
		return Comparison{IntentHash: intentHash, Stage: stage, Checksum: checksum, Match: true}
	}
	return Comparison{
		IntentHash: intentHash,
		Stage:      stage,
		Checksum:   checksum,
		Reference:  ref,
		Match:      ref == checksum,
	}
}

// Forget drops the reference for an intent once its record is garbage
// collected.
func (t *Tracker) Forget(intentHash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ref, intentHash)
}
