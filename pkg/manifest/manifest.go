// Package manifest identifies one frozen protocol/ABI version.
//
// The execution gate is instantiated per manifest: two canonically-identical
// intents hashed under different manifests are deliberately distinct, so a
// schema migration can never replay pre-migration simulations.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/gowebpki/jcs"
)

var (
	ErrBadSchemaVersion = errors.New("schema version is not valid semver")
	ErrBadABIHash       = errors.New("abi hash must be 64 lowercase hex characters")
)

// Manifest is a frozen (schema version, ABI hash) pair.
type Manifest struct {
	SchemaVersion string `json:"schema_version"`
	ABIHash       string `json:"abi_hash"`

	hash string
}

// New validates and freezes a manifest. The manifest hash is computed once,
// over the RFC 8785 form of the two identity fields.
func New(schemaVersion, abiHash string) (*Manifest, error) {
	if _, err := semver.StrictNewVersion(schemaVersion); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadSchemaVersion, schemaVersion)
	}
	if !isLowerHex64(abiHash) {
		return nil, fmt.Errorf("%w: %q", ErrBadABIHash, abiHash)
	}
	m := &Manifest{SchemaVersion: schemaVersion, ABIHash: abiHash}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest canonicalization failed: %w", err)
	}
	sum := sha256.Sum256(canonical)
	m.hash = hex.EncodeToString(sum[:])
	return m, nil
}

// Hash returns the frozen manifest identifier bound into every execution
// hash.
func (m *Manifest) Hash() string {
	return m.hash
}

func isLowerHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
