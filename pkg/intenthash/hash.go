// Package intenthash derives the two identities of a canonical intent: the
// content hash (canonical bytes alone) and the execution hash (canonical
// bytes bound to one frozen manifest).
package intenthash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/canonical"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/intent"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/manifest"
)

// ContentHash is sha256 over the canonical byte sequence, hex encoded.
func ContentHash(canonicalBytes []byte) string {
	sum := sha256.Sum256(canonicalBytes)
	return hex.EncodeToString(sum[:])
}

// ExecutionHash is sha256 over the concatenation of the canonical bytes and
// the manifest identifier bytes. Concatenation, not a nested hash: the
// manifest hash string is appended as UTF-8 to the canonical bytes before
// hashing.
func ExecutionHash(canonicalBytes []byte, manifestHash string) string {
	h := sha256.New()
	h.Write(canonicalBytes)
	h.Write([]byte(manifestHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Hash serializes the canonical intent and returns both identities.
func Hash(it *intent.Intent, m *manifest.Manifest) (contentHash, executionHash string, err error) {
	b, err := it.CanonicalJSON()
	if err != nil {
		return "", "", err
	}
	return ContentHash(b), ExecutionHash(b, m.Hash()), nil
}

// VerifyIntentHash canonicalizes raw intent JSON and returns its content
// hash. External auditors use this to detect drift between independent
// implementations.
func VerifyIntentHash(raw []byte) (string, error) {
	it, err := canonical.Canonicalize(raw)
	if err != nil {
		return "", err
	}
	b, err := it.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ContentHash(b), nil
}
