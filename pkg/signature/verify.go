package signature

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Verification errors. Signature failures are deliberately distinct from
// canonicalization failures so callers can tell "malformed intent" from
// "unauthorized intent".
var (
	ErrInvalidEncoding   = errors.New("invalid encoding")
	ErrInvalidIssuedAt   = errors.New("invalid issued_at")
	ErrRecipientMismatch = errors.New("envelope bound to a different recipient")
	ErrStalePayload      = errors.New("payload timestamp outside freshness window")
	ErrSignatureInvalid  = errors.New("signature invalid")
	ErrSignatureReplay   = errors.New("signature nonce already consumed")
)

// NonceRegistry records consumed signature nonces. Consume is an atomic
// check-and-insert: it returns true exactly once per nonce.
type NonceRegistry interface {
	Consume(nonce string) bool
}

// MemoryNonceRegistry is the in-process registry. Entries are retained for
// a fixed window; retention must cover the verifier's freshness window so a
// nonce cannot age out while its payload is still fresh.
type MemoryNonceRegistry struct {
	mu        sync.Mutex
	retention time.Duration
	clock     func() time.Time
	seen      map[string]time.Time
}

// NewMemoryNonceRegistry creates a registry retaining nonces for the given
// window.
func NewMemoryNonceRegistry(retention time.Duration) *MemoryNonceRegistry {
	return &MemoryNonceRegistry{
		retention: retention,
		clock:     time.Now,
		seen:      make(map[string]time.Time),
	}
}

// WithClock overrides the clock for deterministic testing.
func (r *MemoryNonceRegistry) WithClock(clock func() time.Time) *MemoryNonceRegistry {
	r.clock = clock
	return r
}

func (r *MemoryNonceRegistry) Consume(nonce string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	if at, ok := r.seen[nonce]; ok && now.Sub(at) < r.retention {
		return false
	}
	r.seen[nonce] = now
	return true
}

// Purge drops entries older than the retention window and reports how many
// were removed.
func (r *MemoryNonceRegistry) Purge() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	n := 0
	for nonce, at := range r.seen {
		if now.Sub(at) >= r.retention {
			delete(r.seen, nonce)
			n++
		}
	}
	return n
}

// Verifier checks envelopes against its own recipient identity, a
// freshness window, and a nonce registry. An envelope bound to another
// recipient is rejected even when the signature over it is valid.
type Verifier struct {
	Recipient    string
	MaxClockSkew time.Duration
	Nonces       NonceRegistry
	clock        func() time.Time
}

// NewVerifier creates a verifier that accepts only envelopes bound to
// recipient. The registry's retention should be at least maxClockSkew.
func NewVerifier(recipient string, maxClockSkew time.Duration, nonces NonceRegistry) *Verifier {
	return &Verifier{Recipient: recipient, MaxClockSkew: maxClockSkew, Nonces: nonces, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (v *Verifier) WithClock(clock func() time.Time) *Verifier {
	v.clock = clock
	return v
}

// Verify checks env over canonicalMessage. Check order is fixed:
//
//  1. recipient binding against the verifier's own identity,
//  2. encoding and issued_at shape,
//  3. freshness against the verifier clock (bounds the replay window even
//     before nonce tracking is consulted),
//  4. cryptographic verification of the rebuilt payload,
//  5. nonce single-use (first use wins; a second, cryptographically valid
//     signature over the identical payload is rejected with
//     ErrSignatureReplay).
func (v *Verifier) Verify(env *Envelope, canonicalMessage []byte) error {
	if env.Recipient != v.Recipient {
		return fmt.Errorf("%w: envelope for %q, verifier is %q",
			ErrRecipientMismatch, env.Recipient, v.Recipient)
	}
	pub, err := hex.DecodeString(strings.TrimSpace(env.PublicKey))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key", ErrInvalidEncoding)
	}
	sig, err := hex.DecodeString(strings.TrimSpace(env.Signature))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature", ErrInvalidEncoding)
	}
	nonce, err := base64.StdEncoding.DecodeString(strings.TrimSpace(env.Nonce))
	if err != nil || len(nonce) != NonceSize {
		return fmt.Errorf("%w: nonce", ErrInvalidEncoding)
	}

	issuedAt, err := time.Parse(time.RFC3339, env.IssuedAt)
	if err != nil || !strings.HasSuffix(env.IssuedAt, "Z") {
		return ErrInvalidIssuedAt
	}
	now := v.clock()
	if d := now.Sub(issuedAt); d > v.MaxClockSkew || d < -v.MaxClockSkew {
		return fmt.Errorf("%w: issued_at %s, now %s, max skew %s",
			ErrStalePayload, env.IssuedAt, now.UTC().Format(time.RFC3339), v.MaxClockSkew)
	}

	payload, err := BuildPayload(v.Recipient, nonce, canonicalMessage)
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), payload, sig) {
		return ErrSignatureInvalid
	}

	if v.Nonces != nil && !v.Nonces.Consume(env.Nonce) {
		return ErrSignatureReplay
	}
	return nil
}

func encodeNonce(nonce []byte) string {
	return base64.StdEncoding.EncodeToString(nonce)
}
