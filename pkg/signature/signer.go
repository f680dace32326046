package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Envelope carries a signature together with everything a verifier needs to
// check it: the recipient it was bound to, the single-use nonce, the signing
// wall-clock time, and the signer's public key. The canonical message itself
// travels separately.
type Envelope struct {
	Recipient string `json:"recipient"`
	Nonce     string `json:"nonce"` // base64, 32 bytes decoded
	IssuedAt  string `json:"issued_at"`
	PublicKey string `json:"public_key"` // hex
	Signature string `json:"signature"`  // hex
}

// Signer signs payloads with an Ed25519 key. The key never participates in
// canonicalization decisions.
type Signer struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	clock func() time.Time
}

// NewSigner generates a fresh Ed25519 keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Signer{priv: priv, pub: pub, clock: time.Now}, nil
}

// NewSignerFromKey wraps an existing private key.
func NewSignerFromKey(priv ed25519.PrivateKey) *Signer {
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey), clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *Signer) WithClock(clock func() time.Time) *Signer {
	s.clock = clock
	return s
}

// PublicKey returns the hex-encoded public key.
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.pub)
}

// Sign builds the domain-separated payload for (recipient, nonce, message)
// and signs it, producing a self-describing envelope.
func (s *Signer) Sign(recipient string, nonce []byte, canonicalMessage []byte) (*Envelope, error) {
	payload, err := BuildPayload(recipient, nonce, canonicalMessage)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(s.priv, payload)
	return &Envelope{
		Recipient: recipient,
		Nonce:     encodeNonce(nonce),
		IssuedAt:  s.clock().UTC().Format(time.RFC3339),
		PublicKey: hex.EncodeToString(s.pub),
		Signature: hex.EncodeToString(sig),
	}, nil
}

// NewNonce returns a fresh random 32-byte nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}
	return nonce, nil
}
