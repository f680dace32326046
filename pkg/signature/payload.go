// Package signature implements the domain-separated signing protocol used
// by counterparties to prove authorship of an intent and by settlement
// agents to prove authorship of a settlement instruction.
package signature

import (
	"encoding/base64"
	"fmt"
)

// DomainTag is the fixed domain-separation prefix of every signing payload.
// Changing it invalidates every signature ever produced.
const DomainTag = "deltanear_derivatives_v1"

// NonceSize is the required nonce length in bytes.
const NonceSize = 32

// payloadSep joins the payload fields. Each field is length-delimited by
// construction (tag fixed, recipient and nonce cannot contain '\n' after
// encoding), so no two distinct inputs serialize identically.
const payloadSep = "\n"

// BuildPayload constructs the byte sequence that is signed and verified:
// tag, recipient, base64 nonce, canonical message, in that fixed order.
// Changing any byte of any field deterministically invalidates the
// signature.
func BuildPayload(recipient string, nonce []byte, canonicalMessage []byte) ([]byte, error) {
	if recipient == "" {
		return nil, fmt.Errorf("signature: recipient must be non-empty")
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("signature: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	encNonce := base64.StdEncoding.EncodeToString(nonce)
	payload := make([]byte, 0, len(DomainTag)+len(recipient)+len(encNonce)+len(canonicalMessage)+3)
	payload = append(payload, DomainTag...)
	payload = append(payload, payloadSep...)
	payload = append(payload, recipient...)
	payload = append(payload, payloadSep...)
	payload = append(payload, encNonce...)
	payload = append(payload, payloadSep...)
	payload = append(payload, canonicalMessage...)
	return payload, nil
}
