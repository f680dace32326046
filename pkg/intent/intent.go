// Package intent defines the DeltaNEAR derivatives intent schema v1.0.0
// and its canonical serialization.
//
// The canonical form is a compact JSON document whose object keys appear in
// the published schema order. The struct field order below IS that order;
// changing it changes every intent hash and breaks conformance.
package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SchemaVersion is the only protocol version this schema accepts.
const SchemaVersion = "1.0.0"

// TypeDerivatives is the only intent_type this schema accepts.
const TypeDerivatives = "derivatives"

// Intent is the canonical form of a derivatives intent.
type Intent struct {
	Deadline    string `json:"deadline"`
	Derivatives Action `json:"derivatives"`
	IntentType  string `json:"intent_type"`
	Nonce       string `json:"nonce"`
	SignerID    string `json:"signer_id"`
	Version     string `json:"version"`
}

// Action is the derivatives sub-object of an intent.
type Action struct {
	Collateral  Collateral  `json:"collateral"`
	Constraints Constraints `json:"constraints"`
	Instrument  string      `json:"instrument"`
	Leverage    string      `json:"leverage"`
	Option      *Option     `json:"option"`
	Side        string      `json:"side"`
	Size        string      `json:"size"`
	Symbol      string      `json:"symbol"`
}

// Collateral names the token and chain funding the position.
type Collateral struct {
	Chain string `json:"chain"`
	Token string `json:"token"`
}

// Constraints carries execution bounds. In canonical form every field is
// concrete: defaults are substituted before serialization and
// VenueAllowlist is never nil.
type Constraints struct {
	MaxFeeBps       uint32   `json:"max_fee_bps"`
	MaxFundingBps8h uint32   `json:"max_funding_bps_8h"`
	MaxSlippageBps  uint32   `json:"max_slippage_bps"`
	VenueAllowlist  []string `json:"venue_allowlist"`
}

// Option carries option-specific terms. Present iff instrument is "option";
// serialized as null for perps.
type Option struct {
	Expiry string `json:"expiry"`
	Kind   string `json:"kind"`
	Strike string `json:"strike"`
}

// Expected sorted key sets per nesting level. Schema validation compares the
// sorted keys of the input against these lists.
var (
	RootFields          = []string{"deadline", "derivatives", "intent_type", "nonce", "signer_id", "version"}
	DerivativesRequired = []string{"collateral", "instrument", "side", "size", "symbol"}
	DerivativesAllowed  = []string{"collateral", "constraints", "instrument", "leverage", "option", "side", "size", "symbol"}
	CollateralFields    = []string{"chain", "token"}
	OptionFields        = []string{"expiry", "kind", "strike"}
	ConstraintFields    = []string{"max_fee_bps", "max_funding_bps_8h", "max_slippage_bps", "venue_allowlist"}
	AllowedChains       = []string{"near", "ethereum", "arbitrum", "base", "solana"}
	AllowedSides        = []string{"long", "short", "buy", "sell"}
	AllowedInstruments  = []string{"perp", "option"}
	AllowedOptionKinds  = []string{"call", "put"}
)

// Protocol defaults substituted for absent constraint fields, and the upper
// bounds enforced after substitution.
const (
	DefaultLeverage        = "1"
	DefaultMaxFeeBps       = 30
	DefaultMaxFundingBps8h = 50
	DefaultMaxSlippageBps  = 100

	MaxFeeBpsBound       = 100
	MaxFundingBps8hBound = 100
	MaxSlippageBpsBound  = 1000
)

// CanonicalJSON returns the canonical byte sequence of the intent: compact
// JSON, schema key order, no HTML escaping. The intent hash is defined over
// exactly these bytes.
func (i *Intent) CanonicalJSON() ([]byte, error) {
	return CanonicalMarshal(i)
}

// CanonicalMarshal marshals v compactly with HTML escaping disabled and no
// trailing newline. Object key order follows struct field order, which for
// the intent types above is the published schema order.
func CanonicalMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical encoding failed: %w", err)
	}

	// json.Encoder appends a newline that must not reach the hash.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}
