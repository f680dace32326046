// Package canonical reduces loosely-formatted derivatives intents to their
// unique canonical form.
//
// Canonicalization is a pure transform: raw JSON in, *intent.Intent or a
// *ValidationError out. It performs no I/O and keeps no state, so for a
// given input the output bytes are identical across calls, processes, and
// independent implementations. The content hash is defined over those bytes.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/intent"
)

// Canonicalize validates raw intent JSON and returns its canonical form.
// Errors are terminal: no partial canonical output is ever returned.
func Canonicalize(raw []byte) (*intent.Intent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("intent is not valid JSON: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, schemaErr("root", "intent must be a JSON object")
	}
	return canonicalizeRoot(obj)
}

func canonicalizeRoot(obj map[string]any) (*intent.Intent, error) {
	if err := checkFieldSet("root", obj, intent.RootFields, intent.RootFields); err != nil {
		return nil, err
	}

	version, ok := obj["version"].(string)
	if !ok || version != intent.SchemaVersion {
		return nil, fieldErr(CodeEnumViolation, "root", "version", "version must be %q", intent.SchemaVersion)
	}
	intentType, ok := obj["intent_type"].(string)
	if !ok || intentType != intent.TypeDerivatives {
		return nil, fieldErr(CodeEnumViolation, "root", "intent_type", "intent_type must be %q", intent.TypeDerivatives)
	}

	deadlineRaw, ok := obj["deadline"].(string)
	if !ok {
		return nil, schemaErr("root", "deadline must be a string")
	}
	deadline, err := normalizeTimestamp("root", "deadline", deadlineRaw)
	if err != nil {
		return nil, err
	}

	nonce, err := normalizeNonce(obj["nonce"])
	if err != nil {
		return nil, err
	}

	signerRaw, ok := obj["signer_id"].(string)
	if !ok {
		return nil, schemaErr("root", "signer_id must be a string")
	}
	signer, err := normalizeSignerID(signerRaw)
	if err != nil {
		return nil, err
	}

	derivObj, ok := obj["derivatives"].(map[string]any)
	if !ok {
		return nil, schemaErr("root", "derivatives must be an object")
	}
	action, err := canonicalizeDerivatives(derivObj)
	if err != nil {
		return nil, err
	}

	return &intent.Intent{
		Deadline:    deadline,
		Derivatives: *action,
		IntentType:  intent.TypeDerivatives,
		Nonce:       nonce,
		SignerID:    signer,
		Version:     intent.SchemaVersion,
	}, nil
}

func canonicalizeDerivatives(obj map[string]any) (*intent.Action, error) {
	if err := checkFieldSet("derivatives", obj, intent.DerivativesRequired, intent.DerivativesAllowed); err != nil {
		return nil, err
	}

	instrument, err := normalizeEnum("derivatives", "instrument", obj["instrument"], intent.AllowedInstruments)
	if err != nil {
		return nil, err
	}
	side, err := normalizeEnum("derivatives", "side", obj["side"], intent.AllowedSides)
	if err != nil {
		return nil, err
	}

	symbolRaw, ok := obj["symbol"].(string)
	if !ok {
		return nil, schemaErr("derivatives", "symbol must be a string")
	}
	symbol := strings.ToUpper(strings.TrimSpace(symbolRaw))
	if !strings.Contains(symbol, "-") {
		return nil, fieldErr(CodeEnumViolation, "derivatives", "symbol", "symbol must be BASE-QUOTE form: %s", symbolRaw)
	}

	size, err := normalizeDecimal("derivatives", "size", obj["size"], sizeRange)
	if err != nil {
		return nil, err
	}

	leverage := intent.DefaultLeverage
	if lv, present := obj["leverage"]; present && lv != nil {
		leverage, err = normalizeDecimal("derivatives", "leverage", lv, leverageRange)
		if err != nil {
			return nil, err
		}
	}

	collObj, ok := obj["collateral"].(map[string]any)
	if !ok {
		return nil, schemaErr("derivatives", "collateral must be an object")
	}
	collateral, err := canonicalizeCollateral(collObj)
	if err != nil {
		return nil, err
	}

	var constraintsObj map[string]any
	if c, present := obj["constraints"]; present && c != nil {
		constraintsObj, ok = c.(map[string]any)
		if !ok {
			return nil, schemaErr("derivatives", "constraints must be an object")
		}
	}
	constraints, err := canonicalizeConstraints(constraintsObj)
	if err != nil {
		return nil, err
	}

	// Option terms only exist for the option instrument. Anything supplied
	// under any other instrument canonicalizes to null.
	var option *intent.Option
	if instrument == "option" {
		optObj, ok := obj["option"].(map[string]any)
		if !ok {
			return nil, schemaErr("derivatives", "option instrument requires an option object")
		}
		option, err = canonicalizeOption(optObj)
		if err != nil {
			return nil, err
		}
	}

	return &intent.Action{
		Collateral:  *collateral,
		Constraints: *constraints,
		Instrument:  instrument,
		Leverage:    leverage,
		Option:      option,
		Side:        side,
		Size:        size,
		Symbol:      symbol,
	}, nil
}

func canonicalizeCollateral(obj map[string]any) (*intent.Collateral, error) {
	if err := checkFieldSet("collateral", obj, intent.CollateralFields, intent.CollateralFields); err != nil {
		return nil, err
	}
	chain, err := normalizeEnum("collateral", "chain", obj["chain"], intent.AllowedChains)
	if err != nil {
		return nil, err
	}
	tokenRaw, ok := obj["token"].(string)
	if !ok {
		return nil, schemaErr("collateral", "token must be a string")
	}
	// Token case is preserved: checksummed addresses are case-sensitive.
	token := strings.TrimSpace(tokenRaw)
	if token == "" {
		return nil, schemaErr("collateral", "token must be non-empty")
	}
	return &intent.Collateral{Chain: chain, Token: token}, nil
}

func canonicalizeOption(obj map[string]any) (*intent.Option, error) {
	if err := checkFieldSet("option", obj, intent.OptionFields, intent.OptionFields); err != nil {
		return nil, err
	}
	expiryRaw, ok := obj["expiry"].(string)
	if !ok {
		return nil, schemaErr("option", "expiry must be a string")
	}
	expiry, err := normalizeTimestamp("option", "expiry", expiryRaw)
	if err != nil {
		return nil, err
	}
	kind, err := normalizeEnum("option", "kind", obj["kind"], intent.AllowedOptionKinds)
	if err != nil {
		return nil, err
	}
	strike, err := normalizeDecimal("option", "strike", obj["strike"], strikeRange)
	if err != nil {
		return nil, err
	}
	return &intent.Option{Expiry: expiry, Kind: kind, Strike: strike}, nil
}

// canonicalizeConstraints applies protocol defaults before bounds checks, so
// an absent field never fails validation, while an explicitly supplied
// out-of-bounds value always does.
func canonicalizeConstraints(obj map[string]any) (*intent.Constraints, error) {
	for _, k := range sortedKeys(obj) {
		if !contains(intent.ConstraintFields, k) {
			return nil, schemaErr("constraints", "unknown constraint field: %s", k)
		}
	}

	maxFee, err := constraintBps(obj, "max_fee_bps", intent.DefaultMaxFeeBps, intent.MaxFeeBpsBound)
	if err != nil {
		return nil, err
	}
	maxFunding, err := constraintBps(obj, "max_funding_bps_8h", intent.DefaultMaxFundingBps8h, intent.MaxFundingBps8hBound)
	if err != nil {
		return nil, err
	}
	maxSlippage, err := constraintBps(obj, "max_slippage_bps", intent.DefaultMaxSlippageBps, intent.MaxSlippageBpsBound)
	if err != nil {
		return nil, err
	}

	venues := []string{}
	if raw, present := obj["venue_allowlist"]; present && raw != nil {
		arr, ok := raw.([]any)
		if !ok {
			return nil, schemaErr("constraints", "venue_allowlist must be an array")
		}
		seen := map[string]bool{}
		for _, e := range arr {
			s, ok := e.(string)
			if !ok {
				return nil, schemaErr("constraints", "venue_allowlist entries must be strings")
			}
			v := strings.ToLower(strings.TrimSpace(s))
			if v != "" && !seen[v] {
				seen[v] = true
				venues = append(venues, v)
			}
		}
		sort.Strings(venues)
	}

	return &intent.Constraints{
		MaxFeeBps:       maxFee,
		MaxFundingBps8h: maxFunding,
		MaxSlippageBps:  maxSlippage,
		VenueAllowlist:  venues,
	}, nil
}

func constraintBps(obj map[string]any, field string, def, bound uint32) (uint32, error) {
	raw, present := obj[field]
	if !present || raw == nil {
		return def, nil
	}
	num, ok := raw.(json.Number)
	if !ok {
		return 0, fieldErr(CodeRangeViolation, "constraints", field, "%s must be an integer", field)
	}
	n, err := num.Int64()
	if err != nil || n < 0 {
		return 0, fieldErr(CodeRangeViolation, "constraints", field, "%s must be a non-negative integer", field)
	}
	if n > int64(bound) {
		return 0, fieldErr(CodeRangeViolation, "constraints", field, "%s %d exceeds %d", field, n, bound)
	}
	return uint32(n), nil
}

func normalizeEnum(level, field string, raw any, allowed []string) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", schemaErr(level, "%s must be a string", field)
	}
	v := strings.ToLower(strings.TrimSpace(s))
	if !contains(allowed, v) {
		return "", fieldErr(CodeEnumViolation, level, field, "%q not in %v", v, allowed)
	}
	return v, nil
}

// normalizeNonce accepts a string or JSON number and yields the trimmed
// string form.
func normalizeNonce(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", schemaErr("root", "nonce must be non-empty")
		}
		return s, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", schemaErr("root", "nonce must be a string or number")
	}
}

// normalizeSignerID applies NEAR account rules: trimmed, lowercased, 1..64
// characters.
func normalizeSignerID(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) == 0 || len(s) > 64 {
		return "", fieldErr(CodeRangeViolation, "root", "signer_id", "signer_id length must be 1..64: %q", raw)
	}
	return s, nil
}

// checkFieldSet compares the sorted key list of obj against the schema's
// expected lists. Extra keys always fail; missing keys fail when required.
func checkFieldSet(level string, obj map[string]any, required, allowed []string) error {
	keys := sortedKeys(obj)
	for _, r := range required {
		if !contains(keys, r) {
			return schemaErr(level, "missing required field %q (expected %v, got %v)", r, allowed, keys)
		}
	}
	for _, k := range keys {
		if !contains(allowed, k) {
			return schemaErr(level, "unknown field %q (expected %v, got %v)", k, allowed, keys)
		}
	}
	return nil
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
