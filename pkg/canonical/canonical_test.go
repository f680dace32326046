package canonical

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawIntent builds a well-formed raw intent, letting each test override one
// aspect via the mutator.
func rawIntent(overrides map[string]string) string {
	fields := map[string]string{
		"deadline":    `"2026-09-01T00:00:00Z"`,
		"nonce":       `"n-1"`,
		"signer_id":   `"alice.near"`,
		"instrument":  `"perp"`,
		"symbol":      `"ETH-USD"`,
		"side":        `"long"`,
		"size":        `"1.5"`,
		"leverage":    `"2"`,
		"collateral":  `{"token":"usdc.near","chain":"near"}`,
		"option":      `null`,
		"constraints": `null`,
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return fmt.Sprintf(`{
		"version": "1.0.0",
		"intent_type": "derivatives",
		"deadline": %s,
		"nonce": %s,
		"signer_id": %s,
		"derivatives": {
			"instrument": %s,
			"symbol": %s,
			"side": %s,
			"size": %s,
			"leverage": %s,
			"collateral": %s,
			"option": %s,
			"constraints": %s
		}
	}`, fields["deadline"], fields["nonce"], fields["signer_id"],
		fields["instrument"], fields["symbol"], fields["side"], fields["size"],
		fields["leverage"], fields["collateral"], fields["option"], fields["constraints"])
}

func TestCanonicalizeAppliesDefaults(t *testing.T) {
	raw := `{
		"version": "1.0.0",
		"intent_type": "derivatives",
		"deadline": "2026-09-01T00:00:00Z",
		"nonce": "n-1",
		"signer_id": "alice.near",
		"derivatives": {
			"instrument": "perp",
			"symbol": "ETH-USD",
			"side": "long",
			"size": "1.5",
			"collateral": {"token": "usdc.near", "chain": "near"}
		}
	}`
	it, err := Canonicalize([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "1", it.Derivatives.Leverage)
	assert.Nil(t, it.Derivatives.Option)
	assert.EqualValues(t, 30, it.Derivatives.Constraints.MaxFeeBps)
	assert.EqualValues(t, 50, it.Derivatives.Constraints.MaxFundingBps8h)
	assert.EqualValues(t, 100, it.Derivatives.Constraints.MaxSlippageBps)
	require.NotNil(t, it.Derivatives.Constraints.VenueAllowlist)
	assert.Empty(t, it.Derivatives.Constraints.VenueAllowlist)
}

func TestCanonicalizeNormalizesCaseAndWhitespace(t *testing.T) {
	it, err := Canonicalize([]byte(rawIntent(map[string]string{
		"signer_id":  `"  Alice.NEAR "`,
		"symbol":     `"eth-usd"`,
		"side":       `"LONG"`,
		"collateral": `{"token":"0xAbC123","chain":"Arbitrum"}`,
	})))
	require.NoError(t, err)

	assert.Equal(t, "alice.near", it.SignerID)
	assert.Equal(t, "ETH-USD", it.Derivatives.Symbol)
	assert.Equal(t, "long", it.Derivatives.Side)
	assert.Equal(t, "arbitrum", it.Derivatives.Collateral.Chain)
	// Token case survives: checksummed addresses are case-sensitive.
	assert.Equal(t, "0xAbC123", it.Derivatives.Collateral.Token)
}

func TestCanonicalizeNonceForms(t *testing.T) {
	it, err := Canonicalize([]byte(rawIntent(map[string]string{"nonce": `42`})))
	require.NoError(t, err)
	assert.Equal(t, "42", it.Nonce)

	it, err = Canonicalize([]byte(rawIntent(map[string]string{"nonce": `" abc "`})))
	require.NoError(t, err)
	assert.Equal(t, "abc", it.Nonce)

	_, err = Canonicalize([]byte(rawIntent(map[string]string{"nonce": `""`})))
	requireCode(t, err, CodeSchemaViolation)

	_, err = Canonicalize([]byte(rawIntent(map[string]string{"nonce": `true`})))
	requireCode(t, err, CodeSchemaViolation)
}

func TestCanonicalizeVenueAllowlist(t *testing.T) {
	it, err := Canonicalize([]byte(rawIntent(map[string]string{
		"constraints": `{"venue_allowlist": ["GMX", "gmx", " Drift ", ""]}`,
	})))
	require.NoError(t, err)
	assert.Equal(t, []string{"drift", "gmx"}, it.Derivatives.Constraints.VenueAllowlist)
}

func TestCanonicalizeOptionRules(t *testing.T) {
	// Option instrument requires the option object.
	_, err := Canonicalize([]byte(rawIntent(map[string]string{"instrument": `"option"`})))
	requireCode(t, err, CodeSchemaViolation)

	// Option terms under a perp canonicalize to null rather than erroring.
	it, err := Canonicalize([]byte(rawIntent(map[string]string{
		"option": `{"expiry":"2026-12-26T08:00:00Z","kind":"call","strike":"100"}`,
	})))
	require.NoError(t, err)
	assert.Nil(t, it.Derivatives.Option)

	it, err = Canonicalize([]byte(rawIntent(map[string]string{
		"instrument": `"option"`,
		"option":     `{"expiry":"2026-12-26T08:00:00.500Z","kind":"CALL","strike":"50000.00"}`,
	})))
	require.NoError(t, err)
	require.NotNil(t, it.Derivatives.Option)
	assert.Equal(t, "2026-12-26T08:00:00Z", it.Derivatives.Option.Expiry)
	assert.Equal(t, "call", it.Derivatives.Option.Kind)
	assert.Equal(t, "50000", it.Derivatives.Option.Strike)
}

func TestCanonicalizeFieldSetViolations(t *testing.T) {
	// Extra root field.
	raw := `{"version":"1.0.0","intent_type":"derivatives","deadline":"2026-09-01T00:00:00Z","nonce":"1","signer_id":"a","memo":"x","derivatives":{"instrument":"perp","symbol":"ETH-USD","side":"long","size":"1","collateral":{"token":"t","chain":"near"}}}`
	_, err := Canonicalize([]byte(raw))
	requireCode(t, err, CodeSchemaViolation)

	// Missing required derivatives field.
	raw = `{"version":"1.0.0","intent_type":"derivatives","deadline":"2026-09-01T00:00:00Z","nonce":"1","signer_id":"a","derivatives":{"instrument":"perp","symbol":"ETH-USD","side":"long","collateral":{"token":"t","chain":"near"}}}`
	_, err = Canonicalize([]byte(raw))
	requireCode(t, err, CodeSchemaViolation)

	// Extra collateral field.
	_, err = Canonicalize([]byte(rawIntent(map[string]string{
		"collateral": `{"token":"t","chain":"near","decimals":6}`,
	})))
	requireCode(t, err, CodeSchemaViolation)

	// Unknown constraint field.
	_, err = Canonicalize([]byte(rawIntent(map[string]string{
		"constraints": `{"max_fee_bps": 10, "min_fill": "1"}`,
	})))
	requireCode(t, err, CodeSchemaViolation)
}

func TestCanonicalizeEnumViolations(t *testing.T) {
	for name, overrides := range map[string]map[string]string{
		"chain":      {"collateral": `{"token":"t","chain":"polygon"}`},
		"side":       {"side": `"hold"`},
		"instrument": {"instrument": `"future"`},
		"symbol":     {"symbol": `"ETHUSD"`},
	} {
		overrides := overrides
		t.Run(name, func(t *testing.T) {
			_, err := Canonicalize([]byte(rawIntent(overrides)))
			requireCode(t, err, CodeEnumViolation)
		})
	}
}

func TestCanonicalizeVersionAndTypePinned(t *testing.T) {
	raw := rawIntent(nil)
	_, err := Canonicalize([]byte(strings.Replace(raw, `"version": "1.0.0"`, `"version": "2.0.0"`, 1)))
	requireCode(t, err, CodeEnumViolation)

	_, err = Canonicalize([]byte(strings.Replace(raw, `"intent_type": "derivatives"`, `"intent_type": "swap"`, 1)))
	requireCode(t, err, CodeEnumViolation)
}

func TestCanonicalizeConstraintBounds(t *testing.T) {
	for field, bad := range map[string]string{
		"max_fee_bps":        "101",
		"max_funding_bps_8h": "101",
		"max_slippage_bps":   "1001",
	} {
		field, bad := field, bad
		t.Run(field, func(t *testing.T) {
			_, err := Canonicalize([]byte(rawIntent(map[string]string{
				"constraints": `{"` + field + `": ` + bad + `}`,
			})))
			requireCode(t, err, CodeRangeViolation)
		})
	}
}

func TestCanonicalizeSignerIDLength(t *testing.T) {
	long := strings.Repeat("a", 65)
	_, err := Canonicalize([]byte(rawIntent(map[string]string{"signer_id": `"` + long + `"`})))
	requireCode(t, err, CodeRangeViolation)

	_, err = Canonicalize([]byte(rawIntent(map[string]string{"signer_id": `"   "`})))
	requireCode(t, err, CodeRangeViolation)
}

func TestCanonicalizeRejectsNonObject(t *testing.T) {
	_, err := Canonicalize([]byte(`[]`))
	require.Error(t, err)
	_, err = Canonicalize([]byte(`not json`))
	require.Error(t, err)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, code, verr.Code)
}
