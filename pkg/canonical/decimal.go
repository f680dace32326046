package canonical

import (
	"encoding/json"
	"math/big"
	"strings"
)

// decimalRange is the per-field contract for decimal normalization.
type decimalRange struct {
	min         string
	max         string
	maxDecimals int
}

// Decimal contracts are frozen protocol constants. Changing any of them
// changes which intents hash at all.
var (
	sizeRange     = decimalRange{min: "0.00000001", max: "1000000", maxDecimals: 8}
	leverageRange = decimalRange{min: "1", max: "100", maxDecimals: 2}
	strikeRange   = decimalRange{min: "0.01", max: "1000000000", maxDecimals: 2}
)

// normalizeDecimal reduces a decimal input (JSON string or number lexeme) to
// its minimal canonical string. The whole path is lexical plus scaled big.Int
// comparison; no floating point is ever involved, so two implementations fed
// the same input cannot disagree on the output bytes.
func normalizeDecimal(level, field string, raw any, r decimalRange) (string, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case json.Number:
		s = v.String()
	default:
		return "", fieldErr(CodeDecimalFormat, level, field, "decimal must be a string or number")
	}

	// Lexical-form rejections come before any parsing.
	if strings.ContainsAny(s, "eE") {
		return "", fieldErr(CodeScientificNotation, level, field, "scientific notation not allowed: %s", s)
	}
	if strings.HasPrefix(s, "+") {
		return "", fieldErr(CodeSignRejected, level, field, "positive sign not allowed: %s", s)
	}
	if strings.HasPrefix(s, "-") {
		return "", fieldErr(CodeNegativeValue, level, field, "negative values not allowed: %s", s)
	}
	if len(s) > 1 && s[0] == '0' && s[1] != '.' {
		return "", fieldErr(CodeLeadingZero, level, field, "leading zeros not allowed: %s", s)
	}

	intPart, fracPart, err := splitDecimal(level, field, s)
	if err != nil {
		return "", err
	}

	if len(fracPart) > r.maxDecimals {
		return "", fieldErr(CodePrecisionViolation, level, field, "value %s exceeds %d decimal places", s, r.maxDecimals)
	}

	val := scaledInt(intPart, fracPart, r.maxDecimals)
	minV := mustScaled(r.min, r.maxDecimals)
	maxV := mustScaled(r.max, r.maxDecimals)
	if val.Cmp(minV) < 0 || val.Cmp(maxV) > 0 {
		return "", fieldErr(CodeRangeViolation, level, field, "value %s out of range [%s, %s]", s, r.min, r.max)
	}

	return formatDecimal(intPart, fracPart), nil
}

// splitDecimal validates the digit structure and splits s into integer and
// fractional digit runs.
func splitDecimal(level, field, s string) (string, string, error) {
	if s == "" {
		return "", "", fieldErr(CodeDecimalFormat, level, field, "empty decimal")
	}
	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return "", "", fieldErr(CodeDecimalFormat, level, field, "invalid decimal: %s", s)
		}
		if intPart == "" || fracPart == "" {
			return "", "", fieldErr(CodeDecimalFormat, level, field, "invalid decimal: %s", s)
		}
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return "", "", fieldErr(CodeDecimalFormat, level, field, "invalid decimal: %s", s)
	}
	return intPart, fracPart, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// scaledInt returns intPart.fracPart scaled by 10^scale as an exact integer.
func scaledInt(intPart, fracPart string, scale int) *big.Int {
	digits := intPart + fracPart + strings.Repeat("0", scale-len(fracPart))
	v := new(big.Int)
	v.SetString(digits, 10)
	return v
}

// mustScaled scales a protocol-constant bound. Bounds are well-formed by
// construction.
func mustScaled(s string, scale int) *big.Int {
	intPart, fracPart := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot+1:]
	}
	return scaledInt(intPart, fracPart, scale)
}

// formatDecimal emits the minimal canonical string: trailing fractional
// zeros stripped, no dangling '.', bare "0" for zero.
func formatDecimal(intPart, fracPart string) string {
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		if strings.TrimLeft(intPart, "0") == "" {
			return "0"
		}
		return intPart
	}
	return intPart + "." + fracPart
}
