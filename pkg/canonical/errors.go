package canonical

import "fmt"

// Reason codes are stable identifiers carried by validation errors and by
// the negative conformance corpus. They MUST NOT change between releases.
const (
	CodeSchemaViolation    = "SCHEMA_VIOLATION"
	CodeEnumViolation      = "ENUM_VIOLATION"
	CodeRangeViolation     = "RANGE_VIOLATION"
	CodePrecisionViolation = "PRECISION_VIOLATION"
	CodeScientificNotation = "SCIENTIFIC_NOTATION_REJECTED"
	CodeSignRejected       = "SIGN_REJECTED"
	CodeNegativeValue      = "NEGATIVE_VALUE_REJECTED"
	CodeLeadingZero        = "LEADING_ZERO_REJECTED"
	CodeTimestampFormat    = "TIMESTAMP_FORMAT_ERROR"
	CodeDecimalFormat      = "DECIMAL_FORMAT_ERROR"
)

// AllReasonCodes returns the full set of normative canonicalization reason
// codes, used by the conformance runner to validate negative vectors.
func AllReasonCodes() []string {
	return []string{
		CodeSchemaViolation,
		CodeEnumViolation,
		CodeRangeViolation,
		CodePrecisionViolation,
		CodeScientificNotation,
		CodeSignRejected,
		CodeNegativeValue,
		CodeLeadingZero,
		CodeTimestampFormat,
		CodeDecimalFormat,
	}
}

// ValidationError is the terminal error for a canonicalization call. No
// partial canonical output accompanies it.
type ValidationError struct {
	Code    string // one of the reason codes above
	Level   string // nesting level: root, derivatives, collateral, option, constraints
	Field   string // offending field, empty for field-set violations
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s at %s.%s: %s", e.Code, e.Level, e.Field, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Level, e.Message)
}

func schemaErr(level, format string, args ...any) *ValidationError {
	return &ValidationError{Code: CodeSchemaViolation, Level: level, Message: fmt.Sprintf(format, args...)}
}

func fieldErr(code, level, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Level: level, Field: field, Message: fmt.Sprintf(format, args...)}
}
