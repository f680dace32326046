package canonical

import (
	"strings"
	"time"
)

// canonicalTimestampLen is len("2006-01-02T15:04:05Z").
const canonicalTimestampLen = 20

// normalizeTimestamp reduces an ISO 8601 timestamp to second-precision,
// Z-suffixed, fixed-length form. Sub-second components are truncated, never
// rounded. Offsets other than Z are rejected.
func normalizeTimestamp(level, field, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasSuffix(s, "Z") {
		return "", fieldErr(CodeTimestampFormat, level, field, "timestamp must end with 'Z': %s", raw)
	}
	if strings.ContainsRune(s, '+') {
		return "", fieldErr(CodeTimestampFormat, level, field, "timestamp must not carry a timezone offset: %s", raw)
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Count(s, ".") != 1 {
			return "", fieldErr(CodeTimestampFormat, level, field, "invalid timestamp: %s", raw)
		}
		s = s[:i] + "Z"
	}
	if len(s) != canonicalTimestampLen {
		return "", fieldErr(CodeTimestampFormat, level, field, "invalid timestamp length: %s", s)
	}
	// Strict structural parse of the date-time digits; the layout carries no
	// zone, so nothing can be silently adjusted or rounded.
	if _, err := time.Parse("2006-01-02T15:04:05", s[:canonicalTimestampLen-1]); err != nil {
		return "", fieldErr(CodeTimestampFormat, level, field, "invalid timestamp: %s", raw)
	}
	return s, nil
}

// ParseTimestamp parses an already-canonical timestamp into a UTC instant.
// Callers gate deadline and expiry policy on the result.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05Z07:00", s)
}
