// Package strcase provides the case conversions used for backend
// identifiers (snake_case table and column names), HTTP paths and UI tags.
package strcase

import (
	"strings"
	"unicode"
)

// Snake converts camelCase or dotted identifiers to snake_case.
// Dots become underscores, so "acme.AlarmRule.1.1" yields
// "acme_alarm_rule_1_1".
func Snake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	prevLower := false
	for _, r := range s {
		switch {
		case r == '.' || r == '-' || r == ' ':
			b.WriteByte('_')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return b.String()
}

// Path converts a dotted identifier to a URL path segment chain:
// "v1.acme.AlarmRule" yields "v1/acme/alarm_rule".
func Path(s string) string {
	parts := strings.Split(s, ".")
	for i, part := range parts {
		parts[i] = Snake(part)
	}
	return strings.Join(parts, "/")
}

// Title converts a dotted or snake identifier to a spaced Title Case
// label: "metric.alarm" yields "Metric Alarm".
func Title(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == ' '
	})
	for i, f := range fields {
		if f == "" {
			continue
		}
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}
