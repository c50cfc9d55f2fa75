// Package phone converts stored phone numbers into dispatchable E.164-like numbers.
//
// Normalization is a best-effort regional policy, not validation:
// numbers that cannot be normalized are returned as entered and any
// format problem surfaces as a send failure from the SMS provider.
package phone

import "strings"

// DefaultCountryCode is applied to bare ten digit numbers.
const DefaultCountryCode = "91"

// DefaultPolicy assumes ten digit numbers are domestic to DefaultCountryCode.
var DefaultPolicy = Policy{DefaultCountryCode: DefaultCountryCode}

// Policy decides how numbers without an explicit country code are treated.
type Policy struct {
	// DefaultCountryCode is prepended to bare ten digit numbers.
	// It may be given with or without the leading '+'.
	DefaultCountryCode string
}

// Normalize applies the policy to raw.
func (p Policy) Normalize(raw string) string {
	return Normalize(raw, p.DefaultCountryCode)
}

// Normalize returns raw in E.164 form when it can tell how to.
//
//	"+19876543210" -> "+19876543210"
//	"9876543210"   -> "+919876543210" (defaultCountryCode "91")
//	"12345"        -> "12345"
func Normalize(raw, defaultCountryCode string) string {
	n := strings.TrimSpace(raw)
	if strings.HasPrefix(n, "+") {
		return n
	}
	cc := strings.TrimPrefix(strings.TrimSpace(defaultCountryCode), "+")
	if cc == "" || len(n) != 10 || !allDigits(n) {
		return n
	}
	return "+" + cc + n
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
