// Package phone normalizes customer phone numbers for storage.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Numbers without a country prefix are assumed to be Indian.
const defaultRegion = "IN"

// NormalizeE164 canonicalizes a phone number to E.164 form. Input that
// cannot be parsed or is not a valid number is returned trimmed but
// otherwise untouched, so callers never lose what the user typed.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	num, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return trimmed
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}
