package processor

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// defaultCountryCode is prepended to ten-digit domestic numbers.
const defaultCountryCode = "1"

// NormalizePhoneNumber canonicalizes a free-form number into a dialable
// E.164-like string. Only unambiguous shapes are accepted; anything else
// fails rather than guessing.
func NormalizePhoneNumber(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	switch d := digits.String(); {
	case len(d) == 10:
		return "+" + defaultCountryCode + d, nil
	case len(d) == 11 && strings.HasPrefix(d, defaultCountryCode):
		return "+" + d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
	}
}

// ValidateScheduledTime parses an RFC 3339 timestamp and requires it to be
// strictly in the future.
func ValidateScheduledTime(raw string, now time.Time) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a valid RFC 3339 timestamp", ErrInvalidScheduledTime, raw)
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidScheduledTime, t.Format(time.RFC3339))
	}
	return t.UTC(), nil
}
