package phone

import (
	"errors"
	"strings"
)

// Kenyan MSISDNs only. The push-payment provider bills against
// 2547XXXXXXXX / 2541XXXXXXXX subscriber numbers.
const countryCode = "254"

var ErrInvalid = errors.New("invalid phone number")

// Normalize accepts local (07.. / 01..), international (+254..) or bare
// country-code (254..) input and returns the canonical 12-digit form.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.TrimPrefix(s, "+")

	switch {
	case strings.HasPrefix(s, countryCode):
		// already canonical, length checked below
	case strings.HasPrefix(s, "0"):
		s = countryCode + s[1:]
	default:
		return "", ErrInvalid
	}

	if len(s) != 12 || !digitsOnly(s) {
		return "", ErrInvalid
	}
	// subscriber part must be a mobile range (7xx or 1xx)
	if s[3] != '7' && s[3] != '1' {
		return "", ErrInvalid
	}
	return s, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
