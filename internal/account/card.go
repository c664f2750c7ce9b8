package account

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidCard is returned when a card number fails the Luhn check.
	ErrInvalidCard = errors.New("invalid card number")
	// ErrCardExpired is returned for cards past their expiry month.
	ErrCardExpired = errors.New("card expired")
)

// NormalizeCardNumber strips spaces and dashes, rejecting any other non-digit.
func NormalizeCardNumber(number string) (string, error) {
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return "", ErrInvalidCard
		}
	}
	digits := b.String()
	if len(digits) < 12 || len(digits) > 19 {
		return "", ErrInvalidCard
	}
	return digits, nil
}

// Luhn reports whether digits passes the mod-10 checksum.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// CardBrand infers the card network from its leading digits.
func CardBrand(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case hasPrefixRange(digits, 2, 51, 55), hasPrefixRange(digits, 4, 2221, 2720):
		return "mastercard"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	case strings.HasPrefix(digits, "9792"):
		return "troy"
	default:
		return "unknown"
	}
}

// Expired reports whether a card with the given expiry is no longer valid at now.
func Expired(month, year int, now time.Time) bool {
	if year != now.Year() {
		return year < now.Year()
	}
	return month < int(now.Month())
}

func hasPrefixRange(digits string, n, lo, hi int) bool {
	if len(digits) < n {
		return false
	}
	v := 0
	for _, c := range digits[:n] {
		v = v*10 + int(c-'0')
	}
	return v >= lo && v <= hi
}
