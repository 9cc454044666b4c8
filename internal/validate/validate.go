package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reEmail    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reQ        = regexp.MustCompile(`^[\p{L}\p{N} _'&.,-]{1,100}$`)
	reID       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reCond     = regexp.MustCompile(`^(NEW|LIKE_NEW|USED)$`)
	reTracking = regexp.MustCompile(`^[A-Za-z0-9-]{6,40}$`)
	reMethod   = regexp.MustCompile(`^(CARD|BANK_TRANSFER|WALLET)$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 80 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Q validates a search query: trims, enforces allowed characters and max length
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return s, reQ.MatchString(s)
}

// ID validates a simple resource identifier (item/auction/offer ids, uuids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Condition validates allowed condition enums.
func Condition(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, s != "" && reCond.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > 40 {
		return "", false
	}
	return s, true
}

// Text validates free text (titles, messages, review comments) up to max runes.
func Text(s string, max int, required bool) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", !required
	}
	return s, utf8.RuneCountInString(s) <= max
}

// Tracking validates a carrier tracking number.
func Tracking(s string) (string, bool) {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	return s, reTracking.MatchString(s)
}

// PaymentMethod validates the supported payment methods.
func PaymentMethod(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reMethod.MatchString(s)
}

// Password enforces length and character classes for new accounts.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
