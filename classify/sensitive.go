package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// Sensitive-content detection. Each pattern class independently vetoes the
// whole payload; nothing is partially redacted. Applied by the pipeline only
// to text-like kinds (see Kind.TextLike).

// credentialRe matches password/token-style key=value assignments.
var credentialRe = regexp.MustCompile(
	`(?i)\b(password|passwd|pwd|pass|secret|token|api[_-]?key|apikey|auth|credential|login|otp|2fa|ssn)\b\s*[:=]\s*\S+`)

// entropyRunRe matches candidate API-key runs; candidates still need mixed
// character classes (see looksHighEntropy) to reduce false positives on
// ordinary long words.
var entropyRunRe = regexp.MustCompile(`[A-Za-z0-9_\-]{24,}`)

// cardRe matches credit-card shaped digit sequences (13-19 digits, optional
// space/dash separators). Matches are confirmed with a Luhn checksum.
var cardRe = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

// ssnRe matches national-ID shaped digit groups (US SSN form).
var ssnRe = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

// Sensitive reports whether text resembles credentials, API keys, card
// numbers, or national ID numbers. A single match vetoes the payload.
func Sensitive(text string) bool {
	if credentialRe.MatchString(text) {
		return true
	}
	if ssnRe.MatchString(text) {
		return true
	}
	for _, m := range cardRe.FindAllString(text, -1) {
		if luhnValid(m) {
			return true
		}
	}
	for _, run := range entropyRunRe.FindAllString(text, -1) {
		if looksHighEntropy(run) {
			return true
		}
	}
	return false
}

// looksHighEntropy reports whether a run mixes upper, lower, and digit
// classes the way machine-generated keys do. Plain words and plain numbers
// do not qualify.
func looksHighEntropy(run string) bool {
	var upper, lower, digit int
	for _, r := range run {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		case unicode.IsDigit(r):
			digit++
		}
	}
	classes := 0
	for _, n := range []int{upper, lower, digit} {
		if n > 0 {
			classes++
		}
	}
	return classes >= 3
}

// luhnValid strips separators and applies the Luhn checksum.
func luhnValid(s string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
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
