// Package macaddr validates and sanitizes the MAC address of the machine
// to wake.
package macaddr

import (
	"regexp"
	"strings"
)

// Six hex octets joined by a single separator kind. Addresses mixing ':'
// and '-' match neither form.
var (
	colonForm  = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$`)
	hyphenForm = regexp.MustCompile(`^[0-9A-Fa-f]{2}(-[0-9A-Fa-f]{2}){5}$`)
)

// Valid reports whether s is a MAC address in strict colon or hyphen
// separated form, e.g. "00:11:22:33:44:55" or "AA-BB-CC-DD-EE-FF".
func Valid(s string) bool {
	return colonForm.MatchString(s) || hyphenForm.MatchString(s)
}

// Sanitize drops every character that is not a hex digit, ':' or '-'.
// The result is safe to interpolate into a remote shell command.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F', r == ':', r == '-':
			return r
		default:
			return -1
		}
	}, s)
}
