// Package email checks contact addresses entered on forms.
package email

import (
	"net/mail"
	"strings"
)

// Normalize trims and lower-cases the domain part.
func Normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return addr
	}
	return addr[:at] + "@" + strings.ToLower(addr[at+1:])
}

// Valid reports whether addr is a bare address with a dotted domain.
// Display names ("Jo <jo@example.com>") are rejected.
func Valid(addr string) bool {
	addr = strings.TrimSpace(addr)
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return false
	}
	at := strings.LastIndexByte(addr, '@')
	domain := addr[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
