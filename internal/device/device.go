// Package device turns User-Agent headers into labels for audit records.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

const unknown = "Unknown Device"

// ParseUserAgent returns a display name such as "Chrome on macOS".
func ParseUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return unknown
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := osName(parsed)
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

func osName(ua *useragent.UserAgent) string {
	info := ua.OSInfo()
	switch {
	case strings.Contains(ua.Platform(), "iPhone"):
		return "iPhone"
	case strings.Contains(ua.Platform(), "iPad"):
		return "iPad"
	case info.Name == "Mac OS X":
		return "macOS"
	case info.Name != "":
		return info.Name
	default:
		return ua.OS()
	}
}

// Service computes coarse device fingerprints. A disabled service returns
// empty fingerprints so deployments can switch the feature off.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// Fingerprint hashes browser name, browser major version, OS and platform.
// Minor browser updates keep the same fingerprint.
func (s *Service) Fingerprint(ua string) string {
	if !s.enabled || strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := useragent.New(ua)
	browser, version := parsed.Browser()
	major, _, _ := strings.Cut(version, ".")
	sum := sha256.Sum256([]byte(strings.Join([]string{browser, major, parsed.OS(), parsed.Platform()}, "|")))
	return hex.EncodeToString(sum[:])
}
