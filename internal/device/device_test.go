package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DeviceSuite struct {
	suite.Suite
	svc *Service
}

func (s *DeviceSuite) SetupTest() {
	s.svc = NewService(true)
}

func TestDeviceSuite(t *testing.T) {
	suite.Run(t, new(DeviceSuite))
}

func (s *DeviceSuite) TestParseUserAgent() {
	s.Run("empty user agent returns unknown device", func() {
		s.Equal("Unknown Device", ParseUserAgent(""))
		s.Equal("Unknown Device", ParseUserAgent("   "))
	})

	s.Run("chrome on desktop names browser and OS", func() {
		result := ParseUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		s.Contains(result, "Chrome")
		s.Contains(result, " on ")
		s.NotContains(result, "  ")
	})

	s.Run("safari on iphone names the platform", func() {
		result := ParseUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		s.Contains(result, "iPhone")
	})

	s.Run("firefox on linux", func() {
		result := ParseUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		s.Contains(result, "Firefox")
		s.Contains(result, " on ")
	})

	s.Run("no surrounding whitespace", func() {
		result := ParseUserAgent("Unknown/1.0")
		s.NotEmpty(result)
		s.Equal(strings.TrimSpace(result), result)
	})
}

func (s *DeviceSuite) TestFingerprint() {
	chrome120a := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36"
	chrome120b := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.224 Safari/537.36"
	chrome121 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

	s.Run("disabled service returns empty fingerprint", func() {
		s.Empty(NewService(false).Fingerprint(chrome120a))
	})

	s.Run("deterministic sha-256 hex", func() {
		fp := s.svc.Fingerprint(chrome120a)
		s.Len(fp, 64)
		s.Equal(fp, s.svc.Fingerprint(chrome120a))
	})

	s.Run("minor versions share a fingerprint", func() {
		s.Equal(s.svc.Fingerprint(chrome120a), s.svc.Fingerprint(chrome120b))
	})

	s.Run("major versions differ", func() {
		s.NotEqual(s.svc.Fingerprint(chrome120a), s.svc.Fingerprint(chrome121))
	})
}
