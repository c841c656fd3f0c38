package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WizardOverride adjusts one wizard without a redeploy.
type WizardOverride struct {
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
	Disabled bool          `yaml:"disabled,omitempty"`
}

// WizardSettings models the optional wizard settings file:
//
//	wizards:
//	  lbtt-return:
//	    cache_ttl: 2h
//	  repayment-claim:
//	    disabled: true
type WizardSettings struct {
	Wizards map[string]WizardOverride `yaml:"wizards"`
}

// LoadWizardSettings reads path. An empty path or a missing file yields empty settings.
func LoadWizardSettings(path string) (WizardSettings, error) {
	if path == "" {
		return WizardSettings{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return WizardSettings{}, nil
	}
	if err != nil {
		return WizardSettings{}, fmt.Errorf("read wizard settings: %w", err)
	}
	return ParseWizardSettings(data)
}

// ParseWizardSettings decodes YAML settings and rejects negative TTLs.
func ParseWizardSettings(data []byte) (WizardSettings, error) {
	var s WizardSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return WizardSettings{}, fmt.Errorf("parse wizard settings: %w", err)
	}
	for name, o := range s.Wizards {
		if o.CacheTTL < 0 {
			return WizardSettings{}, fmt.Errorf("wizard %q: cache_ttl must not be negative", name)
		}
	}
	return s, nil
}

// TTLFor returns the override for name, or fallback.
func (s WizardSettings) TTLFor(name string, fallback time.Duration) time.Duration {
	if o, ok := s.Wizards[name]; ok && o.CacheTTL > 0 {
		return o.CacheTTL
	}
	return fallback
}

// Enabled reports whether name is switched on.
func (s WizardSettings) Enabled(name string) bool {
	return !s.Wizards[name].Disabled
}
