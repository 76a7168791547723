// Package policy loads operator-controlled gateway policy from a YAML file.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy holds operator-supplied additions to the built-in safety gate:
// extra deny-listed keywords and upper bounds on caller-requested limits.
type Policy struct {
	DenyKeywords []string  `yaml:"deny_keywords"`
	Limits       LimitCaps `yaml:"limits"`
}

// LimitCaps clamp the limits a caller may request. Zero means "no cap".
type LimitCaps struct {
	MaxRows        int `yaml:"max_rows"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the cap as a duration, zero when uncapped.
func (c LimitCaps) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

var keywordRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

func validate(pol *Policy) error {
	for _, kw := range pol.DenyKeywords {
		if !keywordRE.MatchString(kw) {
			return fmt.Errorf("deny_keywords contains %q: keywords must be single identifiers", kw)
		}
	}
	if pol.Limits.MaxRows < 0 {
		return fmt.Errorf("limits.max_rows must not be negative")
	}
	if pol.Limits.TimeoutSeconds < 0 {
		return fmt.Errorf("limits.timeout_seconds must not be negative")
	}
	return nil
}
