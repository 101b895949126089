package model

import (
	"fmt"
	"strings"
)

// Tier is a coarse confidence level with a strict order low < medium < high
type Tier int

const (
	TierUnknown Tier = iota
	TierLow
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// AtLeast reports whether t meets the minimum tier
func (t Tier) AtLeast(minimum Tier) bool {
	return t != TierUnknown && t >= minimum
}

// ParseTier parses "high", "medium" or "low" (case-insensitive)
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return TierHigh, nil
	case "medium":
		return TierMedium, nil
	case "low":
		return TierLow, nil
	default:
		return TierUnknown, fmt.Errorf("unknown confidence tier %q (want high, medium or low)", s)
	}
}

// MarshalText encodes the tier by name
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name; "unknown" and "" decode to TierUnknown
func (t *Tier) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" || s == "unknown" {
		*t = TierUnknown
		return nil
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
