package domain

import (
	"fmt"
	"strings"
)

// Tier is the ordered severity of a classified reading.
// The ordering is total: Invalid < Normal < Elevated < Warning < Critical.
type Tier int

const (
	// TierInvalid marks a reading that cannot be evaluated (missing, NaN, bad quality, stale).
	TierInvalid Tier = iota
	TierNormal
	// TierElevated is the band between the normal range and the first alert bound.
	// It never confirms an alert and never counts toward clearing one.
	TierElevated
	TierWarning
	TierCritical
)

var tierNames = map[Tier]string{
	TierInvalid:  "invalid",
	TierNormal:   "normal",
	TierElevated: "elevated",
	TierWarning:  "warning",
	TierCritical: "critical",
}

// AlertTiers lists the tiers that may be configured as alert bounds, least severe first.
var AlertTiers = []Tier{TierWarning, TierCritical}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier resolves a configured tier name. Only Normal and above are accepted.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return TierNormal, nil
	case "elevated":
		return TierElevated, nil
	case "warning":
		return TierWarning, nil
	case "critical":
		return TierCritical, nil
	}
	return TierInvalid, fmt.Errorf("unknown tier %q", s)
}

// Valid reports whether the reading could be evaluated at all.
func (t Tier) Valid() bool {
	return t != TierInvalid
}

// Alertable reports whether t is at or above the minimum alertable tier.
func (t Tier) Alertable(min Tier) bool {
	return t.Valid() && t >= min
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	if string(b) == "invalid" {
		*t = TierInvalid
		return nil
	}
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Side identifies which bound of a channel was breached.
type Side string

const (
	SideNone Side = ""
	SideHigh Side = "high"
	SideLow  Side = "low"
)
