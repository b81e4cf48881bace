package runtime

import (
	"math"
	"time"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
)

// Classify evaluates a value against the bounds of a channel.
//
// A high bound is breached when value >= bound and a low bound when value <= bound.
// When several bounds are breached the most severe tier wins; a tie prefers the
// high side. A value that breaches nothing but falls outside the normal band is
// Elevated. NaN and infinities are Invalid.
func Classify(ch *config.Channel, value float64) (domain.Tier, domain.Side) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return domain.TierInvalid, domain.SideNone
	}

	tier, side := domain.TierNormal, domain.SideNone
	for _, th := range ch.Thresholds {
		if th.High != nil && value >= *th.High && th.Tier > tier {
			tier, side = th.Tier, domain.SideHigh
		}
		if th.Low != nil && value <= *th.Low && th.Tier > tier {
			tier, side = th.Tier, domain.SideLow
		}
	}
	if tier != domain.TierNormal {
		return tier, side
	}

	if ch.Normal != nil && !ch.Normal.Contains(value) {
		if ch.Normal.High != nil && value > *ch.Normal.High {
			return domain.TierElevated, domain.SideHigh
		}
		return domain.TierElevated, domain.SideLow
	}
	return domain.TierNormal, domain.SideNone
}

// classifyReading wraps Classify with the reading's quality flag and the
// channel's reference offset. The returned reason is set for Invalid results.
func classifyReading(ch *config.Channel, s domain.ChannelState, ts time.Time, r domain.Reading) (domain.Classification, string) {
	cls := domain.Classification{Channel: ch.ID, Timestamp: ts, Tier: domain.TierInvalid, Value: r.Value}

	switch {
	case r.Quality == domain.QualityBad:
		return cls, "reading flagged bad by the source"
	case !r.Usable():
		return cls, "missing or non-numeric value"
	case ch.RelativeTo != "" && !s.HasRef:
		return cls, "no reference value from " + ch.RelativeTo
	}

	value := r.Value
	if ch.RelativeTo != "" {
		value -= s.Reference
	}
	cls.Tier, cls.Side = Classify(ch, value)
	return cls, ""
}
