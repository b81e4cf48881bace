package runtime

import (
	"time"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
)

// TransitionKind is the signal the tracker hands to the sequencer.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionConfirmed
	TransitionEscalated
	TransitionCleared
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionConfirmed:
		return "confirmed"
	case TransitionEscalated:
		return "escalated"
	case TransitionCleared:
		return "cleared"
	}
	return "none"
}

// Transition is the outcome of one tracker update.
// For Cleared, Tier and Side describe the alert that ended.
type Transition struct {
	Kind     TransitionKind
	Tier     domain.Tier
	Side     domain.Side
	Previous domain.Tier
}

// Track folds one classification into the persistence counters of a channel.
//
// Counters are kept per alertable tier: a sample at tier t increments every
// counter at or below t and resets those above it. A sample below the minimum
// alertable tier resets them all. Invalid samples hold every counter. In count
// mode counters saturate at the confirm threshold.
func Track(ch *config.Channel, s domain.ChannelState, cls domain.Classification) (domain.ChannelState, Transition) {
	if !cls.Tier.Valid() {
		return s, Transition{}
	}
	p := ch.Persistence
	ts := cls.Timestamp

	for _, t := range domain.AlertTiers {
		if t < ch.MinAlertTier {
			continue
		}
		if !cls.Tier.Alertable(ch.MinAlertTier) || cls.Tier < t {
			s.Counts[t] = 0
			s.Since[t] = time.Time{}
			continue
		}
		if s.Counts[t] == 0 {
			s.Since[t] = ts
		}
		if p.Mode != config.ModeCount || s.Counts[t] < p.Confirm {
			s.Counts[t]++
		}
	}

	if s.Alert {
		if cls.Tier == domain.TierNormal {
			if s.ClearCount == 0 {
				s.ClearSince = ts
			}
			s.ClearCount++
			if reached(p.Mode, p.Clear, p.ClearAfter, s.ClearCount, s.ClearSince, ts) {
				tr := Transition{Kind: TransitionCleared, Tier: s.AlertTier, Side: s.AlertSide}
				return clearAlert(s), tr
			}
			return s, Transition{}
		}
		s.ClearCount = 0
		s.ClearSince = time.Time{}

		if top, ok := highestConfirmed(ch, s, ts); ok && top > s.AlertTier {
			tr := Transition{Kind: TransitionEscalated, Tier: top, Side: cls.Side, Previous: s.AlertTier}
			s.AlertTier = top
			s.AlertSide = cls.Side
			return s, tr
		}
		return s, Transition{}
	}

	if top, ok := highestConfirmed(ch, s, ts); ok {
		s.Alert = true
		s.AlertTier = top
		s.AlertSide = cls.Side
		s.AlertSince = ts
		s.ClearCount = 0
		s.ClearSince = time.Time{}
		return s, Transition{Kind: TransitionConfirmed, Tier: top, Side: cls.Side, Previous: domain.TierNormal}
	}
	return s, Transition{}
}

func highestConfirmed(ch *config.Channel, s domain.ChannelState, ts time.Time) (domain.Tier, bool) {
	p := ch.Persistence
	for i := len(domain.AlertTiers) - 1; i >= 0; i-- {
		t := domain.AlertTiers[i]
		if t < ch.MinAlertTier || s.Counts[t] == 0 {
			continue
		}
		if reached(p.Mode, p.Confirm, p.ConfirmAfter, s.Counts[t], s.Since[t], ts) {
			return t, true
		}
	}
	return domain.TierInvalid, false
}

func reached(mode config.PersistenceMode, count int, after time.Duration, n int, since, now time.Time) bool {
	if mode == config.ModeDuration {
		return !since.IsZero() && now.Sub(since) >= after
	}
	return n >= count
}

func clearAlert(s domain.ChannelState) domain.ChannelState {
	s.Alert = false
	s.AlertTier = domain.TierNormal
	s.AlertSide = domain.SideNone
	s.AlertSince = time.Time{}
	s.ClearCount = 0
	s.ClearSince = time.Time{}
	s.Counts = domain.TierCounters{}
	s.Since = domain.TierMarks{}
	return s
}
