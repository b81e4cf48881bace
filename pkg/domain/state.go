package domain

import (
	"fmt"
	"time"
)

// Phase is the tagged state of a channel's action sequencer.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePending  Phase = "pending"
	PhaseActive   Phase = "active"
	PhaseCooldown Phase = "cooldown"
)

const tierCount = int(TierCritical) + 1

// TierCounters holds one value per tier, indexed by Tier.
type TierCounters [tierCount]int

// TierMarks holds one timestamp per tier, indexed by Tier.
type TierMarks [tierCount]time.Time

// ChannelState is the long-lived state of one channel during a run.
// It is a plain value: copying it yields an independent record.
type ChannelState struct {
	Channel string `json:"channel"`

	// Persistence tracking.
	Counts     TierCounters `json:"counts"`
	Since      TierMarks    `json:"since"`
	ClearCount int          `json:"clear_count"`
	ClearSince time.Time    `json:"clear_since"`
	Alert      bool         `json:"alert"`
	AlertTier  Tier         `json:"alert_tier"`
	AlertSide  Side         `json:"alert_side,omitempty"`
	AlertSince time.Time    `json:"alert_since"`

	// Action sequencing.
	Phase           Phase     `json:"phase"`
	Cycle           string    `json:"cycle,omitempty"`
	StageIndex      int       `json:"stage_index"`
	StageEntered    time.Time `json:"stage_entered"`
	CooldownUntil   time.Time `json:"cooldown_until"`
	EpisodeCycles   int       `json:"episode_cycles"`
	CyclesCompleted int       `json:"cycles_completed"`
	Exhausted       bool      `json:"exhausted"`

	// Orchestration.
	LastSeen  time.Time `json:"last_seen"`
	Stale     bool      `json:"stale"`
	Reference float64   `json:"reference"`
	HasRef    bool      `json:"has_ref"`
}

// NewChannelState returns the initial state of a channel.
func NewChannelState(channel string) ChannelState {
	return ChannelState{Channel: channel, Phase: PhaseIdle, AlertTier: TierNormal}
}

// Label renders the sequencer position the way events report it,
// e.g. "idle" or "active_stage_2".
func (s ChannelState) Label() string {
	if s.Phase == PhaseActive {
		return fmt.Sprintf("active_stage_%d", s.StageIndex+1)
	}
	return string(s.Phase)
}

// InCycle reports whether a cycle is running or cooling down.
func (s ChannelState) InCycle() bool {
	return s.Phase == PhaseActive || s.Phase == PhaseCooldown
}
