package domain

import (
	"context"
	"time"
)

// EventKind defines the category of an emitted event.
type EventKind string

const (
	EventAlertRaised    EventKind = "alert_raised"
	EventAlertEscalated EventKind = "alert_escalated"
	EventAlertCleared   EventKind = "alert_cleared"

	EventCycleStarted    EventKind = "cycle_started"
	EventStageAdvanced   EventKind = "stage_advanced"
	EventCycleCompleted  EventKind = "cycle_completed"
	EventCycleAborted    EventKind = "cycle_aborted"
	EventCooldownElapsed EventKind = "cooldown_elapsed"
	EventCycleExhausted  EventKind = "cycle_exhausted"

	EventDataQuality    EventKind = "data_quality"
	EventChannelStale   EventKind = "channel_stale"
	EventChannelResumed EventKind = "channel_resumed"
	EventFrameReordered EventKind = "frame_reordered"

	EventReferenceAlert       EventKind = "reference_alert"
	EventReferenceUnavailable EventKind = "reference_unavailable"
)

// SystemChannel is the channel id used for events that belong to no configured channel.
const SystemChannel = "system"

// Event is an immutable record of one observable transition.
type Event struct {
	Seq        int       `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Channel    string    `json:"channel"`
	Kind       EventKind `json:"kind"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Cycle      string    `json:"cycle,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	StageIndex int       `json:"stage_index,omitempty"` // 1-based
	Attempt    int       `json:"attempt,omitempty"`
	Tier       Tier      `json:"tier"`
	Value      float64   `json:"value"`
	Detail     string    `json:"detail"`
}

// FrameEvent describes one processed frame.
type FrameEvent struct {
	Timestamp time.Time
	Channels  int
	Invalid   int
}

// RunEvent describes a completed run.
type RunEvent struct {
	RunID    string
	Frames   int
	Events   int
	Duration time.Duration
	Err      error
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnEvent       func(context.Context, *Event)
	OnFrame       func(context.Context, *FrameEvent)
	OnRunComplete func(context.Context, *RunEvent)
}
