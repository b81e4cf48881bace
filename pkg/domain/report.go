package domain

import (
	"sort"
	"time"
)

// ChannelSummary is the terminal aggregate of one channel's events.
type ChannelSummary struct {
	Channel         string            `json:"channel"`
	AlertsRaised    int               `json:"alerts_raised"`
	AlertsEscalated int               `json:"alerts_escalated"`
	AlertsCleared   int               `json:"alerts_cleared"`
	CyclesStarted   int               `json:"cycles_started"`
	CyclesCompleted int               `json:"cycles_completed"`
	CyclesAborted   int               `json:"cycles_aborted"`
	CyclesExhausted int               `json:"cycles_exhausted"`
	DataQuality     int               `json:"data_quality"`
	StalePeriods    int               `json:"stale_periods"`
	ActiveAlert     time.Duration     `json:"active_alert_ns"`
	ByKind          map[EventKind]int `json:"by_kind"`
}

// Report is everything a run hands to report writers.
type Report struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	Frames     int              `json:"frames"`
	Events     []Event          `json:"events"`
	Summary    []ChannelSummary `json:"summary"`
}

// Kinds returns the event kinds seen on the channel in lexical order.
func (s ChannelSummary) Kinds() []EventKind {
	kinds := make([]EventKind, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Totals adds up the summaries of every channel.
func (r *Report) Totals() ChannelSummary {
	total := ChannelSummary{Channel: "total", ByKind: map[EventKind]int{}}
	for _, s := range r.Summary {
		total.AlertsRaised += s.AlertsRaised
		total.AlertsEscalated += s.AlertsEscalated
		total.AlertsCleared += s.AlertsCleared
		total.CyclesStarted += s.CyclesStarted
		total.CyclesCompleted += s.CyclesCompleted
		total.CyclesAborted += s.CyclesAborted
		total.CyclesExhausted += s.CyclesExhausted
		total.DataQuality += s.DataQuality
		total.StalePeriods += s.StalePeriods
		total.ActiveAlert += s.ActiveAlert
		for k, n := range s.ByKind {
			total.ByKind[k] += n
		}
	}
	return total
}
