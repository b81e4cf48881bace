package runtime

import (
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// Summarize folds an ordered event sequence into one summary per channel.
// Channels listed in seed come first, in that order, even when they have no
// events; any other channel follows in order of first appearance. Alerts still
// open at end contribute their duration up to end. A cycle_aborted raised
// from cooldown is counted under ByKind but not under CyclesAborted.
func Summarize(seed []string, events []domain.Event, end time.Time) []domain.ChannelSummary {
	index := make(map[string]int, len(seed))
	out := make([]domain.ChannelSummary, 0, len(seed))
	get := func(ch string) *domain.ChannelSummary {
		i, ok := index[ch]
		if !ok {
			i = len(out)
			index[ch] = i
			out = append(out, domain.ChannelSummary{Channel: ch, ByKind: map[domain.EventKind]int{}})
		}
		return &out[i]
	}
	for _, ch := range seed {
		get(ch)
	}

	open := make(map[string]time.Time)
	for _, ev := range events {
		sum := get(ev.Channel)
		sum.ByKind[ev.Kind]++
		switch ev.Kind {
		case domain.EventAlertRaised:
			sum.AlertsRaised++
			open[ev.Channel] = ev.Timestamp
		case domain.EventAlertEscalated:
			sum.AlertsEscalated++
		case domain.EventAlertCleared:
			sum.AlertsCleared++
			if since, ok := open[ev.Channel]; ok {
				sum.ActiveAlert += ev.Timestamp.Sub(since)
				delete(open, ev.Channel)
			}
		case domain.EventCycleStarted:
			sum.CyclesStarted++
		case domain.EventCycleCompleted:
			sum.CyclesCompleted++
		case domain.EventCycleAborted:
			// An abort during cooldown ends a quiet period, not a cycle.
			if ev.From != string(domain.PhaseCooldown) {
				sum.CyclesAborted++
			}
		case domain.EventCycleExhausted:
			sum.CyclesExhausted++
		case domain.EventDataQuality:
			sum.DataQuality++
		case domain.EventChannelStale:
			sum.StalePeriods++
		}
	}
	for ch, since := range open {
		if end.After(since) {
			out[index[ch]].ActiveAlert += end.Sub(since)
		}
	}
	return out
}
