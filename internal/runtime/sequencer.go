package runtime

import (
	"fmt"
	"time"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
)

// SignalKind is the input of the action sequencer.
type SignalKind int

const (
	// SignalTick advances time: every stage or cooldown boundary passed is applied.
	SignalTick SignalKind = iota
	SignalConfirmed
	SignalEscalated
	SignalCleared
)

func (k SignalKind) String() string {
	switch k {
	case SignalConfirmed:
		return "confirmed"
	case SignalEscalated:
		return "escalated"
	case SignalCleared:
		return "cleared"
	}
	return "tick"
}

// Signal is one input of Sequencer.Step.
type Signal struct {
	Kind  SignalKind
	At    time.Time
	Tier  domain.Tier
	Side  domain.Side
	Value float64
}

// SignalFor converts a tracker transition into a sequencer signal.
func SignalFor(tr Transition, cls domain.Classification) (Signal, bool) {
	sig := Signal{At: cls.Timestamp, Tier: tr.Tier, Side: tr.Side, Value: cls.Value}
	switch tr.Kind {
	case TransitionConfirmed:
		sig.Kind = SignalConfirmed
	case TransitionEscalated:
		sig.Kind = SignalEscalated
	case TransitionCleared:
		sig.Kind = SignalCleared
	default:
		return Signal{}, false
	}
	return sig, true
}

type stepFunc func(sq *Sequencer, ch *config.Channel, s domain.ChannelState, sig Signal) (domain.ChannelState, []domain.Event, error)

type transitionKey struct {
	phase  domain.Phase
	signal SignalKind
}

// transitions is the sequencer's state table. A missing row is a no-op.
var transitions = map[transitionKey]stepFunc{
	{domain.PhaseIdle, SignalConfirmed}: (*Sequencer).start,

	{domain.PhasePending, SignalConfirmed}: (*Sequencer).start,
	{domain.PhasePending, SignalTick}:      (*Sequencer).start,
	{domain.PhasePending, SignalCleared}:   (*Sequencer).abort,

	{domain.PhaseActive, SignalTick}:    (*Sequencer).advance,
	{domain.PhaseActive, SignalCleared}: (*Sequencer).abort,

	{domain.PhaseCooldown, SignalTick}:    (*Sequencer).advance,
	{domain.PhaseCooldown, SignalCleared}: (*Sequencer).abort,
}

// Sequencer drives the action cycles of channels. It holds no channel state.
type Sequencer struct {
	cycles map[string]config.Cycle
}

// NewSequencer creates a sequencer over the configured cycles.
func NewSequencer(cfg *config.Config) *Sequencer {
	return &Sequencer{cycles: cfg.Cycles}
}

// Step applies one signal to a channel and returns the new state and the
// events of every transition taken, in order.
func (sq *Sequencer) Step(ch *config.Channel, s domain.ChannelState, sig Signal) (domain.ChannelState, []domain.Event, error) {
	var events []domain.Event
	if fn, ok := transitions[transitionKey{s.Phase, sig.Kind}]; ok {
		var err error
		s, events, err = fn(sq, ch, s, sig)
		if err != nil {
			return s, events, err
		}
	}
	if sig.Kind == SignalCleared {
		// A cleared alert closes the episode.
		s.EpisodeCycles = 0
		s.Exhausted = false
	}
	return s, events, nil
}

func (sq *Sequencer) start(ch *config.Channel, s domain.ChannelState, sig Signal) (domain.ChannelState, []domain.Event, error) {
	tier, side := sig.Tier, sig.Side
	if sig.Kind == SignalTick {
		tier, side = s.AlertTier, s.AlertSide
	}
	name, ok := ch.CycleFor(tier, side)
	if !ok {
		return s, nil, &domain.ConfigurationError{
			Field:  fmt.Sprintf("channels[%s].routes", ch.ID),
			Reason: fmt.Sprintf("no cycle mapped for tier %s on the %s side", tier, side),
		}
	}
	cycle, ok := sq.cycles[name]
	if !ok || len(cycle.Stages) == 0 {
		return s, nil, &domain.ConfigurationError{Field: fmt.Sprintf("cycles[%s]", name), Reason: "unknown cycle"}
	}

	from := s.Label()
	if ch.MaxCycles > 0 && s.EpisodeCycles >= ch.MaxCycles {
		s = resetCycle(s)
		s.Exhausted = true
		return s, []domain.Event{{
			Timestamp: sig.At,
			Channel:   ch.ID,
			Kind:      domain.EventCycleExhausted,
			From:      from,
			To:        s.Label(),
			Cycle:     name,
			Attempt:   ch.MaxCycles,
			Tier:      tier,
			Value:     sig.Value,
			Detail:    fmt.Sprintf("%s failed: max cycles (%d) reached", name, ch.MaxCycles),
		}}, nil
	}

	s.EpisodeCycles++
	s.Phase = domain.PhaseActive
	s.Cycle = name
	s.StageIndex = 0
	s.StageEntered = sig.At
	s.CooldownUntil = time.Time{}

	stage := cycle.Stages[0]
	return s, []domain.Event{{
		Timestamp:  sig.At,
		Channel:    ch.ID,
		Kind:       domain.EventCycleStarted,
		From:       from,
		To:         s.Label(),
		Cycle:      name,
		Stage:      stage.Name,
		StageIndex: 1,
		Attempt:    s.EpisodeCycles,
		Tier:       tier,
		Value:      sig.Value,
		Detail:     stageDetail(name, s.EpisodeCycles, stage),
	}}, nil
}

// advance applies every stage and cooldown boundary that lies at or before sig.At.
// Events carry the boundary time, not the time of the signal.
func (sq *Sequencer) advance(ch *config.Channel, s domain.ChannelState, sig Signal) (domain.ChannelState, []domain.Event, error) {
	var events []domain.Event
	for {
		switch s.Phase {
		case domain.PhaseActive:
			cycle := sq.cycles[s.Cycle]
			stage, _ := cycle.Stage(s.StageIndex)
			end := s.StageEntered.Add(stage.Duration)
			if sig.At.Before(end) {
				return s, events, nil
			}
			from := s.Label()
			if next, ok := cycle.Stage(s.StageIndex + 1); ok {
				s.StageIndex++
				s.StageEntered = end
				events = append(events, domain.Event{
					Timestamp:  end,
					Channel:    ch.ID,
					Kind:       domain.EventStageAdvanced,
					From:       from,
					To:         s.Label(),
					Cycle:      s.Cycle,
					Stage:      next.Name,
					StageIndex: s.StageIndex + 1,
					Attempt:    s.EpisodeCycles,
					Tier:       s.AlertTier,
					Detail:     stageDetail(s.Cycle, s.EpisodeCycles, next),
				})
				continue
			}
			s.Phase = domain.PhaseCooldown
			s.CooldownUntil = end.Add(cycle.Cooldown)
			s.CyclesCompleted++
			events = append(events, domain.Event{
				Timestamp:  end,
				Channel:    ch.ID,
				Kind:       domain.EventCycleCompleted,
				From:       from,
				To:         s.Label(),
				Cycle:      s.Cycle,
				Stage:      stage.Name,
				StageIndex: s.StageIndex + 1,
				Attempt:    s.EpisodeCycles,
				Tier:       s.AlertTier,
				Detail:     fmt.Sprintf("%s cycle #%d completed all %d stages", s.Cycle, s.EpisodeCycles, len(cycle.Stages)),
			})

		case domain.PhaseCooldown:
			if sig.At.Before(s.CooldownUntil) {
				return s, events, nil
			}
			at := s.CooldownUntil
			cycle := s.Cycle
			if !s.Alert {
				s = resetCycle(s)
				events = append(events, domain.Event{
					Timestamp: at,
					Channel:   ch.ID,
					Kind:      domain.EventCooldownElapsed,
					From:      string(domain.PhaseCooldown),
					To:        s.Label(),
					Cycle:     cycle,
					Tier:      domain.TierNormal,
					Detail:    "cooldown elapsed, monitoring resumed",
				})
				return s, events, nil
			}
			s.Phase = domain.PhasePending
			events = append(events, domain.Event{
				Timestamp: at,
				Channel:   ch.ID,
				Kind:      domain.EventCooldownElapsed,
				From:      string(domain.PhaseCooldown),
				To:        s.Label(),
				Cycle:     cycle,
				Tier:      s.AlertTier,
				Detail:    fmt.Sprintf("cooldown elapsed with %s alert still standing", s.AlertTier),
			})
			next, evs, err := sq.start(ch, s, Signal{Kind: SignalTick, At: at})
			if err != nil {
				return s, events, err
			}
			s = next
			events = append(events, evs...)

		default:
			return s, events, nil
		}
	}
}

func (sq *Sequencer) abort(ch *config.Channel, s domain.ChannelState, sig Signal) (domain.ChannelState, []domain.Event, error) {
	ev := domain.Event{
		Timestamp: sig.At,
		Channel:   ch.ID,
		Kind:      domain.EventCycleAborted,
		From:      s.Label(),
		Cycle:     s.Cycle,
		Attempt:   s.EpisodeCycles,
		Tier:      sig.Tier,
		Value:     sig.Value,
	}
	switch s.Phase {
	case domain.PhaseActive:
		stage, _ := sq.cycles[s.Cycle].Stage(s.StageIndex)
		ev.Stage = stage.Name
		ev.StageIndex = s.StageIndex + 1
		ev.Detail = fmt.Sprintf("condition cleared at stage %d of %d (%s)",
			s.StageIndex+1, len(sq.cycles[s.Cycle].Stages), stage.Name)
	case domain.PhaseCooldown:
		ev.Detail = "condition cleared during cooldown"
	default:
		ev.Detail = "condition cleared before the cycle started"
	}
	s = resetCycle(s)
	ev.To = s.Label()
	return s, []domain.Event{ev}, nil
}

func resetCycle(s domain.ChannelState) domain.ChannelState {
	s.Phase = domain.PhaseIdle
	s.Cycle = ""
	s.StageIndex = 0
	s.StageEntered = time.Time{}
	s.CooldownUntil = time.Time{}
	return s
}

func stageDetail(cycle string, attempt int, st config.Stage) string {
	if st.Action == "" {
		return fmt.Sprintf("%s cycle #%d: %s for %s", cycle, attempt, st.Name, st.Duration)
	}
	return fmt.Sprintf("%s cycle #%d: %s for %s: %s", cycle, attempt, st.Name, st.Duration, st.Action)
}
