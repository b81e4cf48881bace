package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/aretw0/iaqflow/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Engine is the orchestrator. It owns every ChannelState of a run and feeds each
// reading through classification, persistence tracking and sequencing, in that order.
type Engine struct {
	cfg         *config.Config
	sequencer   *Sequencer
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	reference   ports.ReferenceProvider
	parallelism int
	now         func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithReferenceProvider enables the once-per-run reference check.
func WithReferenceProvider(p ports.ReferenceProvider) EngineOption {
	return func(e *Engine) {
		e.reference = p
	}
}

// WithParallelism overrides the configured number of channel workers.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithClock replaces the wall clock used for run bookkeeping.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine validates the configuration and builds an engine.
// Configuration problems are returned here, before any frame is read.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, &domain.ConfigurationError{Field: "config", Reason: "required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:         cfg,
		sequencer:   NewSequencer(cfg),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		parallelism: cfg.Run.Parallelism,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parallelism <= 0 {
		e.parallelism = 1
	}
	return e, nil
}

// Config returns the configuration the engine runs with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Run consumes the whole source and returns the ordered events and the summary.
func (e *Engine) Run(ctx context.Context, runID string, src ports.FrameSource) (*domain.Report, error) {
	started := e.now()
	report, err := e.run(ctx, runID, src, started)
	if e.hooks.OnRunComplete != nil {
		ev := &domain.RunEvent{RunID: runID, Duration: e.now().Sub(started), Err: err}
		if report != nil {
			ev.Frames = report.Frames
			ev.Events = len(report.Events)
		}
		e.hooks.OnRunComplete(ctx, ev)
	}
	return report, err
}

func (e *Engine) run(ctx context.Context, runID string, src ports.FrameSource, started time.Time) (*domain.Report, error) {
	log := e.logger.With("run_id", runID)

	frames, events, err := e.collect(ctx, src, log)
	if err != nil {
		return nil, err
	}
	report := &domain.Report{RunID: runID, StartedAt: started, Frames: len(frames)}
	if len(frames) > 0 {
		report.From = frames[0].Timestamp
		report.To = frames[len(frames)-1].Timestamp
		events = append(events, e.referenceEvents(ctx, report.From, log)...)
	}

	perChannel, err := e.processChannels(ctx, frames, log)
	if err != nil {
		return nil, err
	}
	for _, evs := range perChannel {
		events = append(events, evs...)
	}
	SortEvents(events)

	for _, f := range frames {
		e.emitFrame(ctx, f)
	}
	for i := range events {
		events[i].Seq = i + 1
		if e.hooks.OnEvent != nil {
			e.hooks.OnEvent(ctx, &events[i])
		}
	}

	report.Events = events
	report.Summary = Summarize(e.cfg.ChannelIDs(), events, report.To)
	report.FinishedAt = e.now()
	log.Info("run complete", "frames", report.Frames, "events", len(events))
	return report, nil
}

// collect drains the source and enforces timestamp ordering.
func (e *Engine) collect(ctx context.Context, src ports.FrameSource, log *slog.Logger) ([]domain.Frame, []domain.Event, error) {
	var (
		frames  []domain.Frame
		events  []domain.Event
		latest    time.Time
		reordered bool
		unknown   = make(map[string]bool)
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read frame %d: %w", len(frames)+1, err)
		}

		if len(frames) > 0 && f.Timestamp.Before(latest) {
			if e.cfg.Run.Reorder != config.ReorderSort {
				return nil, nil, &domain.OrderingViolation{Previous: latest, Got: f.Timestamp}
			}
			log.Warn("frame out of order, reordering", "timestamp", f.Timestamp, "previous", latest)
			reordered = true
			events = append(events, domain.Event{
				Timestamp: f.Timestamp,
				Channel:   domain.SystemChannel,
				Kind:      domain.EventFrameReordered,
				Detail: fmt.Sprintf("frame at %s arrived after %s",
					f.Timestamp.Format(time.RFC3339), latest.Format(time.RFC3339)),
			})
		} else {
			latest = f.Timestamp
		}

		var fresh []string
		for id := range f.Readings {
			if _, ok := e.cfg.Channel(id); !ok && !unknown[id] {
				unknown[id] = true
				fresh = append(fresh, id)
			}
		}
		sort.Strings(fresh)
		for _, id := range fresh {
			log.Info("ignoring unconfigured channel", "channel", id)
			events = append(events, domain.Event{
				Timestamp: f.Timestamp,
				Channel:   domain.SystemChannel,
				Kind:      domain.EventDataQuality,
				Tier:      domain.TierInvalid,
				Detail:    fmt.Sprintf("readings for unconfigured channel %s are ignored", id),
			})
		}
		frames = append(frames, f)
	}

	if reordered {
		sort.SliceStable(frames, func(i, j int) bool {
			return frames[i].Timestamp.Before(frames[j].Timestamp)
		})
	}
	return frames, events, nil
}

// processChannels runs every channel over the frames. Channels share no mutable
// state, so they may run on separate workers.
func (e *Engine) processChannels(ctx context.Context, frames []domain.Frame, log *slog.Logger) ([][]domain.Event, error) {
	results := make([][]domain.Event, len(e.cfg.Channels))
	if len(frames) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i := range e.cfg.Channels {
		i := i
		ch := &e.cfg.Channels[i]
		g.Go(func() error {
			evs, err := e.runChannel(gctx, ch, frames, log.With("channel", ch.ID))
			if err != nil {
				return fmt.Errorf("channel %s: %w", ch.ID, err)
			}
			results[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) runChannel(ctx context.Context, ch *config.Channel, frames []domain.Frame, log *slog.Logger) ([]domain.Event, error) {
	s := domain.NewChannelState(ch.ID)
	s.LastSeen = frames[0].Timestamp
	maxGap := e.cfg.Run.MaxGap

	var out []domain.Event
	for i, f := range frames {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if ch.RelativeTo != "" {
			if ref, ok := f.Readings[ch.RelativeTo]; ok && ref.Usable() {
				s.Reference, s.HasRef = ref.Value, true
			}
		}

		if maxGap > 0 && !s.Stale && f.Timestamp.Sub(s.LastSeen) > maxGap {
			s.Stale = true
			out = append(out, domain.Event{
				Timestamp: s.LastSeen.Add(maxGap),
				Channel:   ch.ID,
				Kind:      domain.EventChannelStale,
				Tier:      domain.TierInvalid,
				Detail:    fmt.Sprintf("no reading for more than %s since %s", maxGap, s.LastSeen.Format(time.RFC3339)),
			})
			log.Info("channel stale", "since", s.LastSeen)
		}

		r, present := f.Readings[ch.ID]
		if !present {
			continue
		}
		if s.Stale {
			s.Stale = false
			out = append(out, domain.Event{
				Timestamp: f.Timestamp,
				Channel:   ch.ID,
				Kind:      domain.EventChannelResumed,
				Value:     r.Recorded(),
				Detail:    fmt.Sprintf("readings resumed after %s", f.Timestamp.Sub(s.LastSeen)),
			})
		}
		s.LastSeen = f.Timestamp

		var (
			evs []domain.Event
			err error
		)
		s, evs, err = e.Step(ch, s, f.Timestamp, r, log)
		out = append(out, evs...)
		if err != nil {
			return out, err
		}
	}

	// Apply the boundaries that fall between the channel's last reading and the end of input.
	_, evs, err := e.sequencer.Step(ch, s, Signal{Kind: SignalTick, At: frames[len(frames)-1].Timestamp})
	return append(out, evs...), err
}

// Step processes one reading of one channel: time advance, classification,
// persistence update, then the sequencer signal. It does not mutate its input.
func (e *Engine) Step(ch *config.Channel, s domain.ChannelState, ts time.Time, r domain.Reading, log *slog.Logger) (domain.ChannelState, []domain.Event, error) {
	s, events, err := e.sequencer.Step(ch, s, Signal{Kind: SignalTick, At: ts})
	if err != nil {
		return s, events, err
	}

	cls, reason := classifyReading(ch, s, ts, r)
	if !cls.Tier.Valid() {
		log.Info("invalid reading", "timestamp", ts, "reason", reason)
		events = append(events, domain.Event{
			Timestamp: ts,
			Channel:   ch.ID,
			Kind:      domain.EventDataQuality,
			From:      s.Label(),
			To:        s.Label(),
			Tier:      domain.TierInvalid,
			Value:     r.Recorded(),
			Detail:    reason,
		})
	}

	var tr Transition
	s, tr = Track(ch, s, cls)
	if ev, ok := alertEvent(ch, tr, cls); ok {
		events = append(events, ev)
	}
	sig, ok := SignalFor(tr, cls)
	if !ok {
		return s, events, nil
	}
	s, more, err := e.sequencer.Step(ch, s, sig)
	return s, append(events, more...), err
}

func alertEvent(ch *config.Channel, tr Transition, cls domain.Classification) (domain.Event, bool) {
	ev := domain.Event{
		Timestamp: cls.Timestamp,
		Channel:   ch.ID,
		Tier:      tr.Tier,
		Value:     cls.Value,
	}
	switch tr.Kind {
	case TransitionConfirmed:
		ev.Kind = domain.EventAlertRaised
		ev.From, ev.To = tr.Previous.String(), tr.Tier.String()
		ev.Detail = fmt.Sprintf("%s %s bound held %s (value %g%s)", tr.Tier, tr.Side, confirmWindow(ch), cls.Value, unit(ch))
	case TransitionEscalated:
		ev.Kind = domain.EventAlertEscalated
		ev.From, ev.To = tr.Previous.String(), tr.Tier.String()
		ev.Detail = fmt.Sprintf("escalated to %s on the %s side (value %g%s)", tr.Tier, tr.Side, cls.Value, unit(ch))
	case TransitionCleared:
		ev.Kind = domain.EventAlertCleared
		ev.From, ev.To = tr.Tier.String(), domain.TierNormal.String()
		ev.Detail = fmt.Sprintf("back to normal %s (value %g%s)", clearWindow(ch), cls.Value, unit(ch))
	default:
		return domain.Event{}, false
	}
	return ev, true
}

func confirmWindow(ch *config.Channel) string {
	if ch.Persistence.Mode == config.ModeDuration {
		return "for " + ch.Persistence.ConfirmAfter.String()
	}
	return fmt.Sprintf("for %d samples", ch.Persistence.Confirm)
}

func clearWindow(ch *config.Channel) string {
	if ch.Persistence.Mode == config.ModeDuration {
		return "for " + ch.Persistence.ClearAfter.String()
	}
	return fmt.Sprintf("for %d samples", ch.Persistence.Clear)
}

func unit(ch *config.Channel) string {
	if ch.Unit == "" {
		return ""
	}
	return " " + ch.Unit
}

func (e *Engine) emitFrame(ctx context.Context, f domain.Frame) {
	if e.hooks.OnFrame == nil {
		return
	}
	invalid := 0
	for _, r := range f.Readings {
		if !r.Usable() {
			invalid++
		}
	}
	e.hooks.OnFrame(ctx, &domain.FrameEvent{Timestamp: f.Timestamp, Channels: len(f.Readings), Invalid: invalid})
}

// SortEvents orders events by timestamp, then channel id. Events that tie on
// both keep their emission order.
func SortEvents(events []domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Channel < b.Channel
	})
}
