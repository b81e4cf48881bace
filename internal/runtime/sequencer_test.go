package runtime_test

import (
	"testing"

	"github.com/aretw0/iaqflow/internal/runtime"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmed(minute int) runtime.Signal {
	return runtime.Signal{Kind: runtime.SignalConfirmed, At: at(minute), Tier: domain.TierWarning, Side: domain.SideHigh, Value: 1200}
}

func tick(minute int) runtime.Signal {
	return runtime.Signal{Kind: runtime.SignalTick, At: at(minute)}
}

func cleared(minute int) runtime.Signal {
	return runtime.Signal{Kind: runtime.SignalCleared, At: at(minute), Tier: domain.TierWarning, Side: domain.SideHigh}
}

func TestSequencer_FullCycle(t *testing.T) {
	cfg := mustConfig(t, co2YAML)
	ch := mustChannel(t, cfg, "a.co2")
	sq := runtime.NewSequencer(cfg)

	s := domain.NewChannelState(ch.ID)
	s.Alert, s.AlertTier, s.AlertSide = true, domain.TierWarning, domain.SideHigh

	s, evs, err := sq.Step(ch, s, confirmed(2))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventCycleStarted, evs[0].Kind)
	assert.Equal(t, "idle", evs[0].From)
	assert.Equal(t, "active_stage_1", evs[0].To)
	assert.Equal(t, "vav_max", evs[0].Stage)
	assert.Equal(t, 1, evs[0].Attempt)

	// A single late tick applies every boundary that has passed.
	s, evs, err = sq.Step(ch, s, tick(17))
	require.NoError(t, err)
	assert.Equal(t, []domain.EventKind{
		domain.EventStageAdvanced,
		domain.EventStageAdvanced,
		domain.EventCycleCompleted,
	}, kinds(evs))
	assert.Equal(t, at(7), evs[0].Timestamp)
	assert.Equal(t, at(12), evs[1].Timestamp)
	assert.Equal(t, "active_stage_3", evs[1].To)
	assert.Equal(t, at(17), evs[2].Timestamp)
	assert.Equal(t, domain.PhaseCooldown, s.Phase)
	assert.Equal(t, at(27), s.CooldownUntil)

	// A confirmed signal during cooldown is ignored.
	s2, evs, err := sq.Step(ch, s, confirmed(20))
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Equal(t, s, s2)

	// Alert still standing at the end of cooldown: the cycle restarts.
	s, evs, err = sq.Step(ch, s, tick(27))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.EventCooldownElapsed, evs[0].Kind)
	assert.Equal(t, "pending", evs[0].To)
	assert.Equal(t, domain.EventCycleStarted, evs[1].Kind)
	assert.Equal(t, "pending", evs[1].From)
	assert.Equal(t, 2, evs[1].Attempt)
	assert.Equal(t, at(27), s.StageEntered)
}

func TestSequencer_ConfirmWhileActiveIsNoop(t *testing.T) {
	cfg := mustConfig(t, co2YAML)
	ch := mustChannel(t, cfg, "a.co2")
	sq := runtime.NewSequencer(cfg)

	s := domain.NewChannelState(ch.ID)
	s.Alert, s.AlertTier, s.AlertSide = true, domain.TierWarning, domain.SideHigh
	s, _, err := sq.Step(ch, s, confirmed(2))
	require.NoError(t, err)
	require.Equal(t, domain.PhaseActive, s.Phase)

	for _, sig := range []runtime.Signal{
		confirmed(4),
		{Kind: runtime.SignalEscalated, At: at(4), Tier: domain.TierCritical, Side: domain.SideHigh, Value: 1600},
		confirmed(2),
	} {
		next, evs, err := sq.Step(ch, s, sig)
		require.NoError(t, err)
		assert.Empty(t, evs, "signal %s", sig.Kind)
		assert.Equal(t, s, next, "signal %s", sig.Kind)
	}
}

func TestSequencer_CooldownElapsesToIdle(t *testing.T) {
	cfg := mustConfig(t, co2YAML)
	ch := mustChannel(t, cfg, "a.co2")
	sq := runtime.NewSequencer(cfg)

	s := domain.NewChannelState(ch.ID)
	s.Alert = true
	s, _, err := sq.Step(ch, s, confirmed(0))
	require.NoError(t, err)
	s, _, err = sq.Step(ch, s, tick(15))
	require.NoError(t, err)
	require.Equal(t, domain.PhaseCooldown, s.Phase)

	s.Alert = false
	s, evs, err := sq.Step(ch, s, tick(30))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventCooldownElapsed, evs[0].Kind)
	assert.Equal(t, at(25), evs[0].Timestamp)
	assert.Equal(t, "idle", evs[0].To)
	assert.Equal(t, domain.PhaseIdle, s.Phase)
	assert.Equal(t, 1, s.CyclesCompleted)
}

func TestSequencer_AbortMidCycle(t *testing.T) {
	cfg := mustConfig(t, co2YAML)
	ch := mustChannel(t, cfg, "a.co2")
	sq := runtime.NewSequencer(cfg)

	s := domain.NewChannelState(ch.ID)
	s, _, _ = sq.Step(ch, s, confirmed(2))
	s, _, _ = sq.Step(ch, s, tick(8))
	require.Equal(t, 1, s.StageIndex)

	s, evs, err := sq.Step(ch, s, cleared(9))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, domain.EventCycleAborted, ev.Kind)
	assert.Equal(t, "active_stage_2", ev.From)
	assert.Equal(t, "idle", ev.To)
	assert.Equal(t, "fad_open", ev.Stage)
	assert.Equal(t, 2, ev.StageIndex)
	assert.Equal(t, "condition cleared at stage 2 of 3 (fad_open)", ev.Detail)
	assert.Equal(t, domain.PhaseIdle, s.Phase)
	assert.Zero(t, s.EpisodeCycles)
}

func TestSequencer_ClearedWhileIdleIsNoop(t *testing.T) {
	cfg := mustConfig(t, co2YAML)
	ch := mustChannel(t, cfg, "a.co2")
	sq := runtime.NewSequencer(cfg)

	s := domain.NewChannelState(ch.ID)
	next, evs, err := sq.Step(ch, s, cleared(1))
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Equal(t, s, next)

	next, evs, err = sq.Step(ch, s, tick(1))
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Equal(t, s, next)
}

func TestSequencer_MaxCycles(t *testing.T) {
	doc := `
channels:
  - id: a.co2
    thresholds: [{tier: warning, high: 1000}]
    persistence: {confirm: 1, clear: 1}
    routes: [{cycle: dilution}]
    max_cycles: 1
cycles:
  dilution:
    cooldown: 5m
    stages:
      - {name: vav_max, duration: 5m}
`
	cfg := mustConfig(t, doc)
	ch := mustChannel(t, cfg, "a.co2")
	sq := runtime.NewSequencer(cfg)

	s := domain.NewChannelState(ch.ID)
	s.Alert, s.AlertTier, s.AlertSide = true, domain.TierWarning, domain.SideHigh
	s, _, err := sq.Step(ch, s, confirmed(0))
	require.NoError(t, err)

	s, evs, err := sq.Step(ch, s, tick(10))
	require.NoError(t, err)
	assert.Equal(t, []domain.EventKind{
		domain.EventCycleCompleted,
		domain.EventCooldownElapsed,
		domain.EventCycleExhausted,
	}, kinds(evs))
	assert.Equal(t, "dilution failed: max cycles (1) reached", evs[2].Detail)
	assert.Equal(t, domain.PhaseIdle, s.Phase)
	assert.True(t, s.Exhausted)

	// Clearing closes the episode so the next alert may run a cycle again.
	s.Alert = false
	s, _, err = sq.Step(ch, s, cleared(11))
	require.NoError(t, err)
	assert.False(t, s.Exhausted)
	assert.Zero(t, s.EpisodeCycles)

	s.Alert = true
	_, evs, err = sq.Step(ch, s, confirmed(12))
	require.NoError(t, err)
	assert.Equal(t, []domain.EventKind{domain.EventCycleStarted}, kinds(evs))
}
