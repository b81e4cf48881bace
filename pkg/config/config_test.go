package config_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
run:
  reorder: sort
  max_gap: 15m
channels:
  - id: outdoor.co2
    unit: ppm
    thresholds:
      - {tier: critical, high: 5000}
    persistence: {mode: count, confirm: 1, clear: 1}
    routes:
      - {cycle: notify}
  - id: l19a.co2
    unit: ppm
    relative_to: outdoor.co2
    thresholds:
      - {tier: warning, high: 600}
      - {tier: critical, high: 1200}
    normal: {high: 500}
    persistence: {mode: count, confirm: 3, clear: 2}
    routes:
      - {side: high, cycle: dilution}
    max_cycles: 3
  - id: l19a.temperature
    unit: C
    thresholds:
      - {tier: warning, high: 25, low: 22}
    persistence: {mode: duration, confirm_after: 15m, clear_after: 10m}
    routes:
      - {side: high, cycle: cooling}
      - {side: low, cycle: warming}
cycles:
  dilution:
    cooldown: 10m
    stages:
      - {name: vav_max, duration: 5m, action: set VAV airflow to maximum}
      - {name: fad_open, duration: 5m, action: open PAD/FAD, params: {increase_pct: 5}}
      - {name: fm_alert, duration: 1m, action: notify facilities team}
  cooling:
    stages:
      - {name: vav_up, duration: 10m}
  warming:
    stages:
      - {name: vav_down, duration: 10m}
  notify:
    stages:
      - {name: notify, duration: 1m}
`

func TestParse_Valid(t *testing.T) {
	cfg, err := config.Parse([]byte(validYAML), config.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, config.ReorderSort, cfg.Run.Reorder)
	assert.Equal(t, 15*time.Minute, cfg.Run.MaxGap)
	assert.Equal(t, 1, cfg.Run.Parallelism, "parallelism defaults to 1")
	assert.Equal(t, config.DefaultColumnPattern, cfg.Columns.Pattern)

	co2, ok := cfg.Channel("l19a.co2")
	require.True(t, ok)
	assert.Equal(t, "l19a", co2.Zone)
	assert.Equal(t, "co2", co2.Metric)
	assert.Equal(t, domain.TierWarning, co2.MinAlertTier)
	require.Len(t, co2.Thresholds, 2)
	assert.Equal(t, domain.TierCritical, co2.Thresholds[1].Tier)
	assert.Equal(t, 1200.0, *co2.Thresholds[1].High)
	assert.Nil(t, co2.Thresholds[1].Low)
	assert.Equal(t, 3, co2.Persistence.Confirm)
	assert.Equal(t, "outdoor.co2", co2.RelativeTo)

	cycle, ok := co2.CycleFor(domain.TierCritical, domain.SideHigh)
	assert.True(t, ok)
	assert.Equal(t, "dilution", cycle)

	temp, _ := cfg.Channel("l19a.temperature")
	assert.Equal(t, config.ModeDuration, temp.Persistence.Mode)
	assert.Equal(t, 15*time.Minute, temp.Persistence.ConfirmAfter)
	cycle, _ = temp.CycleFor(domain.TierWarning, domain.SideLow)
	assert.Equal(t, "warming", cycle)

	dil := cfg.Cycles["dilution"]
	assert.Equal(t, 10*time.Minute, dil.Cooldown)
	require.Len(t, dil.Stages, 3)
	assert.Equal(t, 5*time.Minute, dil.Stages[1].Duration)
	assert.EqualValues(t, 5, dil.Stages[1].Params["increase_pct"])
}

func TestParse_JSON(t *testing.T) {
	doc := `{
		"channels": [{"id": "z.tvoc", "thresholds": [{"tier": "warning", "high": 500}],
			"persistence": {"confirm": 2, "clear": 2}, "routes": [{"cycle": "dilution"}]}],
		"cycles": {"dilution": {"stages": [{"name": "s1", "duration": "1m"}]}}
	}`
	cfg, err := config.Parse([]byte(doc), config.FormatJSON)
	require.NoError(t, err)
	ch, ok := cfg.Channel("z.tvoc")
	require.True(t, ok)
	assert.Equal(t, config.ModeCount, ch.Persistence.Mode, "mode defaults to count")
}

func TestParse_ZoneExpansion(t *testing.T) {
	doc := `
zones:
  names: [a, b]
  metrics:
    - metric: pm2_5
      thresholds: [{tier: warning, high: 37.5}]
      persistence: {confirm: 2, clear: 1}
      routes: [{cycle: dilution}]
cycles:
  dilution:
    stages: [{name: s1, duration: 1m}]
`
	cfg, err := config.Parse([]byte(doc), config.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pm2_5", "b.pm2_5"}, cfg.ChannelIDs())
	b, ok := cfg.Channel("b.pm2_5")
	require.True(t, ok)
	assert.Equal(t, "b", b.Zone)
	assert.Nil(t, cfg.Zones)
}

func TestParse_SemanticErrors(t *testing.T) {
	doc := `
channels:
  - id: z.co2
    thresholds: [{tier: warning, high: 1000}]
    persistence: {mode: sliding, confirm: 3, clear: 2}
    routes: [{cycle: purge}]
  - id: z.rh
    thresholds: [{tier: warning, high: 70}]
    persistence: {confirm: 1, clear: 1}
    routes: [{side: low, cycle: dilution}]
cycles:
  dilution:
    stages:
      - {name: s1, duration: 0s}
`
	_, err := config.Parse([]byte(doc), config.FormatYAML)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	msgs := make([]string, 0)
	for _, e := range config.ValidationErrors(err) {
		msgs = append(msgs, e.Error())
	}
	assert.Contains(t, msgs, "channels[z.co2].persistence.mode: unknown persistence mode \"sliding\"")
	assert.Contains(t, msgs, "channels[z.co2].routes[0].cycle: unknown cycle \"purge\"")
	assert.Contains(t, msgs, "channels[z.rh].routes: no cycle mapped for tier warning on the high side")
	assert.Contains(t, msgs, "cycles[dilution].stages[0].duration: stage duration must be positive, got 0s")
}

func TestParse_RoutesCoverSidesFromHigherTiers(t *testing.T) {
	const base = `
channels:
  - id: a.temperature
    thresholds:
      - {tier: warning, high: 26}
      - {tier: critical, high: 30, low: 16}
    persistence: {confirm: 2, clear: 1}
    routes:
      - {tier: warning, side: high, cycle: c}
      - {tier: critical, side: high, cycle: c}
      - {tier: critical, side: low, cycle: c}
%s
cycles:
  c:
    stages: [{name: s, duration: 1m}]
`
	// A critical-low sample also feeds the warning counter.
	_, err := config.Parse([]byte(fmt.Sprintf(base, "")), config.FormatYAML)
	require.Error(t, err)
	msgs := make([]string, 0)
	for _, e := range config.ValidationErrors(err) {
		msgs = append(msgs, e.Error())
	}
	assert.Equal(t, []string{"channels[a.temperature].routes: no cycle mapped for tier warning on the low side"}, msgs)

	cfg, err := config.Parse([]byte(fmt.Sprintf(base, "      - {tier: warning, side: low, cycle: c}")), config.FormatYAML)
	require.NoError(t, err)
	ch, ok := cfg.Channel("a.temperature")
	require.True(t, ok)
	_, ok = ch.CycleFor(domain.TierWarning, domain.SideLow)
	assert.True(t, ok)
}

func TestParse_ThresholdOrdering(t *testing.T) {
	doc := `
channels:
  - id: z.temp
    thresholds:
      - {tier: warning, high: 26, low: 20}
      - {tier: critical, high: 24, low: 21}
    normal: {high: 27}
    persistence: {confirm: 1, clear: 1}
    routes: [{cycle: c}]
cycles:
  c:
    stages: [{name: s, duration: 1m}]
`
	_, err := config.Parse([]byte(doc), config.FormatYAML)
	require.Error(t, err)
	errs := config.ValidationErrors(err)
	assert.Len(t, errs, 4)
}

func TestParse_SchemaViolation(t *testing.T) {
	doc := `
channels: []
cycles: {}
colour: blue
`
	_, err := config.Parse([]byte(doc), config.FormatYAML)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.NotEmpty(t, config.ValidationErrors(err))
}

func TestParse_UnknownTier(t *testing.T) {
	doc := `
channels:
  - id: z.co2
    thresholds: [{tier: severe, high: 1000}]
    persistence: {confirm: 1, clear: 1}
    routes: [{cycle: c}]
cycles:
  c:
    stages: [{name: s, duration: 1m}]
`
	_, err := config.Parse([]byte(doc), config.FormatYAML)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "severe")
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iaq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Channels, 3)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNormalize_InCode(t *testing.T) {
	high := 1000.0
	cfg := &config.Config{
		Channels: []config.Channel{{
			ID:          "z.co2",
			Thresholds:  []config.Threshold{{Tier: domain.TierWarning, High: &high}},
			Persistence: config.Persistence{Confirm: 3, Clear: 2},
			Routes:      []config.Route{{Cycle: "dilution"}},
		}},
		Cycles: map[string]config.Cycle{
			"dilution": {Stages: []config.Stage{{Name: "s1", Duration: time.Minute}}},
		},
	}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, config.ReorderReject, cfg.Run.Reorder)
	assert.Equal(t, config.ModeCount, cfg.Channels[0].Persistence.Mode)
}
