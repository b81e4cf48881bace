package runtime_test

import (
	"testing"
	"time"

	"github.com/aretw0/iaqflow/internal/testutils"
	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

const co2YAML = `
channels:
  - id: a.co2
    unit: ppm
    thresholds:
      - {tier: warning, high: 1000}
    persistence: {confirm: 3, clear: 2}
    routes:
      - {cycle: dilution}
cycles:
  dilution:
    cooldown: 10m
    stages:
      - {name: vav_max, duration: 5m, action: set VAV airflow to maximum}
      - {name: fad_open, duration: 5m, action: open fresh air damper}
      - {name: fm_alert, duration: 5m, action: notify facilities}
`

const twoChannelYAML = `
channels:
  - id: a.co2
    thresholds:
      - {tier: warning, high: 1000}
    persistence: {confirm: 3, clear: 2}
    routes: [{cycle: dilution}]
  - id: a.tvoc
    thresholds:
      - {tier: warning, high: 500}
    persistence: {confirm: 3, clear: 2}
    routes: [{cycle: dilution}]
cycles:
  dilution:
    cooldown: 10m
    stages:
      - {name: vav_max, duration: 5m}
      - {name: fad_open, duration: 5m}
      - {name: fm_alert, duration: 5m}
`

func mustConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	return testutils.MustConfig(t, doc)
}

func mustChannel(t *testing.T, cfg *config.Config, id string) *config.Channel {
	t.Helper()
	ch, ok := cfg.Channel(id)
	require.True(t, ok, "channel %s", id)
	return ch
}

func kinds(events []domain.Event) []domain.EventKind {
	out := make([]domain.EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func ofChannel(events []domain.Event, channel string) []domain.Event {
	var out []domain.Event
	for _, ev := range events {
		if ev.Channel == channel {
			out = append(out, ev)
		}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
