package cli

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGraph(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "iaqflow.yaml", testConfig)

	out, err := RenderGraph(cfgPath, "")
	require.NoError(t, err)
	assert.Contains(t, out, "stateDiagram-v2")
	assert.Contains(t, out, "idle --> dilution : a.co2")
	assert.NotContains(t, out, "classDef")

	data, err := json.Marshal(domain.Report{RunID: "r1", Events: []domain.Event{
		{Kind: domain.EventCycleStarted, Cycle: "dilution"},
	}})
	require.NoError(t, err)
	reportPath := writeFile(t, dir, "r1.json", string(data))

	out, err = RenderGraph(cfgPath, reportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "class dilution started")

	_, err = RenderGraph(cfgPath, writeFile(t, dir, "bad.json", "{"))
	assert.ErrorContains(t, err, "invalid report")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	cfg, errs := Validate(writeFile(t, dir, "ok.yaml", testConfig))
	assert.Empty(t, errs)
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"a.co2"}, cfg.ChannelIDs())

	broken := `
channels:
  - id: a.co2
    thresholds: [{tier: warning, high: 1000}]
    persistence: {confirm: 2, clear: 2}
    routes: [{cycle: missing}]
  - id: a.co2
    thresholds: [{tier: warning, high: 1000}]
    persistence: {confirm: 2, clear: 2}
    routes: [{cycle: missing}]
cycles:
  dilution:
    stages: [{name: vav_max, duration: 2m}]
`
	_, errs = Validate(writeFile(t, dir, "broken.yaml", broken))
	assert.GreaterOrEqual(t, len(errs), 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	}
}
