package cli

import (
	"testing"

	"github.com/aretw0/iaqflow/internal/testutils"
)

const testConfig = `
channels:
  - id: a.co2
    unit: ppm
    thresholds:
      - {tier: warning, high: 1000}
    persistence: {confirm: 2, clear: 2}
    routes: [{cycle: dilution}]
cycles:
  dilution:
    cooldown: 5m
    stages:
      - {name: vav_max, duration: 2m}
      - {name: fad_open, duration: 2m}
`

const testTable = `datetime,idp_iaq_l19_a_co2
2025-03-03 09:00:00,800
2025-03-03 09:01:00,1200
2025-03-03 09:02:00,1250
2025-03-03 09:03:00,1300
2025-03-03 09:04:00,1300
2025-03-03 09:05:00,1300
2025-03-03 09:06:00,700
2025-03-03 09:07:00,650
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	return testutils.WriteFile(t, dir, name, content)
}
