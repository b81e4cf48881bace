package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/iaqflow/internal/presentation/graph"
	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
)

// RenderGraph returns the Mermaid diagram of the configured cycles. When
// reportPath names a JSON report, the cycles it started and exhausted are
// highlighted.
func RenderGraph(configPath, reportPath string) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}

	var overlay *graph.GraphOverlay
	if reportPath != "" {
		data, err := os.ReadFile(reportPath)
		if err != nil {
			return "", fmt.Errorf("failed to read report: %w", err)
		}
		var report domain.Report
		if err := json.Unmarshal(data, &report); err != nil {
			return "", fmt.Errorf("invalid report %s: %w", reportPath, err)
		}
		overlay = graph.OverlayFromReport(&report)
	}
	return graph.GenerateMermaid(cfg, overlay), nil
}

// Validate loads the configuration and returns every problem found.
func Validate(configPath string) (*config.Config, []error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if errs := config.ValidationErrors(err); len(errs) > 0 {
		return nil, errs
	}
	return nil, []error{err}
}
