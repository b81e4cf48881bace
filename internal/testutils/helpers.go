package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/stretchr/testify/require"
)

// MustConfig parses a YAML configuration document and fails the test on error.
func MustConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc), config.FormatYAML)
	require.NoError(t, err, "Failed to parse test config")
	return cfg
}

// WriteFile writes content to name under dir and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "Failed to create test dir")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to write test file")
	return path
}
