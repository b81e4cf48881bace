package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/iaqflow/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "iaqflow.yaml", testConfig)

	srv, cl, err := NewServer(context.Background(), ServeOptions{ConfigPath: cfgPath, Addr: ":0"}, logging.NewNop())
	require.NoError(t, err)
	defer cl.Close()

	req := httptest.NewRequest("POST", "/runs", strings.NewReader(testTable))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `iaqflow_events_total{channel="a.co2",kind="alert_raised"} 1`)

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/graph", nil))
	assert.Contains(t, w.Body.String(), "state \"dilution\" as dilution")
}

func TestServe_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "iaqflow.yaml", testConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, Serve(ctx, ServeOptions{ConfigPath: cfgPath, Addr: "127.0.0.1:0"}, logging.NewNop()))
}
