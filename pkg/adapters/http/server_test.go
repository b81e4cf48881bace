package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/iaqflow/pkg/adapters/memory"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/aretw0/iaqflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner drains the source and emits one alert_raised event per reading.
type fakeRunner struct {
	mu        sync.Mutex
	n         int
	err       error
	outputErr error
}

func (f *fakeRunner) Run(ctx context.Context, src ports.FrameSource) (*domain.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.n++
	id := "run-" + string(rune('0'+f.n))
	f.mu.Unlock()

	report := &domain.Report{RunID: id}
	for {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		report.Frames++
		for _, ch := range frame.Channels() {
			report.Events = append(report.Events, domain.Event{
				Seq:       len(report.Events) + 1,
				Timestamp: frame.Timestamp,
				Channel:   ch,
				Kind:      domain.EventAlertRaised,
				Value:     frame.Readings[ch].Value,
			})
		}
	}
	report.Summary = []domain.ChannelSummary{{Channel: "a.co2", AlertsRaised: len(report.Events)}}
	return report, f.outputErr
}

const jsonFrames = `{"timestamp":"2025-03-03T09:00:00Z","readings":{"a.co2":1200}}
{"timestamp":"2025-03-03T09:01:00Z","readings":{"a.co2":1250}}
`

func newTestServer(t *testing.T, opts ...Option) (*Server, http.Handler) {
	t.Helper()
	s := New(&fakeRunner{}, memory.NewStore(), opts...)
	return s, s.Handler()
}

func postRun(t *testing.T, h http.Handler, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/runs", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateRun_JSONLines(t *testing.T) {
	_, h := newTestServer(t)

	w := postRun(t, h, "application/x-ndjson", jsonFrames)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/runs/run-1", w.Header().Get("Location"))

	var report domain.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Frames)
	assert.Len(t, report.Events, 2)

	req := httptest.NewRequest("GET", "/runs/run-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRun_CSV(t *testing.T) {
	_, h := newTestServer(t)

	body := "datetime,IDP_IAQ_L19_A_CO2,idp_iaq_l19_a_tvoc\n2025-03-03 09:00:00,1200,400\n"
	w := postRun(t, h, "text/csv; charset=utf-8", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var report domain.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Frames)
	assert.Len(t, report.Events, 2)
}

func TestCreateRun_Errors(t *testing.T) {
	t.Run("unsupported content type", func(t *testing.T) {
		_, h := newTestServer(t)
		w := postRun(t, h, "application/xml", "<frames/>")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed frame", func(t *testing.T) {
		_, h := newTestServer(t)
		w := postRun(t, h, "", "{not json}\n")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ordering violation", func(t *testing.T) {
		runner := &fakeRunner{err: &domain.OrderingViolation{}}
		h := NewHandler(runner, memory.NewStore())
		w := postRun(t, h, "", jsonFrames)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestCreateRun_OutputFailureKeepsRun(t *testing.T) {
	store := memory.NewStore()
	runner := &fakeRunner{outputErr: errors.Join(errors.New("xlsx: disk full"), errors.New("kafka: broker down"))}
	h := New(runner, store).Handler()

	w := postRun(t, h, "application/x-ndjson", jsonFrames)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/runs/run-1", w.Header().Get("Location"))
	assert.Equal(t, "xlsx: disk full; kafka: broker down", w.Header().Get(OutputErrorsHeader))

	stored, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, stored.Events, 2)
}

func TestRunsLifecycle(t *testing.T) {
	_, h := newTestServer(t)
	require.Equal(t, http.StatusCreated, postRun(t, h, "", jsonFrames).Code)
	require.Equal(t, http.StatusCreated, postRun(t, h, "", jsonFrames).Code)

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	w := do("GET", "/runs")
	require.Equal(t, http.StatusOK, w.Code)
	var list map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.ElementsMatch(t, []string{"run-1", "run-2"}, list["runs"])

	w = do("GET", "/runs/run-2/summary")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alerts_raised":2`)
	assert.Contains(t, w.Body.String(), `"total"`)

	assert.Equal(t, http.StatusNoContent, do("DELETE", "/runs/run-1").Code)
	assert.Equal(t, http.StatusNotFound, do("GET", "/runs/run-1").Code)
	assert.Equal(t, http.StatusNotFound, do("DELETE", "/runs/run-1").Code)
}

func TestSubscribeEvents(t *testing.T) {
	s, h := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest("GET", "/events?channel=a.co2", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(wSub, reqSub)
	}()

	require.Eventually(t, func() bool { return s.Streams.Subscribers("a.co2") == 1 },
		time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusCreated, postRun(t, h, "", jsonFrames).Code)

	// Give the stream a moment to drain before disconnecting.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := wSub.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Equal(t, 2, strings.Count(body, "event: iaq"))
	assert.Contains(t, body, `"run_id":"run-1"`)
	assert.Contains(t, body, `"kind":"alert_raised"`)
}

func TestStreamManager_DropsWhenFull(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("x")
	defer cancel()

	for i := 0; i < 100; i++ {
		sm.Broadcast("x", "msg")
	}
	assert.Len(t, ch, cap(ch))
	sm.Broadcast("nobody", "msg")
}

func TestAuxiliaryEndpoints(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "iaqflow_runs_total 1\n")
	})
	_, h := newTestServer(t, WithGraph("stateDiagram-v2\n"), WithMetrics(metrics), WithVersion("v0.3.0\n"))

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/healthz", http.StatusOK, `"status":"ok"`},
		{"/info", http.StatusOK, `"version":"v0.3.0"`},
		{"/graph", http.StatusOK, "stateDiagram-v2"},
		{"/metrics", http.StatusOK, "iaqflow_runs_total"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	_, bare := newTestServer(t)
	w := httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest("GET", "/graph", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
