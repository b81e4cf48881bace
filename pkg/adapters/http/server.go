package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/iaqflow/pkg/adapters/csv"
	"github.com/aretw0/iaqflow/pkg/adapters/jsonl"
	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/aretw0/iaqflow/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBody bounds the size of an uploaded frame table.
const DefaultMaxBody = 32 << 20

// allTopic receives every broadcast event.
const allTopic = "*"

// Server exposes the engine over HTTP.
type Server struct {
	Runner  ports.Runner
	Store   ports.RunStore
	Streams *StreamManager

	logger  *slog.Logger
	columns config.ColumnSettings
	graph   string
	metrics http.Handler
	version string
	maxBody int64
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithColumns sets how uploaded CSV tables map onto channels.
func WithColumns(cols config.ColumnSettings) Option {
	return func(s *Server) { s.columns = cols }
}

// WithGraph serves a pre-rendered Mermaid diagram on GET /graph.
func WithGraph(mermaid string) Option {
	return func(s *Server) { s.graph = mermaid }
}

// WithMetrics mounts a metrics handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMaxBody bounds the request body of POST /runs.
func WithMaxBody(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// New creates a Server.
func New(runner ports.Runner, store ports.RunStore, opts ...Option) *Server {
	s := &Server{
		Runner:  runner,
		Store:   store,
		Streams: NewStreamManager(),
		logger:  slog.Default(),
		version: "dev",
		maxBody: DefaultMaxBody,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(runner ports.Runner, store ports.RunStore, opts ...Option) http.Handler {
	return New(runner, store, opts...).Handler()
}

// Handler returns the routed handler of s.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/runs", s.CreateRun)
	r.Get("/runs", s.ListRuns)
	r.Get("/runs/{id}", s.GetRun)
	r.Get("/runs/{id}/summary", s.GetSummary)
	r.Delete("/runs/{id}", s.DeleteRun)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/graph", s.GetGraph)
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OutputErrorsHeader carries the report writer failures of a run that
// otherwise completed.
const OutputErrorsHeader = "X-Output-Errors"

// CreateRun handles POST /runs. The body is a CSV table (text/csv) or JSON lines.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	src, err := s.source(r.Header.Get("Content-Type"), body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid frame table: %v", err), http.StatusBadRequest)
		s.logger.Warn("CreateRun: invalid frame table", "error", err)
		return
	}

	report, err := s.Runner.Run(r.Context(), src)
	if err != nil && report != nil {
		// The run completed; only its outputs failed.
		s.logger.Warn("CreateRun: report outputs failed", "run_id", report.RunID, "error", err)
		w.Header().Set(OutputErrorsHeader, strings.ReplaceAll(err.Error(), "\n", "; "))
		err = nil
	}
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, domain.ErrOrdering):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, domain.ErrConfiguration):
			status = http.StatusInternalServerError
		}
		http.Error(w, fmt.Sprintf("Run failed: %v", err), status)
		s.logger.Error("CreateRun: run failed", "error", err)
		return
	}

	if err := s.Store.Save(r.Context(), report); err != nil {
		http.Error(w, fmt.Sprintf("Store error: %v", err), http.StatusInternalServerError)
		s.logger.Error("CreateRun: save failed", "run_id", report.RunID, "error", err)
		return
	}
	s.broadcast(report)

	w.Header().Set("Location", "/runs/"+report.RunID)
	writeJSON(w, http.StatusCreated, s.logger, report)
}

func (s *Server) source(contentType string, body io.Reader) (ports.FrameSource, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = ""
	}
	switch mt {
	case "text/csv", "application/csv":
		return csv.NewSource(body, s.columns)
	case "", "application/json", "application/x-ndjson", "application/jsonl":
		return jsonl.NewSource(body), nil
	}
	return nil, fmt.Errorf("unsupported content type %q", contentType)
}

func (s *Server) broadcast(report *domain.Report) {
	for _, ev := range report.Events {
		msg, err := json.Marshal(streamMessage{RunID: report.RunID, Event: ev})
		if err != nil {
			s.logger.Error("broadcast: encode failed", "error", err)
			continue
		}
		s.Streams.Broadcast(allTopic, string(msg))
		s.Streams.Broadcast(ev.Channel, string(msg))
	}
}

type streamMessage struct {
	RunID string       `json:"run_id"`
	Event domain.Event `json:"event"`
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Store.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Store error: %v", err), http.StatusInternalServerError)
		s.logger.Error("ListRuns failed", "error", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, s.logger, map[string][]string{"runs": ids})
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	report, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.logger, report)
}

// GetSummary handles GET /runs/{id}/summary.
func (s *Server) GetSummary(w http.ResponseWriter, r *http.Request) {
	report, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.logger, map[string]any{
		"run_id":  report.RunID,
		"summary": report.Summary,
		"total":   report.Totals(),
	})
}

// DeleteRun handles DELETE /runs/{id}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Store.Load(r.Context(), id); err != nil {
		s.storeError(w, id, err)
		return
	}
	if err := s.Store.Delete(r.Context(), id); err != nil {
		s.storeError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*domain.Report, bool) {
	id := chi.URLParam(r, "id")
	report, err := s.Store.Load(r.Context(), id)
	if err != nil {
		s.storeError(w, id, err)
		return nil, false
	}
	return report, true
}

func (s *Server) storeError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, fmt.Sprintf("Run %s not found", id), http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("Store error: %v", err), http.StatusInternalServerError)
	s.logger.Error("store failed", "run_id", id, "error", err)
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	if s.graph == "" {
		http.Error(w, "No graph configured", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, s.graph)
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.logger, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.logger, map[string]string{
		"app":     "iaqflow-http",
		"version": strings.TrimSpace(s.version),
	})
}

func writeJSON(w http.ResponseWriter, status int, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // topic -> set of channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a buffered listener on topic and returns its cancel func.
func (sm *StreamManager) Subscribe(topic string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 64)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[topic]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, topic)
			}
		}
	}
}

// Subscribers returns the number of listeners on topic.
func (sm *StreamManager) Subscribers(topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[topic])
}

func (sm *StreamManager) Broadcast(topic string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			// Slow client.
			slog.Warn("SSE: client buffer full, dropping message", "topic", topic)
		}
	}
}

// SubscribeEvents handles GET /events (SSE). The optional channel query
// parameter narrows the stream to one channel.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	topic := allTopic
	if c := r.URL.Query().Get("channel"); c != "" {
		topic = c
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(topic)
	defer cancel()
	s.logger.Info("SSE: client subscribed", "topic", topic)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "topic", topic)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: iaq\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
