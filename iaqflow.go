package iaqflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/iaqflow/internal/adapters/psi"
	"github.com/aretw0/iaqflow/internal/runtime"
	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/aretw0/iaqflow/pkg/ports"
	"github.com/google/uuid"
)

// Engine is the high-level entry point for the iaqflow library.
// It wraps the internal runtime, assigns run IDs and hands every finished
// report to the configured store and writers.
type Engine struct {
	runtime     *runtime.Engine
	cfg         *config.Config
	store       ports.RunStore
	writers     []ports.ReportWriter
	reference   ports.ReferenceProvider
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	newID       func() string
	runtimeOpts []runtime.EngineOption
}

var _ ports.Runner = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithReferenceProvider replaces the reference provider built from the
// configuration's reference.psi section.
func WithReferenceProvider(p ports.ReferenceProvider) Option {
	return func(e *Engine) {
		e.reference = p
	}
}

// WithParallelism overrides run.parallelism.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithParallelism(n))
	}
}

// WithClock replaces the wall clock used for run bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
	}
}

// WithRunStore keeps every finished report in store.
func WithRunStore(store ports.RunStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithWriters appends report writers. They run in order after each run.
func WithWriters(writers ...ports.ReportWriter) Option {
	return func(e *Engine) {
		e.writers = append(e.writers, writers...)
	}
}

// WithRunIDGenerator replaces the random run ID generator.
func WithRunIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// New validates cfg and initializes a new Engine.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	eng := &Engine{cfg: cfg, newID: uuid.NewString}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.reference == nil && cfg != nil && cfg.Reference.PSI != nil {
		eng.reference = psi.New(*cfg.Reference.PSI)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.reference != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithReferenceProvider(eng.reference))
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	rt, err := runtime.NewEngine(cfg, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	eng.runtime = rt
	return eng, nil
}

// Load reads a configuration file and initializes an Engine from it.
func Load(path string, opts ...Option) (*Engine, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Config returns the validated configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Run consumes src under a fresh run ID.
func (e *Engine) Run(ctx context.Context, src ports.FrameSource) (*domain.Report, error) {
	return e.RunWithID(ctx, e.newID(), src)
}

// RunWithID consumes src and delivers the report to the store and writers.
// A failing writer does not stop the others; the report is returned together
// with the joined delivery errors.
func (e *Engine) RunWithID(ctx context.Context, runID string, src ports.FrameSource) (*domain.Report, error) {
	report, err := e.runtime.Run(ctx, runID, src)
	if err != nil {
		return nil, err
	}

	var errs []error
	if e.store != nil {
		if err := e.store.Save(ctx, report); err != nil {
			e.logger.Error("failed to store run", "run_id", runID, "error", err)
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	for _, w := range e.writers {
		if err := w.Write(ctx, report); err != nil {
			e.logger.Error("report writer failed", "run_id", runID, "writer", fmt.Sprintf("%T", w), "error", err)
			errs = append(errs, fmt.Errorf("%T: %w", w, err))
		}
	}
	return report, errors.Join(errs...)
}
