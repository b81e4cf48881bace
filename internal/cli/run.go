package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/iaqflow"
	"github.com/aretw0/iaqflow/internal/presentation/tui"
	"github.com/aretw0/iaqflow/pkg/adapters/csv"
	"github.com/aretw0/iaqflow/pkg/adapters/jsonl"
	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/aretw0/iaqflow/pkg/observability"
	"github.com/aretw0/iaqflow/pkg/ports"
)

// RunOptions are the inputs of a batch run.
type RunOptions struct {
	ConfigPath  string
	Input       string // path, or "-" for stdin
	InputFormat string // csv, jsonl or empty to pick by extension
	OutputDir   string // overrides outputs.directory
	Formats     []string
	StoreDir    string // keep the report as JSON under this directory
	JSON        bool   // print the report as JSON instead of the summary table
}

// OpenSource opens a frame table as csv or jsonl.
func OpenSource(path, format string, cols config.ColumnSettings) (ports.FrameSource, io.Closer, error) {
	var (
		r  io.Reader = os.Stdin
		cl io.Closer = closers{}
	)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		r, cl = f, f
	}

	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".ndjson", ".json":
			format = "jsonl"
		default:
			format = "csv"
		}
	}

	switch format {
	case "jsonl":
		return jsonl.NewSource(r), cl, nil
	case "csv":
		src, err := csv.NewSource(r, cols)
		if err != nil {
			_ = cl.Close()
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return src, cl, nil
	}
	_ = cl.Close()
	return nil, nil, fmt.Errorf("unknown input format %q", format)
}

// RunBatch evaluates one frame table and writes the configured reports.
func RunBatch(ctx context.Context, opts RunOptions, stdout io.Writer, logger *slog.Logger) (*domain.Report, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	outputs := cfg.Outputs
	if opts.OutputDir != "" {
		outputs.Directory = opts.OutputDir
	}
	if len(opts.Formats) > 0 {
		outputs.Formats = opts.Formats
	}

	writers, closer, err := BuildWriters(ctx, outputs, logger)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	engineOpts := []iaqflow.Option{
		iaqflow.WithLogger(logger),
		iaqflow.WithLifecycleHooks(observability.LoggingHooks(logger)),
		iaqflow.WithWriters(writers...),
	}
	if opts.StoreDir != "" {
		store, storeCloser, err := BuildStore(ctx, config.StoreSettings{}, opts.StoreDir)
		if err != nil {
			return nil, err
		}
		defer storeCloser.Close()
		engineOpts = append(engineOpts, iaqflow.WithRunStore(store))
	}

	eng, err := iaqflow.New(cfg, engineOpts...)
	if err != nil {
		return nil, err
	}

	src, srcCloser, err := OpenSource(opts.Input, opts.InputFormat, cfg.Columns)
	if err != nil {
		return nil, err
	}
	defer srcCloser.Close()

	report, err := eng.Run(ctx, src)
	if report == nil {
		return nil, err
	}

	if opts.JSON {
		if encErr := jsonl.Encode(stdout, report); encErr != nil {
			return report, encErr
		}
		return report, err
	}
	rich := false
	if f, ok := stdout.(*os.File); ok {
		rich = tui.IsTerminal(f)
	}
	if werr := tui.WriteSummary(stdout, report, rich); werr != nil {
		return report, werr
	}
	return report, err
}
