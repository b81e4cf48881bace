package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/iaqflow/internal/adapters/file"
	"github.com/aretw0/iaqflow/internal/adapters/kafka"
	"github.com/aretw0/iaqflow/internal/adapters/postgres"
	"github.com/aretw0/iaqflow/internal/adapters/redis"
	"github.com/aretw0/iaqflow/pkg/adapters/csv"
	"github.com/aretw0/iaqflow/pkg/adapters/jsonl"
	"github.com/aretw0/iaqflow/pkg/adapters/memory"
	"github.com/aretw0/iaqflow/pkg/adapters/pdf"
	"github.com/aretw0/iaqflow/pkg/adapters/xlsx"
	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/ports"
)

// DefaultOutputDir is used when outputs.directory is empty.
const DefaultOutputDir = "reports"

// closers releases the connections opened for sinks and stores.
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildWriters turns the outputs section into report writers.
// Formats are csv, json, xlsx and pdf; Postgres and Kafka are enabled by their sections.
func BuildWriters(ctx context.Context, out config.OutputSettings, logger *slog.Logger) ([]ports.ReportWriter, io.Closer, error) {
	dir := out.Directory
	if dir == "" {
		dir = DefaultOutputDir
	}

	var (
		writers []ports.ReportWriter
		cl      closers
	)
	for _, f := range out.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "csv":
			writers = append(writers, csv.NewWriter(dir))
		case "json":
			writers = append(writers, jsonl.NewWriter(dir))
		case "xlsx":
			writers = append(writers, xlsx.NewWriter(dir))
		case "pdf":
			writers = append(writers, pdf.NewWriter(dir))
		default:
			return nil, nil, fmt.Errorf("unknown output format %q", f)
		}
	}

	if pg := out.Postgres; pg != nil && pg.DSN != "" {
		sink, err := postgres.Open(ctx, pg.DSN)
		if err != nil {
			_ = cl.Close()
			return nil, nil, err
		}
		cl = append(cl, sink)
		if err := sink.EnsureSchema(ctx); err != nil {
			_ = cl.Close()
			return nil, nil, err
		}
		writers = append(writers, sink)
		logger.Info("postgres sink enabled")
	}

	if k := out.Kafka; k != nil && len(k.Brokers) > 0 {
		pub, err := kafka.NewPublisher(k.Brokers, k.Topic)
		if err != nil {
			_ = cl.Close()
			return nil, nil, fmt.Errorf("kafka: %w", err)
		}
		cl = append(cl, pub)
		writers = append(writers, pub)
		logger.Info("kafka publisher enabled", "topic", k.Topic, "brokers", len(k.Brokers))
	}

	return writers, cl, nil
}

// BuildStore picks the run store: Redis when configured, a directory when
// dir is set, memory otherwise.
func BuildStore(ctx context.Context, settings config.StoreSettings, dir string) (ports.RunStore, io.Closer, error) {
	if r := settings.Redis; r != nil && r.Addr != "" {
		store := redis.New(r.Addr, r.Password, r.DB, redis.WithPrefix(r.Prefix), redis.WithTTL(r.TTL))
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return store, store, nil
	}
	if dir != "" {
		return file.New(dir), closers{}, nil
	}
	return memory.NewStore(), closers{}, nil
}
