package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/harvest/internal/config"
	"github.com/nao1215/harvest/internal/database"
	"github.com/nao1215/harvest/internal/metrics"
	"github.com/nao1215/harvest/internal/sink"
)

// closeTimeout bounds the final flush after a command finished or was
// interrupted.
const closeTimeout = 10 * time.Second

// runStore finishes the database run before closing the database.
type runStore struct {
	*database.HarvestDB
}

// Close implements sink.Store.
func (s runStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return errors.Join(s.FinishRun(ctx), s.HarvestDB.Close())
}

// output is the record destination of one command.
type output struct {
	adapter  *sink.Adapter
	jsonPath string
	dbPath   string
}

// openOutput opens the JSON array file and, unless disabled, the database with
// a new run, and returns an Adapter writing to both.
func openOutput(
	ctx context.Context,
	cfg *config.Config,
	defaultFile string,
	kind database.RunKind,
	target, mode string,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...sink.Option,
) (*output, error) {
	out := &output{jsonPath: cfg.OutputPath(defaultFile)}

	jsonStore, err := sink.OpenJSONFile(out.jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	stores := []sink.Store{jsonStore}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			_ = jsonStore.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		run, err := db.StartRun(ctx, kind, target, mode)
		if err != nil {
			_ = db.Close()
			_ = jsonStore.Close()
			return nil, err
		}
		logger.Debug("run started", "id", run.ID, "kind", string(kind), "db", db.Path())
		out.dbPath = db.Path()
		stores = append(stores, runStore{db})
	}

	opts = append([]sink.Option{
		sink.WithBatchSize(cfg.SinkBatchSize),
		sink.WithLogger(logger),
		sink.WithMetrics(m),
	}, opts...)
	out.adapter = sink.NewAdapter(sink.NewMultiStore(stores...), opts...)
	return out, nil
}

// Close flushes and closes every store with a fresh context, so records
// survive an interrupted command.
func (o *output) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return o.adapter.Close(ctx)
}

// startMetrics creates the metrics registry and serves it when an address is
// configured. The returned stop function is always safe to call.
func startMetrics(cfg *config.Config, logger *slog.Logger) (*metrics.Metrics, func(), error) {
	m := metrics.New()
	if cfg.MetricsAddr == "" {
		return m, func() {}, nil
	}

	srv, err := metrics.Start(cfg.MetricsAddr, m, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start metrics server: %w", err)
	}
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	return m, stop, nil
}
