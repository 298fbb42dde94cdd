// Package app wires configuration into a ready-to-run poll pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nws-alert-ingest/internal/adapter/badgerstate"
	kafkaadapter "github.com/couchcryptid/nws-alert-ingest/internal/adapter/kafka"
	"github.com/couchcryptid/nws-alert-ingest/internal/adapter/nws"
	"github.com/couchcryptid/nws-alert-ingest/internal/adapter/store"
	"github.com/couchcryptid/nws-alert-ingest/internal/config"
	"github.com/couchcryptid/nws-alert-ingest/internal/observability"
	"github.com/couchcryptid/nws-alert-ingest/internal/pipeline"
)

// App holds the pipeline and the resources it owns.
type App struct {
	Pipeline *pipeline.Pipeline
	Store    *store.Store

	closers []io.Closer
}

// New opens the record store, the state backend, and the optional Kafka sink,
// and builds the pipeline on top of them. On error, anything already opened
// is closed.
func New(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{}

	recordStore, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	a.Store = recordStore
	a.closers = append(a.closers, recordStore)

	var state pipeline.StateStore = recordStore
	if cfg.StateBackend == config.StateBackendBadger {
		bs, err := badgerstate.Open(cfg.BadgerPath, logger.With("component", "badger"))
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open state store: %w", err)
		}
		state = bs
		a.closers = append(a.closers, bs)
	}

	var publisher pipeline.Publisher
	if cfg.KafkaSinkEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		publisher = w
		a.closers = append(a.closers, w)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	source := nws.NewClient(cfg.NWSBaseURL, cfg.Settings.UserAgent, metrics, logger)
	// The record store is the only backend every poller shares, so it holds
	// the cycle lock even when poll state lives in Badger.
	a.Pipeline = pipeline.New(source, recordStore, state, publisher, recordStore, cfg.Settings, clock, logger, metrics)

	logger.Info("pipeline configured",
		"database_driver", cfg.DatabaseDriver,
		"state_backend", cfg.StateBackend,
		"poll_interval", cfg.Settings.PollInterval,
	)
	return a, nil
}

// CheckReadiness reports ready when the database answers a ping and the
// pipeline has completed a poll.
func (a *App) CheckReadiness(ctx context.Context) error {
	if err := a.Store.CheckReadiness(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return a.Pipeline.CheckReadiness(ctx)
}

// Close releases resources in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
