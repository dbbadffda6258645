// ABOUTME: Wires config into the store, persona generator, notices, metrics and service
// ABOUTME: Shared by the serve and chat commands

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/persona-studio/internal/config"
	"github.com/2389/persona-studio/internal/conversation"
	"github.com/2389/persona-studio/internal/metrics"
	"github.com/2389/persona-studio/internal/notify"
	"github.com/2389/persona-studio/internal/persona"
	"github.com/2389/persona-studio/internal/store"
)

// app holds the running state manager and its collaborators.
type app struct {
	store    store.Store
	personas *persona.Registry
	notices  *notify.Feed
	metrics  *metrics.Metrics
	svc      *conversation.Service
	logger   *slog.Logger
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore("")
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// newApp builds the service from cfg. Extra sinks receive every notice in
// addition to the feed and the log.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...notify.Sink) (*app, error) {
	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	registry := persona.Builtin()
	feed := notify.NewFeed(cfg.Notices.Keep)
	sinks := append([]notify.Sink{feed, notify.NewLogSink(logger)}, extra...)
	m := metrics.New()

	svc := conversation.New(conversation.Options{
		Store:         st,
		Responder:     persona.NewGenerator(registry, cfg.Replies.GeneratorDelay, logger),
		Personas:      registry,
		Notifier:      notify.Multi(sinks...),
		Metrics:       m,
		Logger:        logger,
		ReplyDelayMin: cfg.Replies.DelayMin,
		ReplyDelayMax: cfg.Replies.DelayMax,
		DedupeTTL:     cfg.Replies.DedupeTTL,
	})

	a := &app{
		store:    st,
		personas: registry,
		notices:  feed,
		metrics:  m,
		svc:      svc,
		logger:   logger,
	}

	if cfg.Seed.Enabled {
		if err := svc.Seed(ctx, registry.List()); err != nil {
			a.Close()
			return nil, fmt.Errorf("seeding agents: %w", err)
		}
	}

	return a, nil
}

// Close stops pending replies and releases the store.
func (a *app) Close() {
	a.svc.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}
