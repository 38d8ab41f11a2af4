package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/use-agent/sellerwatch/config"
	"github.com/use-agent/sellerwatch/engine"
	"github.com/use-agent/sellerwatch/events"
	"github.com/use-agent/sellerwatch/metrics"
	"github.com/use-agent/sellerwatch/scraper"
	"github.com/use-agent/sellerwatch/snapshot"
	"github.com/use-agent/sellerwatch/store"
)

// app wires the long-lived services shared by serve and run.
type app struct {
	cfg      *config.Config
	store    *store.Store
	hub      *events.Hub
	registry *prometheus.Registry
	orch     *engine.Orchestrator
}

func newApp(cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close()
		return nil, err
	}
	if _, err := st.NormalizeLegacyTimes(context.Background(), loc); err != nil {
		_ = st.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hub := events.NewHub(cfg.Events.Buffer, cfg.Events.WebhookURL, cfg.Events.WebhookSecret)
	recorder := snapshot.NewRecorder(st, hub, loc)

	pipeline, err := scraper.NewPipeline(cfg.Crawl, recorder)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("crawl config: %w", err)
	}

	orch := engine.New(st, scraper.NewRodProvider(cfg.Browser), pipeline, hub, m, engine.Options{
		TaskConcurrency: cfg.Engine.TaskConcurrency,
		Cooldown:        cfg.Engine.Cooldown,
		TaskTimeout:     cfg.Engine.TaskTimeout,
		EnforceGuard:    cfg.Engine.EnforceGuard,
		RequireProxy:    cfg.Engine.RequireProxy,
		Headless:        cfg.Browser.Headless,
	})

	return &app{
		cfg:      cfg,
		store:    st,
		hub:      hub,
		registry: registry,
		orch:     orch,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
