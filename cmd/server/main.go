// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

// Package main is the entry point for the NearLive server.
//
// NearLive aggregates local events from Ticketmaster, SeatGeek, and
// Eventbrite into a single ranked feed. Each provider sits behind a
// circuit breaker, a sliding-window rate limiter, and request coalescing,
// so one flaky upstream degrades results instead of taking the service
// down.
//
// The server initializes components in the following order:
//
//  1. Configuration: koanf v2 layering defaults, config.yaml, environment
//  2. Logging: zerolog, JSON by default
//  3. Resilience controller: breakers, limiters, coalescing per source
//  4. Source adapters: one per enabled provider
//  5. Result cache and aggregation pipeline
//  6. HTTP API: chi router on the configured port
//  7. Supervisor tree: HTTP server and cache janitor under suture
//
// Provider credentials come from the environment:
//
//	export TICKETMASTER_API_KEY=...
//	export SEATGEEK_CLIENT_ID=...
//	export EVENTBRITE_TOKEN=...
//	./nearlive
//
// Shutdown is graceful on SIGINT and SIGTERM: the listener stops
// accepting connections and in-flight requests get the configured
// shutdown timeout to finish.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nearlive/nearlive/internal/api"
	"github.com/nearlive/nearlive/internal/cache"
	"github.com/nearlive/nearlive/internal/config"
	"github.com/nearlive/nearlive/internal/logging"
	"github.com/nearlive/nearlive/internal/pipeline"
	"github.com/nearlive/nearlive/internal/resilience"
	"github.com/nearlive/nearlive/internal/source"
	"github.com/nearlive/nearlive/internal/supervisor"
	"github.com/nearlive/nearlive/internal/supervisor/services"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Msg("starting nearlive")

	ctrl := resilience.NewController(resilience.Config{
		CallTimeout: cfg.Resilience.CallTimeout,
		Breaker: resilience.BreakerConfig{
			FailureThreshold: cfg.Resilience.FailureThreshold,
			Cooldown:         cfg.Resilience.Cooldown,
			HalfOpenProbes:   cfg.Resilience.HalfOpenProbes,
		},
		Limiter: resilience.LimiterConfig{
			PerSecond: cfg.Resilience.PerSecond,
			PerMinute: cfg.Resilience.PerMinute,
		},
	})

	sources := buildSources(&cfg.Providers)
	if len(sources) == 0 {
		logging.Fatal().Msg("no source adapters enabled")
	}
	for _, src := range sources {
		logging.Info().Str("source", string(src.Name())).Msg("source adapter registered")
	}

	results := cache.New(cache.Config{
		TTL:        cfg.Pipeline.CacheTTL,
		StaleGrace: cfg.Pipeline.CacheStaleGrace,
	})

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.StalenessGrace = cfg.Pipeline.StalenessGrace
	pipelineCfg.Dedup.FuzzyWordCount = cfg.Pipeline.FuzzyWordCount
	pipelineCfg.Dedup.MinWordLen = cfg.Pipeline.FuzzyMinWordLen
	pipe := pipeline.New(sources, ctrl, results, pipelineCfg)

	handlers := api.NewHandlers(pipe, ctrl, version)
	router := api.NewRouter(handlers, api.MiddlewareConfig{
		CORSOrigins:     cfg.API.CORSOrigins,
		RateLimitReqs:   cfg.API.RateLimitReqs,
		RateLimitWindow: cfg.API.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddMaintenanceService(services.NewCacheJanitorService(results, cfg.Pipeline.JanitorInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree exited with error")
		os.Exit(1)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().
				Str("service", svc.Name).
				Msg("service did not stop within timeout")
		}
	}

	logging.Info().Msg("nearlive stopped")
}

// buildSources creates an adapter for each enabled provider.
func buildSources(providers *config.ProvidersConfig) []source.Source {
	var sources []source.Source

	if p := providers.Ticketmaster; p.Enabled {
		sources = append(sources, source.NewTicketmaster(source.Config{
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			PageSize: p.PageSize,
		}))
	}
	if p := providers.SeatGeek; p.Enabled {
		sources = append(sources, source.NewSeatGeek(source.Config{
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			PageSize: p.PageSize,
		}))
	}
	if p := providers.Eventbrite; p.Enabled {
		sources = append(sources, source.NewEventbrite(source.Config{
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			PageSize: p.PageSize,
		}))
	}

	return sources
}
