// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

// Package config defines the layered service configuration: struct defaults,
// an optional YAML file, and environment variables, in increasing precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Providers  ProvidersConfig  `koanf:"providers"`
	Resilience ResilienceConfig `koanf:"resilience"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	API        APIConfig        `koanf:"api"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures the zerolog facade.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ProviderConfig configures one source adapter.
type ProviderConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	PageSize int    `koanf:"page_size"`
}

// ProvidersConfig holds every adapter's settings.
type ProvidersConfig struct {
	Ticketmaster ProviderConfig `koanf:"ticketmaster"`
	SeatGeek     ProviderConfig `koanf:"seatgeek"`
	Eventbrite   ProviderConfig `koanf:"eventbrite"`
}

// ResilienceConfig configures the guarded-call controller shared by all
// sources.
type ResilienceConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	Cooldown         time.Duration `koanf:"cooldown"`
	HalfOpenProbes   int           `koanf:"half_open_probes"`
	PerSecond        int           `koanf:"per_second"`
	PerMinute        int           `koanf:"per_minute"`
	CallTimeout      time.Duration `koanf:"call_timeout"`
}

// PipelineConfig configures aggregation behavior.
type PipelineConfig struct {
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheStaleGrace time.Duration `koanf:"cache_stale_grace"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
	StalenessGrace  time.Duration `koanf:"staleness_grace"`
	FuzzyWordCount  int           `koanf:"fuzzy_word_count"`
	FuzzyMinWordLen int           `koanf:"fuzzy_min_word_len"`
}

// APIConfig configures the inbound HTTP surface.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// defaultConfig returns the built-in defaults, overridden by file and env.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Providers: ProvidersConfig{
			Ticketmaster: ProviderConfig{Enabled: true, PageSize: 50},
			SeatGeek:     ProviderConfig{Enabled: true, PageSize: 50},
			Eventbrite:   ProviderConfig{Enabled: true, PageSize: 50},
		},
		Resilience: ResilienceConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HalfOpenProbes:   2,
			PerSecond:        5,
			PerMinute:        100,
			CallTimeout:      10 * time.Second,
		},
		Pipeline: PipelineConfig{
			CacheTTL:        10 * time.Minute,
			CacheStaleGrace: time.Hour,
			JanitorInterval: 5 * time.Minute,
			StalenessGrace:  3 * time.Hour,
			FuzzyWordCount:  3,
			FuzzyMinWordLen: 3,
		},
		API: APIConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if !c.Providers.Ticketmaster.Enabled && !c.Providers.SeatGeek.Enabled && !c.Providers.Eventbrite.Enabled {
		return fmt.Errorf("no providers enabled")
	}
	for name, p := range map[string]ProviderConfig{
		"ticketmaster": c.Providers.Ticketmaster,
		"seatgeek":     c.Providers.SeatGeek,
		"eventbrite":   c.Providers.Eventbrite,
	} {
		if !p.Enabled {
			continue
		}
		if p.PageSize < 1 || p.PageSize > 200 {
			return fmt.Errorf("providers.%s.page_size %d out of range (1-200)", name, p.PageSize)
		}
	}

	r := c.Resilience
	if r.FailureThreshold <= 0 {
		return fmt.Errorf("resilience.failure_threshold must be positive")
	}
	if r.Cooldown <= 0 {
		return fmt.Errorf("resilience.cooldown must be positive")
	}
	if r.HalfOpenProbes <= 0 {
		return fmt.Errorf("resilience.half_open_probes must be positive")
	}
	if r.PerSecond <= 0 || r.PerMinute <= 0 {
		return fmt.Errorf("resilience rate limits must be positive")
	}
	if r.PerMinute < r.PerSecond {
		return fmt.Errorf("resilience.per_minute %d below per_second %d", r.PerMinute, r.PerSecond)
	}
	if r.CallTimeout <= 0 {
		return fmt.Errorf("resilience.call_timeout must be positive")
	}

	p := c.Pipeline
	if p.CacheTTL <= 0 {
		return fmt.Errorf("pipeline.cache_ttl must be positive")
	}
	if p.CacheStaleGrace < 0 {
		return fmt.Errorf("pipeline.cache_stale_grace must not be negative")
	}
	if p.JanitorInterval <= 0 {
		return fmt.Errorf("pipeline.janitor_interval must be positive")
	}
	if p.StalenessGrace <= 0 {
		return fmt.Errorf("pipeline.staleness_grace must be positive")
	}
	if p.FuzzyWordCount < 0 {
		return fmt.Errorf("pipeline.fuzzy_word_count must not be negative")
	}

	if c.API.RateLimitReqs <= 0 || c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("api rate limit settings must be positive")
	}

	return nil
}
