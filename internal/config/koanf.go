// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/nearlive/config.yaml",
	"/etc/nearlive/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//
//  1. struct defaults,
//  2. an optional YAML config file,
//  3. environment variables (highest precedence).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive from the environment as plain strings.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envMappings translates flat environment variable names into nested koanf
// paths. Variables not listed here are ignored, so unrelated environment
// noise cannot leak into the configuration.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Providers
	"ticketmaster_enabled":   "providers.ticketmaster.enabled",
	"ticketmaster_base_url":  "providers.ticketmaster.base_url",
	"ticketmaster_api_key":   "providers.ticketmaster.api_key",
	"ticketmaster_page_size": "providers.ticketmaster.page_size",
	"seatgeek_enabled":       "providers.seatgeek.enabled",
	"seatgeek_base_url":      "providers.seatgeek.base_url",
	"seatgeek_client_id":     "providers.seatgeek.api_key",
	"seatgeek_page_size":     "providers.seatgeek.page_size",
	"eventbrite_enabled":     "providers.eventbrite.enabled",
	"eventbrite_base_url":    "providers.eventbrite.base_url",
	"eventbrite_token":       "providers.eventbrite.api_key",
	"eventbrite_page_size":   "providers.eventbrite.page_size",

	// Resilience
	"breaker_failure_threshold": "resilience.failure_threshold",
	"breaker_cooldown":          "resilience.cooldown",
	"breaker_half_open_probes":  "resilience.half_open_probes",
	"rate_limit_per_second":     "resilience.per_second",
	"rate_limit_per_minute":     "resilience.per_minute",
	"provider_call_timeout":     "resilience.call_timeout",

	// Pipeline
	"cache_ttl":          "pipeline.cache_ttl",
	"cache_stale_grace":  "pipeline.cache_stale_grace",
	"janitor_interval":   "pipeline.janitor_interval",
	"staleness_grace":    "pipeline.staleness_grace",
	"fuzzy_word_count":   "pipeline.fuzzy_word_count",
	"fuzzy_min_word_len": "pipeline.fuzzy_min_word_len",

	// API
	"api_rate_limit_reqs":   "api.rate_limit_reqs",
	"api_rate_limit_window": "api.rate_limit_window",
	"cors_origins":          "api.cors_origins",
}

// envTransformFunc maps an environment variable name to its koanf path.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
