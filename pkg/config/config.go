// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the server configuration from a TOML file with
// environment variable overrides, and supports hot reload via Watcher.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// ReadTimeout and WriteTimeout bound slow clients, in seconds.
	ReadTimeout  int `toml:"read_timeout"`
	WriteTimeout int `toml:"write_timeout"`
}

// StorageConfig controls the embedded key-value store.
type StorageConfig struct {
	// Path is the on-disk database directory. Ignored when InMemory.
	Path       string `toml:"path"`
	InMemory   bool   `toml:"in_memory"`
	SyncWrites bool   `toml:"sync_writes"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is "json" or "text".
	Format string `toml:"format"`
	// File, when set, duplicates log output to this path.
	File string `toml:"file"`
}

// TelemetryConfig controls tracing export.
type TelemetryConfig struct {
	TracingEnabled bool   `toml:"tracing_enabled"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	ServiceName    string `toml:"service_name"`
}

// FiltersConfig controls the filter state layer.
type FiltersConfig struct {
	// DebounceWindowMS is the quiescence window before filter changes
	// propagate to sinks, in milliseconds.
	DebounceWindowMS int `toml:"debounce_window_ms"`
}

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Filters   FiltersConfig   `toml:"filters"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         12310,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Storage: StorageConfig{
			Path:       "./data/jurisdesk",
			SyncWrites: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "jurisdesk",
		},
		Filters: FiltersConfig{
			DebounceWindowMS: 300,
		},
	}
}

// Load reads the TOML file at path, layered over Default, then applies
// environment overrides. A missing file is not an error; environment
// overrides still apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus environment.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path required unless storage.in_memory is set")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if c.Filters.DebounceWindowMS < 0 {
		return fmt.Errorf("filters.debounce_window_ms must not be negative")
	}
	return nil
}

// DebounceWindow returns the filter debounce window as a duration.
func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.Filters.DebounceWindowMS) * time.Millisecond
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnv overlays JURISDESK_* environment variables. Only variables
// that are set override; empty values are ignored.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("JURISDESK_SERVER_HOST", &cfg.Server.Host)
	setInt("JURISDESK_SERVER_PORT", &cfg.Server.Port)
	setString("JURISDESK_STORAGE_PATH", &cfg.Storage.Path)
	setBool("JURISDESK_STORAGE_IN_MEMORY", &cfg.Storage.InMemory)
	setBool("JURISDESK_STORAGE_SYNC_WRITES", &cfg.Storage.SyncWrites)
	setString("JURISDESK_LOG_LEVEL", &cfg.Logging.Level)
	setString("JURISDESK_LOG_FORMAT", &cfg.Logging.Format)
	setString("JURISDESK_LOG_FILE", &cfg.Logging.File)
	setBool("JURISDESK_TRACING_ENABLED", &cfg.Telemetry.TracingEnabled)
	setString("JURISDESK_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	setString("JURISDESK_SERVICE_NAME", &cfg.Telemetry.ServiceName)
	setInt("JURISDESK_FILTER_DEBOUNCE_MS", &cfg.Filters.DebounceWindowMS)
}
