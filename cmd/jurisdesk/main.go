// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command jurisdesk starts the expense management backend.
//
// # Configuration
//
// Configuration is read from a TOML file (default: jurisdesk.toml in
// the working directory), with JURISDESK_* environment variables
// taking precedence. See pkg/config for the full set of keys.
//
// # Usage
//
//	# Run with defaults
//	jurisdesk serve
//
//	# Run with an explicit config file
//	jurisdesk serve --config /etc/jurisdesk/jurisdesk.toml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jurisdesk/jurisdesk/pkg/config"
	"github.com/jurisdesk/jurisdesk/pkg/logging"
	"github.com/jurisdesk/jurisdesk/services/office"
)

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jurisdesk",
	Short: "Expense management backend for legal offices",
	Long: `JurisDesk tracks office expenses with optimistic concurrency,
saved filter sets, and per-table view state persistence.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		levelVar := new(slog.LevelVar)
		log, closeLog, err := logging.New(logging.Options{
			Level:    cfg.Logging.Level,
			Format:   cfg.Logging.Format,
			File:     cfg.Logging.File,
			Service:  cfg.Telemetry.ServiceName,
			LevelVar: levelVar,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "log close error: %v\n", err)
			}
		}()
		slog.SetDefault(log)

		log.Info("starting jurisdesk",
			"version", version,
			"addr", cfg.Addr(),
			"storage_path", cfg.Storage.Path,
			"in_memory", cfg.Storage.InMemory,
			"tracing", cfg.Telemetry.TracingEnabled,
		)

		// Hot reload: log level changes take effect without a restart.
		// Everything else is logged and applies on the next start.
		watcher, err := config.NewWatcher(configPath, func(next config.Config) {
			if lvl, err := logging.ParseLevel(next.Logging.Level); err == nil && lvl != levelVar.Level() {
				log.Info("log level changed", "level", next.Logging.Level)
				levelVar.Set(lvl)
			}
		}, 0, log)
		if err != nil {
			return err
		}
		if err := watcher.Start(cmd.Context()); err != nil {
			log.Warn("config watch unavailable", "error", err)
		}
		defer watcher.Stop()

		srv, err := office.NewServer(cfg, log)
		if err != nil {
			return err
		}
		return srv.Run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jurisdesk %s\n", version)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "jurisdesk.toml", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
