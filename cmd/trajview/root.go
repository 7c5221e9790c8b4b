package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/trajview/internal/config"
	"github.com/aretw0/trajview/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trajview",
	Short: "trajview serves molecular structures and trajectories to viewer surfaces",
	Long: `trajview loads structures and trajectory segments from remote services,
caches them, remembers the last trajectory request of every subject and
composes a single source plus a status for each rendering surface.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps persistent flags onto dotted configuration keys.
var flagKeys = map[string]string{
	"log-level":      "log_level",
	"structure-url":  "services.structure_url",
	"trajectory-url": "services.trajectory_url",
	"redis-addr":     "redis.addr",
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("structure-url", "", "Base URL of the structure service")
	rootCmd.PersistentFlags().String("trajectory-url", "", "Base URL of the trajectory service (defaults to the structure service)")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for a shared request memory")
}

// loadConfig reads the configuration file and applies the flags the user set.
// extra maps command-local flags onto configuration keys.
func loadConfig(cmd *cobra.Command, extra map[string]string) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	overrides := map[string]any{}
	apply := func(keys map[string]string) {
		for flag, key := range keys {
			f := cmd.Flags().Lookup(flag)
			if f == nil || !f.Changed {
				continue
			}
			overrides[key] = f.Value.String()
		}
	}
	apply(flagKeys)
	apply(extra)

	cfg, err := config.Load(path, overrides)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.Level()), nil
}

// shutdownContext is cancelled on SIGINT or SIGTERM.
func shutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
