// Package cli wires the flotilla commands: flag parsing, description
// loading, conductor dispatch and terminal rendering.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flotilla-orch/flotilla/internal/conductor"
	"github.com/flotilla-orch/flotilla/internal/core/description"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// NewRootCommand builds the flotilla command tree.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "flotilla",
		Short: "Orchestrate multi-ship container environments",
		Long: "Flotilla builds the dependency graph an environment description declares\n" +
			"and runs lifecycle operations over it in dependency order.",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogger(v)
		},
	}

	root.PersistentFlags().StringP("file", "f", "flotilla.yaml", "environment description file")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (text, json)")

	v.BindPFlag("file", root.PersistentFlags().Lookup("file"))
	v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))
	v.SetEnvPrefix("FLOTILLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newStatusCommand(v),
		newPullCommand(v),
		newStartCommand(v),
		newStopCommand(v),
		newRestartCommand(v),
		newKillCommand(v),
		newCleanCommand(v),
		newLogsCommand(v),
		newDepTreeCommand(v),
		newCompleteCommand(v),
	)

	return root
}

// Execute runs the command tree and returns a process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "flotilla: %v\n", err)
		return 1
	}
	return 0
}

// setupLogger installs the process logger with the configured level and
// format.
func setupLogger(v *viper.Viper) {
	var level slog.Level
	switch strings.ToLower(v.GetString("log.level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(v.GetString("log.format")) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newConductor loads the configured description and builds a conductor
// against it.
func newConductor(ctx context.Context, v *viper.Viper) (*conductor.Conductor, error) {
	path := v.GetString("file")
	desc, err := description.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return conductor.New(ctx, desc)
}
