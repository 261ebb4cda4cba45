// Package cli implements the exthost command line: deterministic scripted
// traces, extension runs with optional transcript recording, replay
// verification, and the serve mode.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/exthost/internal/logging"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the exthost CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exthost",
		Short: "Deterministic extension-execution host",
		Long: "ExtHost runs sandboxed JavaScript extensions on a deterministic\n" +
			"event-loop scheduler and records reproducible execution transcripts.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(flagLogLevel, flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newTraceCmd(),
		newRunCmd(),
		newReplayCmd(),
		newServeCmd(),
	)
	return root
}
