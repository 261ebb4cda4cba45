package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/exthost/internal/script"
	"github.com/me/exthost/internal/trace"
)

func newTraceCmd() *cobra.Command {
	var recordTo string

	cmd := &cobra.Command{
		Use:   "trace <script.yaml>",
		Short: "Execute a scheduler script and print its canonical transcript",
		Long: `Runs a scripted sequence of ingestion calls and manual-clock movements
against a fresh scheduler and prints the resulting transcript to stdout.
Two invocations of the same script always print identical bytes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := script.Load(args[0])
			if err != nil {
				return err
			}

			entries, err := script.NewRunner(logger).Run(sc)
			if err != nil {
				return fmt.Errorf("run script: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), trace.Render(entries))

			if recordTo != "" {
				return recordTranscript(cmd.Context(), recordTo, args[0], "manual", entries)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&recordTo, "record", "", "Record the transcript into the given SQLite database")
	return cmd
}
