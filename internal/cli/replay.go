package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/exthost/internal/script"
	"github.com/me/exthost/internal/store"
	"github.com/me/exthost/internal/trace"
)

func newReplayCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "replay <run-id> <script.yaml>",
		Short: "Re-execute a script and diff against a recorded transcript",
		Long: `Replays the script deterministically and compares the fresh transcript
line by line against the one recorded under run-id. Exits non-zero on the
first divergence, which indicates a reproducibility regression.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, scriptPath := args[0], args[1]

			st, err := store.NewSQLiteStore(dbPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found in %s", runID, dbPath)
			}

			recorded, err := st.GetTrace(cmd.Context(), runID)
			if err != nil {
				return err
			}

			sc, err := script.Load(scriptPath)
			if err != nil {
				return err
			}
			fresh, err := script.NewRunner(logger).Run(sc)
			if err != nil {
				return fmt.Errorf("run script: %w", err)
			}

			if d := trace.Diff(recorded, fresh); d != "" {
				return fmt.Errorf("transcript diverged from run %s:\n%s", runID, d)
			}

			logger.Info("replay matched", "run_id", runID, "entries", len(recorded))
			fmt.Fprintf(cmd.OutOrStdout(), "replay of %s matched (%d entries)\n", runID, len(recorded))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "exthost.db", "SQLite transcript database")
	return cmd
}
