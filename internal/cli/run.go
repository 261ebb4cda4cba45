package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/exthost/internal/extrt"
	"github.com/me/exthost/internal/host"
	"github.com/me/exthost/internal/hostcall"
	"github.com/me/exthost/internal/sched"
	"github.com/me/exthost/internal/script"
	"github.com/me/exthost/internal/trace"
)

func newRunCmd() *cobra.Command {
	var (
		scriptPath string
		recordTo   string
		runFor     time.Duration
		allowHosts []string
		denyHosts  []string
		plainHTTP  bool
	)

	cmd := &cobra.Command{
		Use:   "run <extension.js>",
		Short: "Run a JavaScript extension under the host loop",
		Long: `Loads the extension, runs its callbacks on the event loop, and prints
the execution transcript when the loop stops.

With --script the run is deterministic: a manual clock follows the
script's advance/set ops, timers and events come from the script, and
outbound host calls are denied by a hermetic policy so two runs of the
same extension and script print identical transcripts. Without --script
the extension runs on the system clock with real network access until
--for elapses or the process is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if scriptPath != "" {
				return runScripted(cmd, args[0], scriptPath, recordTo)
			}
			policy := hostcall.DefaultPolicy()
			policy.AllowHosts = allowHosts
			policy.DenyHosts = denyHosts
			policy.RequireTLS = !plainHTTP
			return runLive(cmd, args[0], policy, runFor, recordTo)
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "Drive the run deterministically from a scheduler script")
	cmd.Flags().StringVar(&recordTo, "record", "", "Record the transcript into the given SQLite database")
	cmd.Flags().DurationVar(&runFor, "for", 10*time.Second, "How long a live run keeps the loop going")
	cmd.Flags().StringSliceVar(&allowHosts, "allow-host", nil, "Host allowed for host.fetch (repeatable; empty allows all)")
	cmd.Flags().StringSliceVar(&denyHosts, "deny-host", nil, "Host denied for host.fetch (repeatable, checked first)")
	cmd.Flags().BoolVar(&plainHTTP, "plain-http", false, "Permit non-TLS host calls")
	return cmd
}

// runScripted executes the extension with a manual clock driven by the
// script. The policy's allow list holds one unmatchable pattern, so every
// host.fetch is denied synchronously on the loop goroutine and the
// transcript stays reproducible.
func runScripted(cmd *cobra.Command, extPath, scriptPath, recordTo string) error {
	sc, err := script.Load(scriptPath)
	if err != nil {
		return err
	}

	clock := sched.NewManualClock(sc.Clock)
	s := sched.New(clock, logger)

	policy := hostcall.DefaultPolicy()
	policy.AllowHosts = []string{""}
	conn := hostcall.New(policy, func(op func(*sched.Scheduler)) { op(s) }, logger)

	rt, err := extrt.New(cmd.Context(), s, conn, logger)
	if err != nil {
		return err
	}
	if err := rt.LoadFile(extPath); err != nil {
		return err
	}

	entries, err := script.NewRunner(logger).RunSession(sc, script.Session{
		Sched:   s,
		Clock:   clock,
		Execute: rt.Execute,
	})
	if err != nil {
		return fmt.Errorf("run script: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), trace.Render(entries))

	if recordTo != "" {
		return recordTranscript(cmd.Context(), recordTo, extPath, "manual", entries)
	}
	return nil
}

// tracingExec records every macrotask the host loop hands to the runtime.
type tracingExec struct {
	rt  *extrt.Runtime
	rec *trace.Recorder
}

func (e *tracingExec) Execute(task *sched.Macrotask) error {
	if err := e.rt.Execute(task); err != nil {
		return err
	}
	e.rec.Observe(task)
	return nil
}

// runLive executes the extension on the system clock for a bounded window.
func runLive(cmd *cobra.Command, extPath string, policy hostcall.Policy, runFor time.Duration, recordTo string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runFor)
	defer cancel()

	s := sched.New(sched.NewSystemClock(), logger)
	h := host.New(s, nil, host.DefaultConfig(), logger)

	conn := hostcall.New(policy, h.Submit, logger)
	rt, err := extrt.New(ctx, s, conn, logger)
	if err != nil {
		return err
	}

	exec := &tracingExec{rt: rt, rec: &trace.Recorder{}}
	h.SetExecutor(exec)

	if err := rt.LoadFile(extPath); err != nil {
		return err
	}

	logger.Info("extension loaded", "path", extPath, "window", runFor)
	if err := h.Start(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}

	entries := exec.rec.Entries()
	fmt.Fprint(cmd.OutOrStdout(), trace.Render(entries))

	if recordTo != "" {
		return recordTranscript(context.Background(), recordTo, extPath, "system", entries)
	}
	return nil
}
