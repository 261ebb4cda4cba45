package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/exthost/internal/config"
	"github.com/me/exthost/internal/extrt"
	"github.com/me/exthost/internal/host"
	"github.com/me/exthost/internal/hostcall"
	"github.com/me/exthost/internal/logging"
	"github.com/me/exthost/internal/sched"
	"github.com/me/exthost/internal/server"
	"github.com/me/exthost/internal/trace"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		record     bool
	)

	cmd := &cobra.Command{
		Use:   "serve <extension.js>",
		Short: "Run an extension behind the HTTP event gateway",
		Long: `Starts the host loop with the extension loaded and exposes the event
gateway: POST /api/v1/events feeds inbound events to the extension,
GET /api/v1/status reports scheduler state. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultHostConfig()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg, args[0], record)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML host config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&record, "record", false, "Record the transcript on shutdown")
	return cmd
}

func serve(ctx context.Context, cfg config.HostConfig, extPath string, record bool) error {
	srvLogger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if flagDebug {
		srvLogger = logger
	}

	s := sched.New(sched.NewSystemClock(), srvLogger)
	h := host.New(s, nil, host.DefaultConfig(), srvLogger)

	policy := hostcall.Policy{
		AllowHosts:   cfg.AllowHosts,
		DenyHosts:    cfg.DenyHosts,
		RequireTLS:   cfg.RequireTLS,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Timeout:      cfg.RequestTimeout,
	}
	conn := hostcall.New(policy, h.Submit, srvLogger)

	rt, err := extrt.New(ctx, s, conn, srvLogger)
	if err != nil {
		return err
	}
	var rec *trace.Recorder
	if record {
		rec = &trace.Recorder{}
		h.SetExecutor(&tracingExec{rt: rt, rec: rec})
	} else {
		h.SetExecutor(rt)
	}

	if err := rt.LoadFile(extPath); err != nil {
		return err
	}
	srvLogger.Info("extension loaded", "path", extPath)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(h, srvLogger),
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- h.Start(ctx)
	}()

	go func() {
		srvLogger.Info("gateway listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvLogger.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	srvLogger.Info("shutting down")

	// Stop the loop before the gateway so no event is accepted and lost.
	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
		srvLogger.Error("host loop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}

	if record {
		dbPath, err := resolveDBPath(cfg.DBPath)
		if err != nil {
			return err
		}
		return recordTranscript(context.Background(), dbPath, extPath, "system", rec.Entries())
	}
	srvLogger.Info("stopped")
	return nil
}

// resolveDBPath defaults the transcript database to ~/.exthost/exthost.db.
func resolveDBPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".exthost")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "exthost.db"), nil
}
