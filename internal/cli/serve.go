package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FairportRobotics/scouting-sync/internal/reconcile"
	"github.com/FairportRobotics/scouting-sync/internal/sync"
	"github.com/FairportRobotics/scouting-sync/internal/web"
)

// NewServeCommand creates the serve command, the long-running sync
// service.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync HTTP service",
		Long: `Run the HTTP service that accepts scouting submissions and syncs them
to the raw archive, the CSV snapshots, and the document mirror.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded", "config", cfg.String())

	backend, err := openObjectStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	docs, err := openMirror(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := docs.Close(context.Background()); err != nil {
			slog.Warn("closing document mirror", "error", err)
		}
	}()

	snapshots, service := buildPipeline(cfg, backend.store, docs)

	slog.Info("record types registered", "count", sync.TypeCount())

	var reconciler *reconcile.Reconciler
	if cfg.Reconcile.Enabled {
		reconciler = reconcile.New(snapshots, docs, cfg.Sync.OpTimeout)
		if err := reconciler.Start(cfg.Reconcile.Schedule); err != nil {
			return err
		}
		defer reconciler.Stop()
	}

	server := web.NewServer(service, cfg, map[string]web.Pinger{
		"objectstore": backend.store.Ping,
		"mongo":       docs.Ping,
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
