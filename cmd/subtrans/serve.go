package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/subtrans/internal/config"
	"github.com/GriffinCanCode/subtrans/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the overlay control and display server",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = store.Snapshot().HTTPAddr
			}
			return serve(cmd.Context(), store, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to http_addr)")
	return cmd
}

func serve(ctx context.Context, store *config.Store, addr string) error {
	hub := server.NewHub()
	p := buildPipeline(ctx, store, hub)
	defer func() { _ = p.Close() }()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.New(p.mgr, hub).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("subtrans server starting", "http", addr, "provider", store.Snapshot().Provider)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	slog.Info("shutdown complete")
	return nil
}
