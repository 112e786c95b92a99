package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Digital-Shane/marquee/internal/api"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search and playback JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return serve(ctx, a, addr, cmd)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string, cmd *cobra.Command) error {
	server := &http.Server{
		Addr: addr,
		Handler: api.New(a.search, a.playback, a.logger,
			api.WithSessionTTL(a.cfg.Server.SessionTTL),
			api.WithMaxSessions(a.cfg.Server.MaxSessions)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	a.logger.Info("api listening", slog.String("addr", addr))
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down api")
	return server.Shutdown(shutdownCtx)
}
