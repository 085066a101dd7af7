package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/coachflow"
	"github.com/aretw0/coachflow/internal/cli"
	"github.com/aretw0/coachflow/internal/config"
	httpAdapter "github.com/aretw0/coachflow/pkg/adapters/http"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Exposes sessions, sequences, reload events and metrics as a JSON API over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, func(cfg *config.Config) {
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
			}
		}, cli.WithMetrics())
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := []httpAdapter.Option{
			httpAdapter.WithSessions(rt.Engine.Sessions()),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{})),
			httpAdapter.WithVersion(strings.TrimSpace(coachflow.Version)),
			httpAdapter.WithLogger(rt.Logger),
		}
		if _, ok := rt.Engine.Loader().(ports.Watchable); ok {
			if err := rt.WatchSequences(ctx); err != nil {
				return err
			}
			opts = append(opts, httpAdapter.WithWatcher(rt.Engine))
		}

		srv := &http.Server{
			Addr:              rt.Config.HTTP.Addr,
			Handler:           httpAdapter.NewHandler(rt.Engine, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			rt.Logger.Info("starting coachflow server", "address", srv.Addr, "sequences", rt.Config.Sequences.Dir)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			rt.Logger.Info("shutting down server")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.Logger.Error("graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			rt.Logger.Info("server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
}
