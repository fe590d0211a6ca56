package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/multipage"
	"github.com/aretw0/multipage/internal/cli"
	mphttp "github.com/aretw0/multipage/pkg/adapters/http"
	"github.com/aretw0/multipage/pkg/observability"
	"github.com/aretw0/multipage/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve [graph]",
	Short: "Serve wizard sessions over HTTP",
	Long: `Exposes the wizard as a JSON API: sessions are opened, edited and advanced
over HTTP and persisted in the session store. Changes stream to clients as
server-sent events on /events, and Prometheus metrics are served on /metrics.

Several replicas can share a redis store; pass --stateless so that every
request reloads the session under a distributed lock.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		addr := flagOrEnv(cmd, "addr", "addr")
		stateless, _ := cmd.Flags().GetBool("stateless")
		lockTTL, _ := cmd.Flags().GetDuration("lock-ttl")

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(observability.WithRegisterer(reg))

		eng, err := newEngine(cmd, args, logger,
			multipage.WithLifecycleHooks(observability.Chain(metrics.Hooks(), observability.LogHooks(logger))),
		)
		if err != nil {
			return err
		}

		backend, err := openBackend(cmd, storeLocation(cmd))
		if err != nil {
			return err
		}
		defer backend.Close()

		mgrOpts := []session.Option{session.WithLockTTL(lockTTL)}
		if backend.Locker != nil {
			mgrOpts = append(mgrOpts, session.WithLocker(backend.Locker))
		}
		if stateless {
			mgrOpts = append(mgrOpts, session.WithStateless())
		}
		mgr := eng.Sessions(backend.Store, mgrOpts...)

		handler := mphttp.NewHandler(mgr,
			mphttp.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
			mphttp.WithInfo("multipage", strings.TrimSpace(multipage.Version)),
			mphttp.WithLogger(logger),
		)

		fmt.Fprintf(cmd.ErrOrStderr(), "Serving '%s' on %s\n", graphPath(cmd, args), addr)
		return listen(sigCtx, addr, handler, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (env MULTIPAGE_ADDR)")
	serveCmd.Flags().String("store", "memory", "Session store: memory, file:<dir>, sqlite:<path> or redis://... (env MULTIPAGE_STORE, MULTIPAGE_REDIS_URL)")
	serveCmd.Flags().Bool("stateless", false, "Reload sessions from the store on every request")
	serveCmd.Flags().Duration("lock-ttl", session.DefaultLockTTL, "Expiry of distributed session locks")
}

// storeLocation prefers --store, then MULTIPAGE_STORE, then MULTIPAGE_REDIS_URL.
func storeLocation(cmd *cobra.Command) string {
	if cmd.Flags().Changed("store") {
		v, _ := cmd.Flags().GetString("store")
		return v
	}
	if v := env("redis_url", ""); v != "" && env("store", "") == "" {
		return v
	}
	return flagOrEnv(cmd, "store", "store")
}

// listen serves until ctx ends, then drains outstanding requests.
func listen(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("shutting down")
		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "error", err)
			if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	}
}
