package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seafile-thumbnail/internal/app"
	"seafile-thumbnail/internal/handlers"
	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/media"
	"seafile-thumbnail/internal/memory"
	"seafile-thumbnail/internal/metrics"
	"seafile-thumbnail/internal/middleware"
	"seafile-thumbnail/internal/startup"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	startTime := time.Now()

	// GOMEMLIMIT must be in place before anything allocates heavily.
	limit := memory.ApplyLimit(os.Getenv)

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(limit)

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, config)
	if err != nil {
		startup.LogFatal("Startup error: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	collector := metrics.NewCollector(metrics.DirStatsProvider{Root: config.ThumbnailRoot}, config.CacheStatsInterval)
	if config.MetricsEnabled {
		collector.Start()
	}

	h := handlers.New(a.Generator, a.DB, a.DB, monitor, handlers.Options{
		Extension:          config.Extension,
		ShareLinkWatermark: config.ShareLinkWatermark,
		VideoEnabled:       config.VideoEnabled && a.VideoReady,
	})
	router := handlers.NewRouter(h, middleware.Metrics(middleware.DefaultMetricsConfig()))
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           middleware.Logger(loggingConfig)(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handlers.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(srv, "HTTP") })
	if metricsSrv != nil {
		g.Go(func() error { return serve(metricsSrv, "metrics") })
	}
	g.Go(func() error {
		<-gctx.Done()

		reason := "signal received"
		if ctx.Err() == nil {
			reason = "server error"
		}
		startup.LogShutdownInitiated(reason)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		startup.LogShutdownStep("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("HTTP server stopped")
		}

		if metricsSrv != nil {
			startup.LogShutdownStep("Shutting down metrics server")
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logging.Warn("Metrics server shutdown error: %v", err)
			} else {
				startup.LogShutdownStepComplete("Metrics server stopped")
			}
		}

		startup.LogShutdownStep("Stopping background workers")
		collector.Stop()
		monitor.Stop()
		startup.LogShutdownStepComplete("Background workers stopped")

		startup.LogShutdownStep("Closing database")
		if err := a.Close(); err != nil {
			logging.Warn("Database close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Database closed")
		}

		media.ShutdownVips()
		return nil
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := g.Wait(); err != nil {
		logging.Error("Server error: %v", err)
		os.Exit(1)
	}
	startup.LogShutdownComplete()
}

func serve(srv *http.Server, name string) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server on %s: %w", name, srv.Addr, err)
	}
	return nil
}
