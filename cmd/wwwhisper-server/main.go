package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/infra/buildinfo"
	"github.com/nguyendn/wwwhisper/internal/infra/confloader"
	"github.com/nguyendn/wwwhisper/internal/infra/shutdown"
	"github.com/nguyendn/wwwhisper/internal/infra/tlscert"
	"github.com/nguyendn/wwwhisper/internal/server/config"
	"github.com/nguyendn/wwwhisper/internal/server/httpserver"
	"github.com/nguyendn/wwwhisper/internal/storage"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
	"github.com/nguyendn/wwwhisper/internal/telemetry/metric"
)

// limiterIdle is how long a per-IP login limiter may sit unused before
// the GC loop drops it.
const limiterIdle = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("wwwhisper-server %s\n", buildinfo.Get())
		return nil
	}

	cfg, err := confloader.LoadServerConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting wwwhisper-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"site", cfg.Site.URL)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	var metrics *metric.Metrics
	if cfg.Server.Metrics.Enabled {
		metrics = metric.New()
	}

	store, err := openStore(cfg, metrics, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	app, err := newApp(cfg, store, metrics, log)
	if err != nil {
		_ = store.Close()
		return err
	}

	var reloader *tlscert.Reloader
	if cfg.Server.HTTP.TLSCertFile != "" {
		reloader, err = tlscert.New(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			tlscert.WithLogger(log.With("component", "tls")))
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("load tls certificate: %w", err)
		}
		reloader.StartAsync()
	}

	httpServer := httpserver.New(httpserver.Options{
		Address:      cfg.Server.HTTP.Address,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
		TLS:          reloader,
	}, app.router, log)

	shutdownHandler := shutdown.NewHandler(shutdown.DefaultTimeout, log)

	// Hooks run in reverse: HTTP first, the store last.
	shutdownHandler.OnShutdown("storage", shutdown.CloserHook(store.Close))

	gcCtx, stopGC := context.WithCancel(context.Background())
	gcDone := make(chan struct{})
	go func() {
		defer close(gcDone)
		app.runGC(gcCtx, cfg.Session.GCInterval)
	}()
	shutdownHandler.OnShutdown("session-gc", func(ctx context.Context) error {
		stopGC()
		select {
		case <-gcDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if *configFile != "" {
		watcher, err := confloader.WatchServerConfig(*configFile, log, app.applyReload)
		if err != nil {
			log.Warn("configuration hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config-watcher", shutdown.CloserHook(watcher.Stop))
		}
	}

	if reloader != nil {
		shutdownHandler.OnShutdown("tls-reloader", func(context.Context) error {
			reloader.Stop()
			return nil
		})
	}

	shutdownHandler.OnShutdown("http", httpServer.Shutdown)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("http server failed", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("server started", "address", cfg.Server.HTTP.Address, "backend", cfg.Storage.Backend)
	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// openStore opens the configured backend and exposes its internals to
// Prometheus when the backend supports it.
func openStore(cfg *config.ServerConfig, metrics *metric.Metrics, log logger.Logger) (service.Store, error) {
	storageCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	storageCfg.Backend = cfg.Storage.Backend
	storageCfg.DSN = cfg.Storage.DSN

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, storageCfg, log.With("component", "storage"))
	if err != nil {
		return nil, err
	}

	type registrar interface {
		RegisterMetrics(prometheus.Registerer)
	}
	if r, ok := store.(registrar); ok && metrics != nil {
		r.RegisterMetrics(metrics.Registerer())
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.Storage.Timeout)
	defer pingCancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("storage not reachable: %w", err)
	}
	return store, nil
}
