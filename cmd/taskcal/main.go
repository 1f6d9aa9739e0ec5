package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"taskcal/internal/config"
	"taskcal/internal/expand"
	appLog "taskcal/internal/log"
	"taskcal/internal/service"
	"taskcal/internal/store"
	"taskcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	appLog.Info("taskcal starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides the config file if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"backend", conf.Backend,
		"storage_path", conf.StoragePath,
		"refresh", conf.RefreshCron,
		"window_days", conf.RecurrenceWindowDays,
		"max_instances_per_parent", conf.MaxInstancesPerParent,
		"write_debounce_ms", conf.WriteDebounceMS,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	backend, closeBackend, err := buildBackend(ctx, conf)
	if err != nil {
		appLog.Error("failed to initialize storage backend", err, "backend", conf.Backend)
		os.Exit(1)
	}
	defer closeBackend()

	accessor := store.NewAccessor(backend, time.Duration(conf.WriteDebounceMS)*time.Millisecond)
	generator := expand.NewGenerator(expand.Options{
		HalfWindow:   time.Duration(conf.RecurrenceWindowDays) * 24 * time.Hour / 2,
		MaxPerParent: conf.MaxInstancesPerParent,
	})
	svc := service.New(accessor, generator)

	// Periodically drop the expansion cache so the now-anchored window
	// slides forward even when the store is idle.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		appLog.Debug("refreshing expansion window")
		svc.RefreshWindow()
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if err := web.StartServer(ctx, conf, svc); err != nil {
		appLog.Error("HTTP server failed", err)
	}

	// Make sure a pending debounced write reaches the backend before exit.
	svc.Flush(context.Background())
	appLog.Info("taskcal exiting")
}

func buildBackend(ctx context.Context, conf *config.Config) (store.Backend, func(), error) {
	switch conf.Backend {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "postgres":
		pg, err := store.ConnectPostgres(ctx, conf.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		f, err := store.NewFile(conf.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/taskcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
