package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lmittmann/tint"

	"github.com/craftbay/craftbay/internal/adapters/builder"
	"github.com/craftbay/craftbay/internal/adapters/docker"
	httpadapter "github.com/craftbay/craftbay/internal/adapters/http"
	"github.com/craftbay/craftbay/internal/adapters/mcping"
	"github.com/craftbay/craftbay/internal/core/service"
	"github.com/craftbay/craftbay/internal/netutil"
)

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Infrastructure adapters.
	runtime, err := docker.NewAdapter()
	if err != nil {
		logger.Error("failed to initialize docker adapter", "error", err)
		os.Exit(1)
	}
	imageBuilder, err := builder.NewAdapter()
	if err != nil {
		logger.Error("failed to initialize image builder", "error", err)
		os.Exit(1)
	}
	probe := mcping.NewProbe(envDuration("PROBE_TIMEOUT", mcping.DefaultTimeout))
	allocator := netutil.NewAllocator(logger)

	// Core services.
	manager := service.NewManager(runtime, probe, allocator, imageBuilder,
		service.ManagerConfig{
			Image:  envString("GAME_IMAGE", service.DefaultImage),
			Memory: envString("MEMORY", service.DefaultMemory),
		}, logger)
	watchdog := service.NewWatchdog(manager,
		service.WatchdogConfig{
			SweepInterval: envDuration("SWEEP_INTERVAL", service.DefaultSweepInterval),
			IdleThreshold: envInt("IDLE_THRESHOLD", service.DefaultIdleThreshold),
		}, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watchdog.Run(ctx)
	}()

	// HTTP surface for the front end.
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api := app.Group("/api")
	v1 := api.Group("/v1")
	httpadapter.NewInstanceHandler(manager).Register(v1)

	addr := envString("LISTEN_ADDR", ":3000")
	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}()

	logger.Info("server starting", "addr", addr)
	if err := app.Listen(addr); err != nil {
		logger.Error("server failed", "error", err)
		stop()
	}

	// Let the in-flight sweep finish before exiting.
	wg.Wait()
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid env value", "key", key, "value", v)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring invalid env value", "key", key, "value", v)
		return fallback
	}
	return d
}
