package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"volume_maker/internal/alert"
	"volume_maker/internal/config"
	"volume_maker/internal/core"
	"volume_maker/internal/discovery"
	"volume_maker/internal/gateway/paper"
	"volume_maker/internal/infrastructure/metrics"
	"volume_maker/internal/ledger"
	"volume_maker/internal/safety"
	"volume_maker/internal/scheduler"
	"volume_maker/internal/sizing"
	"volume_maker/internal/trading/execution"
	"volume_maker/internal/trigger"
	"volume_maker/internal/wallet"
	"volume_maker/pkg/liveserver"
	"volume_maker/pkg/logging"
	"volume_maker/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/volume_maker.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("volume_maker version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobalLogger(logger)

	logger.Info("Starting volume_maker",
		"version", version,
		"gateway", cfg.App.GatewayType,
		"sizing_mode", cfg.App.SizingMode,
		"pool", cfg.Pool.PoolAddress,
	)

	if cfg.Telemetry.EnableMetrics {
		if err := telemetry.InitMetrics(); err != nil {
			logger.Warn("Failed to initialize metrics exporter", "error", err)
		} else {
			logger.Info("Metrics exporter initialized")
		}
	}

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Error("Run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("volume_maker stopped")
}

func run(cfg *config.Config, logger core.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wallets, err := wallet.LoadWallets(cfg.App.WalletFile)
	if err != nil {
		return fmt.Errorf("failed to load wallets: %w", err)
	}
	logger.Info("Wallet roster loaded", "wallets", len(wallets), "file", cfg.App.WalletFile)

	var table core.AllocationTable
	if cfg.App.SizingMode == "deterministic" {
		allocs, err := wallet.LoadAllocations(cfg.App.AllocationFile, cfg.Pool.QuoteDecimals)
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}
		logger.Info("Allocation table loaded", "entries", allocs.Len(), "file", cfg.App.AllocationFile)
		table = allocs
	}

	// The paper gateway backs all three read/write surfaces of the run.
	gw := paper.New(cfg, wallets, logger)

	checker := safety.NewChecker(cfg, logger)
	if err := checker.CheckSessionSafety(ctx, wallets, gw, gw); err != nil {
		return fmt.Errorf("session safety check failed: %w", err)
	}

	book := ledger.New(wallets, cfg.Wallets.RebuyCeiling)
	scanner := discovery.NewScanner(gw, cfg, logger)
	scanner.Seed(ctx, wallets, book)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sizer, err := sizing.NewPolicy(cfg, table, rng, logger)
	if err != nil {
		return fmt.Errorf("failed to create sizing policy: %w", err)
	}
	trig := trigger.New(cfg, rng)
	exec := execution.NewExecutor(gw, cfg, logger)

	sched := scheduler.New(cfg, book, sizer, trig, gw, gw, exec, rng, logger)

	group, ctx := errgroup.WithContext(ctx)

	if cfg.Telemetry.EnableMetrics {
		metricsSrv := metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
		metricsSrv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsSrv.Stop(shutdownCtx); err != nil {
				logger.Error("Error during metrics server shutdown", "error", err)
			}
		}()
	}

	if cfg.Server.Enabled {
		hub := liveserver.NewHub(logger)
		group.Go(func() error {
			hub.Run(ctx)
			return nil
		})

		server := liveserver.NewServer(hub, logger, cfg.Server.AllowedOrigins)
		sched.OnSnapshot(func(snap core.SessionSnapshot) {
			hub.Broadcast(liveserver.NewSnapshotMessage(snap))
		})
		group.Go(func() error {
			logger.Info("Live status server listening",
				"websocket_url", fmt.Sprintf("ws://localhost%s/ws", cfg.Server.Port))
			return server.Start(ctx, cfg.Server.Port)
		})
	}

	// SIGUSR1 pauses the loop after the in-flight trade, SIGUSR2 resumes it.
	pauseChan := make(chan os.Signal, 1)
	signal.Notify(pauseChan, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(pauseChan)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-pauseChan:
				if sig == syscall.SIGUSR1 {
					sched.Pause()
				} else {
					sched.Resume()
				}
			}
		}
	}()

	alerts := alert.NewFromConfig(cfg, logger)
	alerts.Alert(ctx, "Session started", "Volume session starting", alert.Info, map[string]string{
		"wallets": fmt.Sprintf("%d", len(wallets)),
		"pool":    cfg.Pool.PoolAddress,
	})

	group.Go(func() error {
		defer stop()
		return sched.Run(ctx)
	})

	runErr := group.Wait()

	snap := sched.Snapshot(false)
	alerts.Alert(context.Background(), "Session ended", "Volume session finished", alert.Info, map[string]string{
		"state":       snap.State,
		"buys":        fmt.Sprintf("%d", snap.BuyCounter),
		"sells":       fmt.Sprintf("%d", snap.SellCounter),
		"skips":       fmt.Sprintf("%d", snap.SkipCounter),
		"blacklisted": fmt.Sprintf("%d", snap.Blacklisted),
	})
	alerts.Wait()

	return runErr
}
