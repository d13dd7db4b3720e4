// Package main runs the trading agent daemon: the launch evaluation loop,
// the exit loop, the smart-money feed consumer, the approval-queue sweeper,
// and the operator HTTP surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/config"
	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/engine"
	"solana-launch-trader/internal/execution"
	"solana-launch-trader/internal/feed"
	"solana-launch-trader/internal/logging"
	"solana-launch-trader/internal/market"
	"solana-launch-trader/internal/observability"
	"solana-launch-trader/internal/ops"
	"solana-launch-trader/internal/solana"
	"solana-launch-trader/internal/storage"
	badgerstore "solana-launch-trader/internal/storage/badger"
	chstore "solana-launch-trader/internal/storage/clickhouse"
	"solana-launch-trader/internal/storage/memory"
	"solana-launch-trader/internal/storage/migrations"
	pgstore "solana-launch-trader/internal/storage/postgres"
)

// agentStores groups the storage implementations behind the engine.
type agentStores struct {
	positions storage.PositionStore
	signals   storage.SignalRecordStore
	decisions storage.DecisionLogStore
	events    storage.ExitEventStore
	wallets   storage.SmartWalletStore
	pending   storage.PendingCopyTradeStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log)
	defer logger.Sync()

	logger.Info("agent starting",
		zap.String("store_mode", cfg.StoreMode),
		zap.Duration("evaluate_interval", cfg.EvaluateInterval),
		zap.Duration("exit_interval", cfg.ExitInterval),
		zap.String("ops_addr", cfg.ListenAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer cleanup()

	rpc := solana.NewHTTPClient(cfg.SolanaRPCURL)
	resolver := solana.NewMetadataResolver(rpc, logger.With(zap.String("component", "metadata")))

	var marketOpts []market.Option
	if cfg.MarketBaseURL != "" {
		marketOpts = append(marketOpts, market.WithBaseURL(cfg.MarketBaseURL))
	}
	if cfg.LaunchQuery != "" {
		marketOpts = append(marketOpts, market.WithSearchQuery(cfg.LaunchQuery))
	}
	screener := market.NewDexScreener(logger.With(zap.String("component", "market")), marketOpts...)

	// Fills are simulated against live market data; the Executor interface
	// is the seam where signed transactions would plug in.
	executor := execution.NewSimulated(execution.SimulatedOptions{
		Provider:           screener,
		StartingBalanceSOL: cfg.StartingBalanceSOL,
		FailureRate:        cfg.SimFailureRate,
		Seed:               cfg.SimSeed,
		Logger:             logger.With(zap.String("component", "execution")),
	})

	eng, err := engine.New(engine.Options{
		Config:      cfg.Trading,
		CopyConfig:  cfg.Copy,
		Positions:   stores.positions,
		Signals:     stores.signals,
		Decisions:   stores.decisions,
		Events:      stores.events,
		Wallets:     stores.wallets,
		Pending:     stores.pending,
		Launches:    screener,
		Provider:    screener,
		Executor:    executor,
		Metadata:    resolver,
		Logger:      logger,
		SwapTimeout: cfg.SwapTimeout,
		RetryCap:    cfg.ExitRetryCap,
	})
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}
	if err := eng.Start(ctx); err != nil {
		logger.Fatal("engine start failed", zap.Error(err))
	}

	seedWallets(ctx, eng, cfg.WalletSeeds, logger)
	checkWalletBalance(ctx, rpc, cfg.WalletAddress, logger)

	server := ops.NewServer(ops.ServerOptions{
		Engine: eng,
		Probe:  rpc,
		Logger: logger.With(zap.String("component", "ops")),
		Addr:   cfg.ListenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("ops server: %w", err)
		}
	}()

	var watcher *feed.Watcher
	var consumerWG sync.WaitGroup
	if cfg.FeedEndpoint != "" {
		watcher, err = feed.NewWatcher(ctx, cfg.FeedEndpoint,
			enrolledAddresses(ctx, eng, logger),
			logger.With(zap.String("component", "feed")), nil)
		if err != nil {
			logger.Fatal("feed connect failed", zap.Error(err))
		}
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			consumeTrades(ctx, eng, watcher, logger)
		}()
	} else {
		logger.Info("smart-money feed disabled, no FEED_ENDPOINT")
	}

	var schedWG sync.WaitGroup
	runScheduler(ctx, &schedWG, "evaluation", cfg.EvaluateInterval, logger, func(tickCtx context.Context) {
		if _, err := eng.RunEvaluationTick(tickCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("evaluation tick failed", zap.Error(err))
		}
	})
	runScheduler(ctx, &schedWG, "exits", cfg.ExitInterval, logger, func(tickCtx context.Context) {
		if err := eng.RunExitTick(tickCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("exit tick failed", zap.Error(err))
		}
	})
	runScheduler(ctx, &schedWG, "pending_sweep", cfg.PendingSweep, logger, func(tickCtx context.Context) {
		if _, err := eng.Governor().ExpirePending(tickCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pending sweep failed", zap.Error(err))
		}
	})

	lastBeat := time.Now()
	runScheduler(ctx, &schedWG, "heartbeat", 15*time.Second, logger, func(context.Context) {
		now := time.Now()
		observability.AddUptime(now.Sub(lastBeat).Seconds())
		lastBeat = now
	})

	// First signal drains gracefully; a second signal or the 30s deadline
	// forces exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("component failed, shutting down", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Error("second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown failed", zap.Error(err))
	}
	shutdownCancel()

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Warn("feed close failed", zap.Error(err))
		}
	}
	consumerWG.Wait()
	schedWG.Wait()
	eng.Stop()

	close(done)
	logger.Info("shutdown complete")
}

// buildStores assembles the storage layer for the configured mode. The
// returned cleanup closes every backend that was opened.
//
// Badger keeps positions and signal records; journals, enrollments, and the
// approval queue stay in memory there (enrollments reseed from SMART_WALLETS
// on boot, pending trades expire within their TTL anyway). Postgres keeps
// all durable entities, with the append-only journals on ClickHouse when a
// DSN is configured.
func buildStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*agentStores, func(), error) {
	switch cfg.StoreMode {
	case config.StoreMemory:
		return memoryStores(), func() {}, nil

	case config.StoreBadger:
		db, err := badgerstore.Open(cfg.BadgerDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger at %s: %w", cfg.BadgerDir, err)
		}
		stores := memoryStores()
		stores.positions = badgerstore.NewPositionStore(db)
		stores.signals = badgerstore.NewSignalRecordStore(db)
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Warn("badger close failed", zap.Error(err))
			}
		}
		return stores, cleanup, nil

	case config.StorePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}

		stores := memoryStores()
		stores.positions = pgstore.NewPositionStore(pool)
		stores.signals = pgstore.NewSignalRecordStore(pool)
		stores.wallets = pgstore.NewSmartWalletStore(pool)

		closers := []func(){pool.Close}
		if cfg.ClickHouseDSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
			if err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
			}
			stores.decisions = chstore.NewDecisionLogStore(conn)
			stores.events = chstore.NewExitEventStore(conn)
			closers = append(closers, func() {
				if err := conn.Close(); err != nil {
					logger.Warn("clickhouse close failed", zap.Error(err))
				}
			})
		}

		cleanup := func() {
			for _, c := range closers {
				c()
			}
		}
		return stores, cleanup, nil
	}
	return nil, nil, fmt.Errorf("unknown store mode %q", cfg.StoreMode)
}

func memoryStores() *agentStores {
	return &agentStores{
		positions: memory.NewPositionStore(),
		signals:   memory.NewSignalRecordStore(),
		decisions: memory.NewDecisionLogStore(),
		events:    memory.NewExitEventStore(),
		wallets:   memory.NewSmartWalletStore(),
		pending:   memory.NewPendingCopyTradeStore(),
	}
}

// seedWallets enrolls the configured copy sources. Re-enrolling across
// restarts is expected; duplicates are skipped.
func seedWallets(ctx context.Context, eng *engine.Engine, seeds []config.WalletSeed, logger *zap.Logger) {
	for _, seed := range seeds {
		err := eng.Governor().Enroll(ctx, &domain.SmartWallet{
			Address: seed.Address,
			Label:   seed.Label,
			WinRate: seed.WinRate,
		})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			logger.Warn("wallet enrollment failed",
				zap.String("address", seed.Address),
				zap.Error(err))
		}
	}
}

// checkWalletBalance logs the trading wallet's balance at boot. Failures
// are logged, not fatal: the RPC node may lag the agent's start.
func checkWalletBalance(ctx context.Context, rpc *solana.HTTPClient, wallet string, logger *zap.Logger) {
	if wallet == "" {
		return
	}
	balCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	balance, err := rpc.GetBalance(balCtx, wallet)
	if err != nil {
		logger.Warn("wallet balance check failed", zap.String("wallet", wallet), zap.Error(err))
		return
	}
	logger.Info("wallet balance", zap.String("wallet", wallet), zap.Float64("sol", balance))
}

func enrolledAddresses(ctx context.Context, eng *engine.Engine, logger *zap.Logger) []string {
	wallets, err := eng.Governor().Wallets(ctx)
	if err != nil {
		logger.Warn("listing enrolled wallets failed", zap.Error(err))
		return nil
	}
	addrs := make([]string, 0, len(wallets))
	for _, w := range wallets {
		addrs = append(addrs, w.Address)
	}
	return addrs
}

// consumeTrades feeds observed trades to the copy governor until the
// watcher closes its channel.
func consumeTrades(ctx context.Context, eng *engine.Engine, watcher *feed.Watcher, logger *zap.Logger) {
	for trade := range watcher.Trades() {
		res, err := eng.Governor().HandleTrade(ctx, trade)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			logger.Error("copy observation failed",
				zap.String("wallet", trade.Wallet),
				zap.String("mint", trade.Mint),
				zap.Error(err))
			continue
		}
		logger.Debug("copy observation handled",
			zap.String("wallet", trade.Wallet),
			zap.String("mint", trade.Mint),
			zap.String("outcome", res.Outcome))
	}
}

// runScheduler runs fn immediately and then on every tick until the
// context ends.
func runScheduler(ctx context.Context, wg *sync.WaitGroup, name string, interval time.Duration, logger *zap.Logger, fn func(context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("scheduler started",
			zap.String("name", name),
			zap.Duration("interval", interval))

		fn(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}
