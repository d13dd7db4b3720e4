// Package config loads agent settings from the environment, with a .env
// file picked up when present. Every knob has a safe default; validation
// failures are collected and reported together so a broken deployment
// fails fast with the full list.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/logging"
	"solana-launch-trader/internal/solana"
)

// Store modes.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// WalletSeed is one SMART_WALLETS entry: a copy source enrolled at boot.
type WalletSeed struct {
	Address string
	WinRate float64
	Label   string
}

// Config holds all agent configuration.
type Config struct {
	// Storage
	StoreMode     string // memory, badger, or postgres
	PostgresDSN   string
	ClickHouseDSN string // optional journal backend; empty keeps journals on the primary store
	BadgerDir     string

	// External endpoints
	SolanaRPCURL  string
	WalletAddress string // optional; enables the startup balance check
	FeedEndpoint  string // optional; empty disables the smart-money feed
	MarketBaseURL string // optional override for the market data API
	LaunchQuery   string // optional override for the launch sweep search term

	// Copy sources enrolled at boot (idempotent across restarts)
	WalletSeeds []WalletSeed

	// Scheduler cadence
	EvaluateInterval time.Duration
	ExitInterval     time.Duration
	PendingSweep     time.Duration

	// Execution
	SwapTimeout        time.Duration
	ExitRetryCap       int
	StartingBalanceSOL float64
	SimFailureRate     float64
	SimSeed            int64

	// Ops HTTP server
	ListenAddr string

	Log     logging.Config
	Trading *domain.TradingConfig
	Copy    domain.CopyTradeConfig
}

// Load reads configuration from the environment (.env honored when present)
// and validates it as a whole.
func Load() (*Config, error) {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	l := &loader{}
	base := domain.DefaultTradingConfig()
	copyBase := domain.DefaultCopyTradeConfig()
	logBase := logging.DefaultConfig()

	cfg := &Config{
		StoreMode:     strings.ToLower(l.str("STORE_MODE", StoreMemory)),
		PostgresDSN:   l.str("POSTGRES_DSN", ""),
		ClickHouseDSN: l.str("CLICKHOUSE_DSN", ""),
		BadgerDir:     l.str("BADGER_DIR", "./data/badger"),

		SolanaRPCURL:  l.str("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		WalletAddress: l.str("WALLET_ADDRESS", ""),
		FeedEndpoint:  l.str("FEED_ENDPOINT", ""),
		MarketBaseURL: l.str("MARKET_BASE_URL", ""),
		LaunchQuery:   l.str("LAUNCH_QUERY", ""),

		WalletSeeds: l.walletSeeds("SMART_WALLETS"),

		EvaluateInterval: l.seconds("EVALUATE_INTERVAL_SECONDS", 30*time.Second),
		ExitInterval:     l.seconds("EXIT_INTERVAL_SECONDS", 10*time.Second),
		PendingSweep:     l.seconds("PENDING_SWEEP_INTERVAL_SECONDS", 60*time.Second),

		SwapTimeout:        l.seconds("SWAP_TIMEOUT_SECONDS", 30*time.Second),
		ExitRetryCap:       l.integer("EXIT_RETRY_CAP", 3),
		StartingBalanceSOL: l.float("SIM_STARTING_BALANCE_SOL", 10),
		SimFailureRate:     l.float("SIM_FAILURE_RATE", 0),
		SimSeed:            int64(l.integer("SIM_SEED", 1)),

		ListenAddr: l.str("OPS_LISTEN_ADDR", ":8090"),

		Log: logging.Config{
			Level:      l.str("LOG_LEVEL", logBase.Level),
			Output:     l.str("LOG_OUTPUT", logBase.Output),
			File:       l.str("LOG_FILE", logBase.File),
			MaxSizeMB:  l.integer("LOG_MAX_SIZE_MB", logBase.MaxSizeMB),
			MaxBackups: l.integer("LOG_MAX_BACKUPS", logBase.MaxBackups),
			MaxAgeDays: l.integer("LOG_MAX_AGE_DAYS", logBase.MaxAgeDays),
			Compress:   l.boolean("LOG_COMPRESS", logBase.Compress),
		},
	}

	cfg.Trading = &domain.TradingConfig{
		MinPositionSize:          l.float("TRADING_MIN_POSITION_SIZE_SOL", base.MinPositionSize),
		MaxPositionSize:          l.float("TRADING_MAX_POSITION_SIZE_SOL", base.MaxPositionSize),
		MaxTotalExposure:         l.float("TRADING_MAX_TOTAL_EXPOSURE_SOL", base.MaxTotalExposure),
		MaxOpenPositions:         l.integer("TRADING_MAX_OPEN_POSITIONS", base.MaxOpenPositions),
		StopLossPercent:          l.float("TRADING_STOP_LOSS_PERCENT", base.StopLossPercent),
		TrailingStopPercent:      l.float("TRADING_TRAILING_STOP_PERCENT", base.TrailingStopPercent),
		TakeProfitTiers:          l.floats("TRADING_TAKE_PROFIT_TIERS", base.TakeProfitTiers),
		PartialSellPercent:       l.float("TRADING_PARTIAL_SELL_PERCENT", base.PartialSellPercent),
		DeadPositionDecayPercent: l.float("TRADING_DECAY_PERCENT", base.DeadPositionDecayPercent),
		MaxHoldTimeMinutes:       l.integer("TRADING_MAX_HOLD_MINUTES", base.MaxHoldTimeMinutes),
		MinLiquidity:             l.float("TRADING_MIN_LIQUIDITY_SOL", base.MinLiquidity),
		MinVolumeToHold:          l.float("TRADING_MIN_VOLUME_TO_HOLD", base.MinVolumeToHold),
		MinBuySellRatio:          l.float("TRADING_MIN_BUY_SELL_RATIO", base.MinBuySellRatio),
		SlippageBudgetBps:        l.integer("TRADING_SLIPPAGE_BUDGET_BPS", base.SlippageBudgetBps),
		MaxPriceImpactPercent:    l.float("TRADING_MAX_PRICE_IMPACT_PERCENT", base.MaxPriceImpactPercent),
		MinLaunchAgeSeconds:      l.integer("TRADING_MIN_LAUNCH_AGE_SECONDS", base.MinLaunchAgeSeconds),
		MaxLaunchAgeSeconds:      l.integer("TRADING_MAX_LAUNCH_AGE_SECONDS", base.MaxLaunchAgeSeconds),
		MinMarketCap:             l.float("TRADING_MIN_MARKET_CAP_USD", base.MinMarketCap),
	}

	cfg.Copy = domain.CopyTradeConfig{
		MinWalletWinRate:   l.float("COPY_MIN_WALLET_WIN_RATE", copyBase.MinWalletWinRate),
		MaxCopiesPerHour:   l.integer("COPY_MAX_COPIES_PER_HOUR", copyBase.MaxCopiesPerHour),
		MinTradeInterval:   l.seconds("COPY_MIN_TRADE_INTERVAL_SECONDS", copyBase.MinTradeInterval),
		LossCooldown:       l.seconds("COPY_LOSS_COOLDOWN_SECONDS", copyBase.LossCooldown),
		SizeMultiplier:     l.float("COPY_SIZE_MULTIPLIER", copyBase.SizeMultiplier),
		MaxCopyAmountSOL:   l.float("COPY_MAX_AMOUNT_SOL", copyBase.MaxCopyAmountSOL),
		MaxCopyExposureSOL: l.float("COPY_MAX_EXPOSURE_SOL", copyBase.MaxCopyExposureSOL),
		CopyBuysOnly:       l.boolean("COPY_BUYS_ONLY", copyBase.CopyBuysOnly),
		RequireApproval:    l.boolean("COPY_REQUIRE_APPROVAL", copyBase.RequireApproval),
		PendingTTL:         l.seconds("COPY_PENDING_TTL_SECONDS", copyBase.PendingTTL),
	}

	cfg.validate(l)

	if len(l.errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(l.errs, "; "))
	}
	return cfg, nil
}

func (c *Config) validate(l *loader) {
	switch c.StoreMode {
	case StoreMemory, StoreBadger, StorePostgres:
	default:
		l.fail("STORE_MODE must be memory, badger, or postgres, got %q", c.StoreMode)
	}
	if c.StoreMode == StorePostgres && c.PostgresDSN == "" {
		l.fail("POSTGRES_DSN must be set when STORE_MODE is postgres")
	}
	if c.StoreMode == StoreBadger && c.BadgerDir == "" {
		l.fail("BADGER_DIR must be set when STORE_MODE is badger")
	}
	if c.SolanaRPCURL == "" {
		l.fail("SOLANA_RPC_URL must be set")
	}
	if c.WalletAddress != "" {
		if err := solana.ValidateWalletAddress(c.WalletAddress); err != nil {
			l.fail("invalid WALLET_ADDRESS: %v", err)
		}
	}
	if c.EvaluateInterval <= 0 {
		l.fail("EVALUATE_INTERVAL_SECONDS must be positive")
	}
	if c.ExitInterval <= 0 {
		l.fail("EXIT_INTERVAL_SECONDS must be positive")
	}
	if c.PendingSweep <= 0 {
		l.fail("PENDING_SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.SwapTimeout <= 0 {
		l.fail("SWAP_TIMEOUT_SECONDS must be positive")
	}
	if c.ExitRetryCap <= 0 {
		l.fail("EXIT_RETRY_CAP must be positive")
	}
	if c.StartingBalanceSOL <= 0 {
		l.fail("SIM_STARTING_BALANCE_SOL must be positive")
	}
	if c.SimFailureRate < 0 || c.SimFailureRate >= 1 {
		l.fail("SIM_FAILURE_RATE must be within [0, 1)")
	}
	if c.ListenAddr == "" {
		l.fail("OPS_LISTEN_ADDR must be set")
	}
	if err := c.Trading.Validate(); err != nil {
		l.fail("invalid trading config: %v", err)
	}
	if err := c.Copy.Validate(); err != nil {
		l.fail("invalid copy-trade config: %v", err)
	}
}

// loader reads typed environment values and collects every failure instead
// of stopping at the first. A set-but-unparsable value is an error; an
// unset key takes its default.
type loader struct {
	errs []string
}

func (l *loader) fail(format string, args ...interface{}) {
	l.errs = append(l.errs, fmt.Sprintf(format, args...))
}

func (l *loader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (l *loader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail("invalid integer %q for %s", v, key)
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail("invalid number %q for %s", v, key)
		return def
	}
	return f
}

func (l *loader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail("invalid boolean %q for %s", v, key)
		return def
	}
	return b
}

func (l *loader) seconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail("invalid seconds value %q for %s", v, key)
		return def
	}
	return time.Duration(n) * time.Second
}

// walletSeeds parses comma-separated "address:winRate" or
// "address:winRate:label" entries.
func (l *loader) walletSeeds(key string) []WalletSeed {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []WalletSeed
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			l.fail("invalid %s entry %q, want address:winRate[:label]", key, entry)
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			l.fail("invalid win rate %q in %s entry %q", parts[1], key, entry)
			continue
		}
		seed := WalletSeed{Address: strings.TrimSpace(parts[0]), WinRate: rate}
		if len(parts) == 3 {
			seed.Label = strings.TrimSpace(parts[2])
		}
		out = append(out, seed)
	}
	return out
}

// floats parses a comma-separated list, e.g. "1.5,2,3".
func (l *loader) floats(key string, def []float64) []float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			l.fail("invalid list entry %q for %s", p, key)
			return def
		}
		out = append(out, f)
	}
	return out
}
