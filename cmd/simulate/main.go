// Package main replays a scripted launch session against the trading
// engine and reports what it did: entries, exits, realized PnL, and the
// signal rankings the session produced. Everything runs in memory with
// simulated fills; the same seed always replays the same session.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/engine"
	"solana-launch-trader/internal/execution"
	"solana-launch-trader/internal/logging"
	"solana-launch-trader/internal/market"
	"solana-launch-trader/internal/storage/memory"
)

func main() {
	waves := flag.Int("waves", 6, "Launch sweeps to replay")
	perWave := flag.Int("launches-per-wave", 3, "Tradable launches per sweep")
	exitTicks := flag.Int("exit-ticks", 6, "Exit rounds after each sweep")
	copyTrades := flag.Int("copy-trades", 2, "Smart-money buys to inject after the first sweep")
	seed := flag.Int64("seed", 1, "Seed for the market script and fill noise")
	failureRate := flag.Float64("failure-rate", 0, "Probability a simulated swap fails")
	balance := flag.Float64("balance", 10, "Starting balance in SOL")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	verbose := flag.Bool("v", false, "Stream engine logs while the session runs")
	flag.Parse()

	cli := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	if *waves <= 0 || *perWave <= 0 {
		cli.Fatal("--waves and --launches-per-wave must be positive")
	}
	if *failureRate < 0 || *failureRate >= 1 {
		cli.Fatal("--failure-rate must be within [0, 1)")
	}
	if *balance <= 0 {
		cli.Fatal("--balance must be positive")
	}

	logger := zap.NewNop()
	if *verbose {
		logger = logging.New(logging.Config{Level: "debug", Output: logging.OutputConsole})
	}
	defer logger.Sync()

	rng := rand.New(rand.NewSource(*seed))
	script := buildScript(rng, *waves, *perWave, *copyTrades)

	executor := execution.NewSimulated(execution.SimulatedOptions{
		Provider:           script.source,
		StartingBalanceSOL: *balance,
		FailureRate:        *failureRate,
		Seed:               *seed,
		Logger:             logger,
	})

	eng, err := engine.New(engine.Options{
		Config:    domain.DefaultTradingConfig(),
		Positions: memory.NewPositionStore(),
		Signals:   memory.NewSignalRecordStore(),
		Decisions: memory.NewDecisionLogStore(),
		Events:    memory.NewExitEventStore(),
		Wallets:   memory.NewSmartWalletStore(),
		Pending:   memory.NewPendingCopyTradeStore(),
		Launches:  script.source,
		Provider:  script.source,
		Executor:  executor,
		Logger:    logger,
		// A sub-millisecond backoff base makes failed swaps retry on the
		// next tick instead of waiting out a wall-clock delay.
		RetryBase: time.Nanosecond,
	})
	if err != nil {
		cli.Fatalf("engine init: %v", err)
	}

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		cli.Fatalf("engine start: %v", err)
	}
	defer eng.Stop()

	for _, w := range script.wallets {
		if err := eng.Governor().Enroll(ctx, w); err != nil {
			cli.Fatalf("enroll %s: %v", w.Address, err)
		}
	}

	rep := &report{Waves: *waves}

	for wave := 0; wave < *waves; wave++ {
		summary, err := eng.RunEvaluationTick(ctx)
		if err != nil {
			cli.Fatalf("evaluation sweep %d: %v", wave+1, err)
		}
		rep.Scanned += summary.Scanned
		rep.BuySignals += summary.Buys
		rep.Entered += summary.Entered

		if wave == 0 {
			for _, trade := range script.copies {
				res, err := eng.Governor().HandleTrade(ctx, trade)
				if err != nil {
					cli.Fatalf("copy trade %s: %v", trade.Mint, err)
				}
				rep.CopyResults = append(rep.CopyResults, copyResult{
					Wallet:  trade.Wallet,
					Mint:    trade.Mint,
					Outcome: res.Outcome,
					Reason:  res.Reason,
				})
			}
		}

		for tick := 0; tick < *exitTicks; tick++ {
			if err := eng.RunExitTick(ctx); err != nil {
				cli.Fatalf("exit tick: %v", err)
			}
		}
	}

	// Drain: terminal scripts repeat their last snapshot, so stragglers
	// get a fair chance to finish before the report.
	for tick := 0; tick < 2*(*exitTicks); tick++ {
		if err := eng.RunExitTick(ctx); err != nil {
			cli.Fatalf("exit tick: %v", err)
		}
	}

	rep.Stats, err = eng.Stats(ctx)
	if err != nil {
		cli.Fatalf("stats: %v", err)
	}
	rep.Positions, err = eng.AllPositions(ctx)
	if err != nil {
		cli.Fatalf("positions: %v", err)
	}
	rep.Rankings, err = eng.Learning().Rankings(ctx)
	if err != nil {
		cli.Fatalf("rankings: %v", err)
	}
	rep.FinalBalanceSOL, err = executor.WalletBalance(ctx)
	if err != nil {
		cli.Fatalf("balance: %v", err)
	}

	if *outputJSON {
		out, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			cli.Fatalf("marshal report: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	printReport(rep, *balance)
}

type copyResult struct {
	Wallet  string `json:"wallet"`
	Mint    string `json:"mint"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

type report struct {
	Waves           int                    `json:"waves"`
	Scanned         int                    `json:"scanned"`
	BuySignals      int                    `json:"buySignals"`
	Entered         int                    `json:"entered"`
	Stats           *domain.TradingStats   `json:"stats"`
	Positions       []*domain.Position     `json:"positions"`
	Rankings        []*domain.SignalRecord `json:"rankings"`
	CopyResults     []copyResult           `json:"copyResults,omitempty"`
	FinalBalanceSOL float64                `json:"finalBalanceSol"`
}

// script is the full prebuilt session: launch waves and per-mint price
// paths on the scripted source, plus smart-money trades to inject.
type script struct {
	source  *market.Scripted
	wallets []*domain.SmartWallet
	copies  []domain.ObservedTrade
}

// archetype is one market behavior: a price path in multiples of the
// launch price. thinVolumeFrom marks the level where 24h volume falls
// below the hold floor; -1 keeps volume healthy throughout.
type archetype struct {
	name           string
	levels         []float64
	thinVolumeFrom int
}

// The paths are shaped so each archetype terminates on a different exit
// rule once its final level repeats: runner walks the take-profit tiers,
// spike_fade arms the trailing stop and gives back the move, dump crosses
// the stop loss, fader stagnates until the decayed stop reaches zero, and
// steady just holds.
var archetypes = []archetype{
	{name: "runner", levels: []float64{1.0, 1.1, 1.3, 1.55, 1.7, 2.05, 2.4, 3.1, 3.3}, thinVolumeFrom: -1},
	{name: "spike_fade", levels: []float64{1.0, 1.2, 1.45, 1.18, 1.05}, thinVolumeFrom: -1},
	{name: "dump", levels: []float64{1.0, 0.95, 0.78, 0.55}, thinVolumeFrom: -1},
	{name: "fader", levels: []float64{1.0, 0.99, 0.97, 0.96, 0.94, 0.93}, thinVolumeFrom: 2},
	{name: "steady", levels: []float64{1.0, 1.02, 1.05, 1.08}, thinVolumeFrom: -1},
}

var tickerNames = []string{"MOON", "PUMP", "GIGA", "WAGMI", "FOMO", "DEGEN", "APED", "SHIP"}

func buildScript(rng *rand.Rand, waves, perWave, copyCount int) *script {
	s := &script{source: market.NewScripted()}
	n := 0

	for wave := 0; wave < waves; wave++ {
		launches := make([]*domain.LaunchSnapshot, 0, perWave+1)
		for i := 0; i < perWave; i++ {
			n++
			arch := archetypes[rng.Intn(len(archetypes))]
			launches = append(launches, s.addTradable(rng, n, arch))
		}
		// One deliberate screening failure per sweep keeps the decision
		// journal honest about skips.
		launches = append(launches, screenFailLaunch(rng, wave))
		s.source.AddLaunchWave(launches...)
	}

	for i := 0; i < copyCount; i++ {
		n++
		arch := archetypes[0] // runner
		if i%2 == 1 {
			arch = archetypes[2] // dump
		}
		launch := s.addTradable(rng, n, arch)
		s.wallets = append(s.wallets, &domain.SmartWallet{
			Address: walletAddress(i),
			Label:   fmt.Sprintf("sim-wallet-%d", i+1),
			WinRate: 0.6 + 0.05*float64(i%6),
		})
		s.copies = append(s.copies, domain.ObservedTrade{
			Wallet:     s.wallets[i].Address,
			Action:     domain.TradeActionBuy,
			Mint:       launch.Mint,
			Symbol:     launch.Symbol,
			AmountSOL:  0.3 + rng.Float64()*0.4,
			Price:      1, // informational; fills price off the snapshot script
			ObservedAt: time.Now().UnixMilli(),
		})
	}
	return s
}

// addTradable generates a launch that clears screening and scripts its
// price path. Each level is repeated a few times so the entry fill, the
// per-tick assessments, and the sell fills can all consume snapshots
// without skipping a stage.
func (s *script) addTradable(rng *rand.Rand, n int, arch archetype) *domain.LaunchSnapshot {
	mint := randomMint(rng)
	symbol := fmt.Sprintf("%s%d", tickerNames[rng.Intn(len(tickerNames))], n)
	basePrice := 0.0004 + rng.Float64()*0.0016
	liquidity := 3000 + rng.Float64()*5000
	volume := 30000 + rng.Float64()*50000
	holders := 40 + rng.Intn(160)
	now := time.Now().UnixMilli()

	launch := &domain.LaunchSnapshot{
		Mint:          mint,
		Symbol:        symbol,
		Name:          symbol + " (sim)",
		AgeSeconds:    int64(90 + rng.Intn(310)),
		MarketCap:     80000 + rng.Float64()*270000,
		Liquidity:     liquidity,
		Volume24h:     volume,
		BuyCount:      30 + rng.Intn(30),
		SellCount:     5 + rng.Intn(10),
		Holders:       holders,
		FeeRevenueSOL: 0.5 + rng.Float64()*4,
		ObservedAt:    now,
	}

	for idx, mult := range arch.levels {
		vol := volume
		if arch.thinVolumeFrom >= 0 && idx >= arch.thinVolumeFrom {
			vol = 250 + rng.Float64()*150
		}
		snap := &domain.MarketSnapshot{
			Mint:       mint,
			Price:      basePrice * mult,
			Liquidity:  liquidity * (0.9 + rng.Float64()*0.2),
			Volume24h:  vol,
			MarketCap:  launch.MarketCap * mult,
			BuyCount:   launch.BuyCount,
			SellCount:  launch.SellCount,
			Holders:    holders,
			ObservedAt: now,
		}
		repeats := 2 + rng.Intn(2)
		for r := 0; r < repeats; r++ {
			s.source.AddSnapshots(mint, snap)
		}
	}
	return launch
}

// screenFailLaunch rotates through the screening gates: too young, too
// small, too thin.
func screenFailLaunch(rng *rand.Rand, wave int) *domain.LaunchSnapshot {
	launch := &domain.LaunchSnapshot{
		Mint:       randomMint(rng),
		Symbol:     fmt.Sprintf("REJ%d", wave+1),
		Name:       "screen reject (sim)",
		AgeSeconds: 180,
		MarketCap:  120000,
		Liquidity:  4000,
		Volume24h:  40000,
		BuyCount:   35,
		SellCount:  10,
		Holders:    80,
		ObservedAt: time.Now().UnixMilli(),
	}
	switch wave % 3 {
	case 0:
		launch.AgeSeconds = 15
	case 1:
		launch.MarketCap = 20000
	default:
		launch.Liquidity = 400
	}
	return launch
}

func randomMint(rng *rand.Rand) string {
	var b [32]byte
	rng.Read(b[:])
	return base58.Encode(b[:])
}

// walletAddress returns the i-th multiple of the ed25519 base point, so
// every synthetic wallet passes the on-curve enrollment check.
func walletAddress(i int) string {
	point := edwards25519.NewGeneratorPoint()
	gen := edwards25519.NewGeneratorPoint()
	for k := 0; k < i; k++ {
		point = edwards25519.NewIdentityPoint().Add(point, gen)
	}
	return base58.Encode(point.Bytes())
}

func printReport(rep *report, startingBalance float64) {
	fmt.Println()
	fmt.Println("=== Simulation Result ===")
	fmt.Printf("Waves:             %d\n", rep.Waves)
	fmt.Printf("Launches scanned:  %d\n", rep.Scanned)
	fmt.Printf("Buy signals:       %d\n", rep.BuySignals)
	fmt.Printf("Entered:           %d\n", rep.Entered)
	fmt.Println()

	s := rep.Stats
	fmt.Println("Book:")
	fmt.Printf("  Open:            %d\n", s.OpenPositions)
	fmt.Printf("  Closed:          %d (%d wins / %d losses, win rate %.0f%%)\n",
		s.ClosedPositions, s.Wins, s.Losses, s.WinRate*100)
	fmt.Printf("  Realized PnL:    %+.4f SOL (avg %+.4f, best %+.4f, worst %+.4f)\n",
		s.TotalPnL, s.AvgPnL, s.BestTrade, s.WorstTrade)
	fmt.Printf("  Exposure:        %.4f SOL (%.4f via copies)\n", s.CurrentExposure, s.CopyExposure)
	fmt.Printf("  Balance:         %.4f SOL (started with %.4f)\n", rep.FinalBalanceSOL, startingBalance)
	fmt.Println()

	if len(rep.CopyResults) > 0 {
		fmt.Println("Copy trades:")
		for _, c := range rep.CopyResults {
			line := fmt.Sprintf("  %-10s %s", c.Outcome, c.Mint)
			if c.Reason != "" {
				line += " (" + c.Reason + ")"
			}
			fmt.Println(line)
		}
		fmt.Println()
	}

	fmt.Println("Positions:")
	for _, p := range rep.Positions {
		pnl := "open"
		if p.PnL != nil {
			pnl = fmt.Sprintf("%+.4f SOL", *p.PnL)
		}
		reason := p.ExitReason
		if reason == "" {
			reason = "-"
		}
		tag := ""
		if p.Source == domain.EntrySourceCopy {
			tag = "  [copy]"
		}
		fmt.Printf("  %-10s %-17s %-19s %s%s\n", p.Symbol, p.Status, reason, pnl, tag)
	}
	fmt.Println()

	fmt.Println("Signal rankings:")
	for _, r := range rep.Rankings {
		fmt.Printf("  %-22s trades %-3d winRate %.2f  adj %+.2f\n",
			r.Signal, r.Trades, r.WinRate, r.ScoreAdjustment)
	}
}
