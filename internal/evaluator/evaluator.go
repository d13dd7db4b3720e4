package evaluator

import (
	"sort"
	"strings"

	"solana-launch-trader/internal/domain"
)

// ScoreThreshold is the minimum adjusted score required to buy.
const ScoreThreshold = 60.0

const scoreCeiling = 100.0

// Prime and secondary launch-age windows for the timing bucket, in seconds.
// Inside the prime window momentum is usually established but the crowd is
// not yet in; the secondary band on either side still earns partial credit.
const (
	primeWindowMinSec     = 120
	primeWindowMaxSec     = 600
	secondaryWindowMinSec = 60
	secondaryWindowMaxSec = 900
)

// AdjustmentSource supplies the learned score adjustment for a signal tag.
// Zero is the neutral answer for tags with no history.
type AdjustmentSource interface {
	Adjustment(signal string) float64
}

// Evaluator scores launch snapshots. Pure: no clock, no stores, no side
// effects. The caller journals the decision and decides whether to enter.
type Evaluator struct{}

// NewEvaluator creates a new launch evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// bucket couples one score contribution with the signal tag it argues for.
type bucket struct {
	tag    string
	points float64
}

// Evaluate applies the hard filters and the weighted score to one snapshot.
// Any red flag vetoes the buy regardless of score. The two dominant buckets
// become the entry-reason tags, and each tag's learned adjustment moves the
// score before the threshold check.
func (e *Evaluator) Evaluate(snap *domain.LaunchSnapshot, cfg *domain.TradingConfig, adj AdjustmentSource) *domain.LaunchDecision {
	redFlags := hardFilters(snap, cfg)
	buckets := scoreBuckets(snap, cfg)

	score := 0.0
	for _, b := range buckets {
		score += b.points
	}

	tags := dominantTags(buckets, 2)
	if adj != nil {
		for _, tag := range tags {
			score += adj.Adjustment(tag)
		}
	}
	score = clamp(score, 0, scoreCeiling)

	shouldBuy := score >= ScoreThreshold && len(redFlags) == 0

	var size float64
	if shouldBuy {
		size = suggestedSize(score, cfg)
	}

	return &domain.LaunchDecision{
		Mint:         snap.Mint,
		Symbol:       snap.Symbol,
		Source:       domain.EntrySourceLaunch,
		Score:        score,
		RedFlags:     redFlags,
		EntryReason:  strings.Join(tags, "+"),
		ShouldBuy:    shouldBuy,
		SuggestedSOL: size,
		EvaluatedAt:  snap.ObservedAt,
	}
}

// hardFilters returns the red flags for a snapshot. Each filter is
// independent; all failures are reported, not just the first.
func hardFilters(snap *domain.LaunchSnapshot, cfg *domain.TradingConfig) []string {
	var flags []string
	if snap.AgeSeconds < int64(cfg.MinLaunchAgeSeconds) {
		flags = append(flags, domain.RedFlagTooNew)
	}
	if snap.AgeSeconds > int64(cfg.MaxLaunchAgeSeconds) {
		flags = append(flags, domain.RedFlagTooOld)
	}
	if snap.Liquidity < cfg.MinLiquidity {
		flags = append(flags, domain.RedFlagLowLiquidity)
	}
	if snap.MarketCap < cfg.MinMarketCap {
		flags = append(flags, domain.RedFlagLowMarketCap)
	}
	return flags
}

// scoreBuckets computes every bucket in its fixed order. The order doubles
// as the tie-break when picking dominant tags.
func scoreBuckets(snap *domain.LaunchSnapshot, cfg *domain.TradingConfig) []bucket {
	return []bucket{
		{domain.SignalHighLiquidity, liquidityPoints(snap.Liquidity)},
		{domain.SignalVolumeSurge, volumePoints(snap.Volume24h)},
		{domain.SignalBuyPressure, ratioPoints(snap.BuySellRatio(), cfg.MinBuySellRatio)},
		{domain.SignalHolderGrowth, holderPoints(snap.Holders)},
		{domain.SignalFeeTraction, feePoints(snap.FeeRevenueSOL)},
		{domain.SignalEarlyWindow, agePoints(snap.AgeSeconds, cfg)},
	}
}

// liquidityPoints caps at 20. Anything that survived the hard filter still
// earns the floor tier.
func liquidityPoints(liquidity float64) float64 {
	switch {
	case liquidity >= 25000:
		return 20
	case liquidity >= 10000:
		return 16
	case liquidity >= 5000:
		return 12
	case liquidity >= 2500:
		return 8
	default:
		return 4
	}
}

// volumePoints caps at 20.
func volumePoints(volume float64) float64 {
	switch {
	case volume >= 50000:
		return 20
	case volume >= 20000:
		return 15
	case volume >= 5000:
		return 10
	case volume >= 1000:
		return 5
	default:
		return 0
	}
}

// ratioPoints caps at 20. Ratios below the configured floor earn nothing,
// whatever rung they would otherwise hit.
func ratioPoints(ratio, minRatio float64) float64 {
	if ratio < minRatio {
		return 0
	}
	switch {
	case ratio >= 0.8:
		return 20
	case ratio >= 0.7:
		return 15
	case ratio >= 0.6:
		return 10
	case ratio >= 0.5:
		return 5
	default:
		return 0
	}
}

// holderPoints caps at 15.
func holderPoints(holders int) float64 {
	switch {
	case holders >= 100:
		return 15
	case holders >= 50:
		return 12
	case holders >= 25:
		return 8
	case holders >= 10:
		return 4
	default:
		return 0
	}
}

// feePoints caps at 10. Fee revenue in SOL is the strongest organic-interest
// signal the snapshot carries.
func feePoints(feeSOL float64) float64 {
	switch {
	case feeSOL >= 10:
		return 10
	case feeSOL >= 2:
		return 6
	case feeSOL >= 0.5:
		return 3
	default:
		return 0
	}
}

// agePoints caps at 15: full credit inside the prime window, partial in the
// secondary band, floor credit anywhere else the config allows.
func agePoints(ageSeconds int64, cfg *domain.TradingConfig) float64 {
	switch {
	case ageSeconds >= primeWindowMinSec && ageSeconds <= primeWindowMaxSec:
		return 15
	case ageSeconds >= secondaryWindowMinSec && ageSeconds <= secondaryWindowMaxSec:
		return 8
	case ageSeconds >= int64(cfg.MinLaunchAgeSeconds) && ageSeconds <= int64(cfg.MaxLaunchAgeSeconds):
		return 4
	default:
		return 0
	}
}

// dominantTags returns the tags of the n highest-scoring buckets. The fixed
// bucket order breaks ties so the same snapshot always yields the same
// entry reason.
func dominantTags(buckets []bucket, n int) []string {
	idx := make([]int, len(buckets))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return buckets[idx[a]].points > buckets[idx[b]].points
	})

	if n > len(idx) {
		n = len(idx)
	}
	tags := make([]string, 0, n)
	for _, i := range idx[:n] {
		tags = append(tags, buckets[i].tag)
	}
	return tags
}

// suggestedSize interpolates position size from score: the threshold maps
// to the minimum size, a perfect score to the maximum.
func suggestedSize(score float64, cfg *domain.TradingConfig) float64 {
	frac := (score - ScoreThreshold) / (scoreCeiling - ScoreThreshold)
	size := cfg.MinPositionSize + frac*(cfg.MaxPositionSize-cfg.MinPositionSize)
	return clamp(size, cfg.MinPositionSize, cfg.MaxPositionSize)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
