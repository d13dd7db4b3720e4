package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.dexscreener.com"
	DefaultTimeout     = 15 * time.Second
	DefaultSearchQuery = "SOL"

	solanaChainID = "solana"
)

// DexScreener implements Provider and LaunchSource over the public
// DexScreener HTTP API. Only SOL-quoted Solana pools are considered so
// priceNative is always SOL per token. Holder counts and creator fee
// revenue are not exposed by this API and come back zero.
type DexScreener struct {
	baseURL string
	query   string
	client  *http.Client
	logger  *zap.Logger
}

// Option configures DexScreener.
type Option func(*DexScreener)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(d *DexScreener) {
		d.baseURL = u
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *DexScreener) {
		d.client = client
	}
}

// WithSearchQuery sets the search term used by the launch sweep.
func WithSearchQuery(q string) Option {
	return func(d *DexScreener) {
		d.query = q
	}
}

// NewDexScreener creates a DexScreener adapter.
func NewDexScreener(logger *zap.Logger, opts ...Option) *DexScreener {
	d := &DexScreener{
		baseURL: DefaultBaseURL,
		query:   DefaultSearchQuery,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Snapshot fetches the current market view of a mint, taken from its
// deepest SOL-quoted pool. Returns ErrNoPairs when no such pool exists.
func (d *DexScreener) Snapshot(ctx context.Context, mint string) (*domain.MarketSnapshot, error) {
	var resp pairsResponse
	if err := d.get(ctx, "/latest/dex/tokens/"+mint, &resp); err != nil {
		return nil, err
	}

	best := deepestPair(resp.Pairs, mint)
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPairs, mint)
	}

	return &domain.MarketSnapshot{
		Mint:       mint,
		Price:      parseFloat(best.PriceNative),
		Liquidity:  best.Liquidity.Quote,
		Volume24h:  best.Volume.H24,
		MarketCap:  best.marketCapOrFDV(),
		BuyCount:   best.Txns.H24.Buys,
		SellCount:  best.Txns.H24.Sells,
		ObservedAt: time.Now().UnixMilli(),
	}, nil
}

// Launches sweeps the search endpoint for Solana pools and maps each mint's
// deepest pool to a LaunchSnapshot. Age filtering is the evaluator's job.
func (d *DexScreener) Launches(ctx context.Context) ([]*domain.LaunchSnapshot, error) {
	var resp pairsResponse
	if err := d.get(ctx, "/latest/dex/search?q="+url.QueryEscape(d.query), &resp); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()

	// One snapshot per mint, deepest pool wins.
	byMint := make(map[string]*pair)
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if !p.tradable() || p.PairCreatedAt <= 0 {
			continue
		}
		if prev, ok := byMint[p.BaseToken.Address]; ok && prev.Liquidity.USD >= p.Liquidity.USD {
			continue
		}
		byMint[p.BaseToken.Address] = p
	}

	out := make([]*domain.LaunchSnapshot, 0, len(byMint))
	for mint, p := range byMint {
		out = append(out, &domain.LaunchSnapshot{
			Mint:       mint,
			Symbol:     p.BaseToken.Symbol,
			Name:       p.BaseToken.Name,
			AgeSeconds: (now - p.PairCreatedAt) / 1000,
			MarketCap:  p.marketCapOrFDV(),
			Liquidity:  p.Liquidity.Quote,
			Volume24h:  p.Volume.H24,
			BuyCount:   p.Txns.H24.Buys,
			SellCount:  p.Txns.H24.Sells,
			ObservedAt: now,
		})
	}

	d.logger.Debug("launch sweep",
		zap.String("query", d.query),
		zap.Int("pairs", len(resp.Pairs)),
		zap.Int("mints", len(out)))
	return out, nil
}

func (d *DexScreener) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// deepestPair picks the SOL-quoted Solana pool with the most USD liquidity
// whose base token is the mint.
func deepestPair(pairs []pair, mint string) *pair {
	var best *pair
	for i := range pairs {
		p := &pairs[i]
		if !p.tradable() || p.BaseToken.Address != mint {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}

func parseFloat(val string) float64 {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return f
}

// DexScreener API wire format.

type pairsResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	ChainID       string       `json:"chainId"`
	PairAddress   string       `json:"pairAddress"`
	BaseToken     token        `json:"baseToken"`
	QuoteToken    token        `json:"quoteToken"`
	PriceNative   string       `json:"priceNative"`
	PriceUSD      string       `json:"priceUsd"`
	Txns          transactions `json:"txns"`
	Volume        volume       `json:"volume"`
	Liquidity     liquidity    `json:"liquidity"`
	FDV           float64      `json:"fdv"`
	MarketCap     float64      `json:"marketCap"`
	PairCreatedAt int64        `json:"pairCreatedAt"` // ms
}

func (p *pair) tradable() bool {
	return p.ChainID == solanaChainID && p.QuoteToken.Address == domain.WrappedSOLMint
}

// marketCapOrFDV prefers the circulating market cap, falling back to fully
// diluted valuation which is what most fresh launches report.
func (p *pair) marketCapOrFDV() float64 {
	if p.MarketCap > 0 {
		return p.MarketCap
	}
	return p.FDV
}

type token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type transactions struct {
	M5  buysSells `json:"m5"`
	H1  buysSells `json:"h1"`
	H24 buysSells `json:"h24"`
}

type buysSells struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type volume struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type liquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}
