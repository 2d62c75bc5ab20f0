package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/ethflow-bot/internal/format"
	"github.com/kjannette/ethflow-bot/internal/logging"
	"github.com/kjannette/ethflow-bot/internal/models"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	DefaultAsset        = "ethereum"
	DefaultPriceTTL     = 300 * time.Second
)

// ErrMissingField marks a response that lacks a field the report needs.
var ErrMissingField = errors.New("missing field")

// UpstreamError is returned when the price API is unreachable or malformed.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("coingecko %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type CoinGeckoOptions struct {
	BaseURL  string
	APIKey   string
	Asset    string
	CacheTTL time.Duration
	Timeout  time.Duration
	Now      func() time.Time
	Logger   logrus.FieldLogger
}

type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	asset      string
	httpClient *http.Client
	cache      *SnapshotCache
	now        func() time.Time
	log        *logrus.Entry
}

func NewCoinGeckoClient(opts CoinGeckoOptions) *CoinGeckoClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCoinGeckoURL
	}
	if opts.Asset == "" {
		opts.Asset = DefaultAsset
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CoinGeckoClient{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		asset:      opts.Asset,
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      NewSnapshotCache(opts.CacheTTL, opts.Now),
		now:        opts.Now,
		log:        logging.Component(opts.Logger, "coingecko"),
	}
}

// GetPriceAndVolume returns price, 24h volume, 24h price change and the
// volume change against the previous daily point. Results and failures are
// both cached, so a failing upstream is not hit again until the TTL expires.
func (c *CoinGeckoClient) GetPriceAndVolume(ctx context.Context) (*models.PriceSnapshot, error) {
	if res, ok := c.cache.Get(); ok {
		c.log.WithField("age", c.cache.Age().Round(time.Second)).Debug("using cached price snapshot")
		return res.Snapshot, res.Err
	}

	snap, err := c.fetch(ctx)
	if err != nil {
		// A caller that gave up says nothing about the upstream.
		if ctx.Err() != nil {
			c.log.WithError(err).Debug("price fetch abandoned by caller")
			return nil, err
		}
		c.cache.Put(nil, err)
		c.log.WithError(err).Warn("price fetch failed")
		return nil, err
	}
	c.cache.Put(snap, nil)

	c.log.WithFields(logrus.Fields{
		"price":  snap.Price,
		"volume": snap.Volume24h,
	}).Info("price snapshot fetched")
	return snap, nil
}

func (c *CoinGeckoClient) fetch(ctx context.Context) (*models.PriceSnapshot, error) {
	var coin struct {
		MarketData *struct {
			CurrentPrice             map[string]*float64 `json:"current_price"`
			TotalVolume              map[string]*float64 `json:"total_volume"`
			PriceChangePercentage24h *float64            `json:"price_change_percentage_24h"`
		} `json:"market_data"`
	}
	q := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"market_data":    {"true"},
		"community_data": {"false"},
		"developer_data": {"false"},
		"sparkline":      {"false"},
	}
	if err := c.getJSON(ctx, "/coins/"+c.asset, q, &coin); err != nil {
		return nil, &UpstreamError{Op: "coin", Err: err}
	}
	if coin.MarketData == nil {
		return nil, &UpstreamError{Op: "coin", Err: fmt.Errorf("%w: market_data", ErrMissingField)}
	}
	price := coin.MarketData.CurrentPrice["usd"]
	volume := coin.MarketData.TotalVolume["usd"]
	change := coin.MarketData.PriceChangePercentage24h
	switch {
	case price == nil:
		return nil, &UpstreamError{Op: "coin", Err: fmt.Errorf("%w: market_data.current_price.usd", ErrMissingField)}
	case volume == nil:
		return nil, &UpstreamError{Op: "coin", Err: fmt.Errorf("%w: market_data.total_volume.usd", ErrMissingField)}
	case change == nil:
		return nil, &UpstreamError{Op: "coin", Err: fmt.Errorf("%w: market_data.price_change_percentage_24h", ErrMissingField)}
	}

	var chart struct {
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	q = url.Values{
		"vs_currency": {"usd"},
		"days":        {"2"},
		"interval":    {"daily"},
	}
	if err := c.getJSON(ctx, "/coins/"+c.asset+"/market_chart", q, &chart); err != nil {
		return nil, &UpstreamError{Op: "market_chart", Err: err}
	}

	var prev *float64
	if n := len(chart.TotalVolumes); n >= 2 && len(chart.TotalVolumes[n-2]) >= 2 {
		prev = &chart.TotalVolumes[n-2][1]
	}

	return &models.PriceSnapshot{
		Price:             *price,
		Volume24h:         *volume,
		PriceChangePct24h: *change,
		VolumeChangePct:   format.PercentDelta(volume, prev),
		FetchedAt:         c.now(),
	}, nil
}

func (c *CoinGeckoClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
