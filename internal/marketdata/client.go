// Package marketdata fetches quotes, instrument metadata and short price
// histories from the Yahoo Finance query API.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mauv0809/portfolio-tracker/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 2 // requests per second

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Client is a rate-limited client for the quote and chart endpoints.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout bounds a whole FetchQuote call.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log.With().Str("client", "marketdata").Logger()
	}
}

// NewClient creates a new market data client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-200 answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quote API returned status %d (endpoint: %s): %s", e.StatusCode, e.Endpoint, e.Body)
}

// FetchQuote returns price, instrument metadata and the recent trend for a
// ticker. Any failure to resolve the instrument wraps ErrDataUnavailable.
// A failed trend request alone is logged and yields an empty trend.
func (c *Client) FetchQuote(ctx context.Context, ticker string) (*Quote, error) {
	symbol := NormalizeTicker(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrDataUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := c.fetchQuoteInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, symbol, err)
	}

	trend, err := c.fetchTrend(ctx, symbol)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Trend unavailable")
		trend = []float64{}
	}

	price := info.price()
	if price <= 0 && len(trend) > 0 {
		price = trend[len(trend)-1]
	}

	c.log.Debug().
		Str("symbol", symbol).
		Float64("price", price).
		Str("quote_type", info.QuoteType).
		Int("trend_points", len(trend)).
		Msg("Fetched quote")

	return &Quote{
		Symbol:       symbol,
		CurrentPrice: price,
		Instrument:   info.toInstrument(),
		LongName:     info.name(),
		Trend:        trend,
	}, nil
}

// fetchQuoteInfo calls the v7 quote endpoint for a single symbol.
func (c *Client) fetchQuoteInfo(ctx context.Context, symbol string) (*quoteResult, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("fields", "symbol,quoteType,longName,shortName,sector,currentPrice,regularMarketPrice")

	var resp quoteResponse
	if err := c.get(ctx, "/v7/finance/quote", params, &resp); err != nil {
		return nil, err
	}

	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote API error: %v", resp.QuoteResponse.Error)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data returned for symbol %s", symbol)
	}

	return &resp.QuoteResponse.Result[0], nil
}

// fetchTrend returns the last TrendLength daily closes, oldest first.
// Null closes are kept as 0 so the series length matches the bar count.
func (c *Client) fetchTrend(ctx context.Context, symbol string) ([]float64, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "1mo")

	var resp chartResponse
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %v", resp.Chart.Error)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return []float64{}, nil
	}

	closes := resp.Chart.Result[0].Indicators.Quote[0].Close
	if len(closes) > models.TrendLength {
		closes = closes[len(closes)-models.TrendLength:]
	}

	trend := make([]float64, len(closes))
	for i, v := range closes {
		if v != nil {
			trend[i] = *v
		}
	}

	return trend, nil
}

// get performs a rate-limited GET request and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body), Endpoint: path}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	return nil
}
