// Package portfolio implements the operations behind the portfolio routes.
package portfolio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mauv0809/portfolio-tracker/internal/cache"
	"github.com/mauv0809/portfolio-tracker/internal/ingest"
	"github.com/mauv0809/portfolio-tracker/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Validation messages returned to clients.
const (
	MsgMissingTickerOrShares = "Missing ticker or shares."
	MsgTickerRequired        = "Ticker required."
)

var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// ValidationError is a missing or invalid request field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Store is the persistence used by the service.
type Store interface {
	ListPositions(ctx context.Context) ([]models.PortfolioPosition, error)
	GetPosition(ctx context.Context, ticker string) (*models.PortfolioPosition, error)
	InsertPosition(ctx context.Context, pos models.PortfolioPosition) error
	UpdatePosition(ctx context.Context, pos models.PortfolioPosition) error
	DeletePosition(ctx context.Context, ticker string) (bool, error)
	CountPositions(ctx context.Context) (int, error)
}

// Cache serves market data for positions.
type Cache interface {
	Resolve(ctx context.Context, ticker string, entry models.CacheEntry) (cache.Result, error)
	Refresh(ctx context.Context, ticker string) (cache.Result, error)
}

// Importer loads positions from a brokerage export.
type Importer interface {
	Import(ctx context.Context, r io.Reader) (*ingest.Report, error)
}

// Holding is a position enriched with market data.
type Holding struct {
	Ticker       string    `json:"ticker"`
	Shares       float64   `json:"shares"`
	PriceBought  float64   `json:"price_bought"`
	DateAdded    *string   `json:"date_added"`
	GainLoss     float64   `json:"gain_loss"`
	Category     string    `json:"category"`
	Trend        []float64 `json:"trend_data"`
	CurrentPrice float64   `json:"current_price"`
}

// PositionInput is the body of add and update requests.
type PositionInput struct {
	Ticker        string          `json:"ticker"`
	Shares        decimal.Decimal `json:"shares"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  string          `json:"purchase_date"`
}

// Service coordinates the store, the cache and the importer.
type Service struct {
	store    Store
	cache    Cache
	importer Importer
	log      zerolog.Logger
}

// NewService creates a portfolio service.
func NewService(store Store, marketCache Cache, importer Importer, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		cache:    marketCache,
		importer: importer,
		log:      log.With().Str("component", "portfolio").Logger(),
	}
}

// List returns every position with current market data. A position whose
// market data cannot be resolved is left out.
func (s *Service) List(ctx context.Context) ([]Holding, error) {
	positions, err := s.store.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}

	holdings := make([]Holding, 0, len(positions))
	for _, pos := range positions {
		result, err := s.cache.Resolve(ctx, pos.Ticker, pos.CacheEntry())
		if err != nil {
			s.log.Error().Err(err).Str("ticker", pos.Ticker).Msg("Skipping position")
			continue
		}
		s.log.Debug().Str("ticker", pos.Ticker).Bool("cached", result.Cached).Msg("Resolved market data")
		holdings = append(holdings, newHolding(pos, result))
	}

	return holdings, nil
}

// Get returns one position with current market data.
func (s *Service) Get(ctx context.Context, ticker string) (*Holding, error) {
	ticker = models.CleanTicker(ticker)
	if ticker == "" {
		return nil, &ValidationError{Message: MsgTickerRequired}
	}

	pos, err := s.store.GetPosition(ctx, ticker)
	if err != nil {
		return nil, err
	}
	result, err := s.cache.Resolve(ctx, pos.Ticker, pos.CacheEntry())
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", pos.Ticker, err)
	}
	s.log.Debug().Str("ticker", pos.Ticker).Bool("cached", result.Cached).Msg("Resolved market data")

	h := newHolding(*pos, result)
	return &h, nil
}

func newHolding(pos models.PortfolioPosition, result cache.Result) Holding {
	h := Holding{
		Ticker:       pos.Ticker,
		Shares:       pos.Shares.InexactFloat64(),
		PriceBought:  pos.PurchasePrice.InexactFloat64(),
		GainLoss:     GainLoss(result.Price, pos.PurchasePrice, pos.Shares),
		Category:     result.Category,
		Trend:        result.Trend,
		CurrentPrice: result.Price,
	}
	if h.Trend == nil {
		h.Trend = []float64{}
	}
	if pos.PurchaseDate != nil {
		date := pos.PurchaseDate.Format(models.DateLayout)
		h.DateAdded = &date
	}
	return h
}

// GainLoss is (current - purchase) * shares rounded to cents.
func GainLoss(currentPrice float64, purchasePrice, shares decimal.Decimal) float64 {
	return decimal.NewFromFloat(currentPrice).
		Sub(purchasePrice).
		Mul(shares).
		Round(2).
		InexactFloat64()
}

// Add stores a new position and primes its market data.
func (s *Service) Add(ctx context.Context, in PositionInput) error {
	pos, err := in.position()
	if err != nil {
		return err
	}
	if pos.Ticker == "" || !pos.Shares.IsPositive() {
		return &ValidationError{Message: MsgMissingTickerOrShares}
	}

	if err := s.store.InsertPosition(ctx, pos); err != nil {
		return err
	}
	s.log.Info().Str("ticker", pos.Ticker).Str("shares", pos.Shares.String()).Msg("Position added")

	if _, err := s.cache.Refresh(ctx, pos.Ticker); err != nil {
		s.log.Warn().Err(err).Str("ticker", pos.Ticker).Msg("Failed to prime cache")
	}
	return nil
}

// Update replaces the holdings of an existing position.
func (s *Service) Update(ctx context.Context, in PositionInput) error {
	pos, err := in.position()
	if err != nil {
		return err
	}
	if pos.Ticker == "" {
		return &ValidationError{Message: MsgTickerRequired}
	}
	if pos.Shares.IsNegative() {
		return &ValidationError{Message: "Shares must not be negative."}
	}

	if err := s.store.UpdatePosition(ctx, pos); err != nil {
		return err
	}
	s.log.Info().Str("ticker", pos.Ticker).Msg("Position updated")
	return nil
}

// Delete removes a position. Removing an unknown ticker succeeds.
func (s *Service) Delete(ctx context.Context, ticker string) error {
	ticker = models.CleanTicker(ticker)
	if ticker == "" {
		return &ValidationError{Message: MsgTickerRequired}
	}

	deleted, err := s.store.DeletePosition(ctx, ticker)
	if err != nil {
		return err
	}
	s.log.Info().Str("ticker", ticker).Bool("existed", deleted).Msg("Position deleted")
	return nil
}

// Count returns the number of stored positions.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.CountPositions(ctx)
}

// Import loads a brokerage export.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ingest.Report, error) {
	return s.importer.Import(ctx, r)
}

func (in PositionInput) position() (models.PortfolioPosition, error) {
	pos := models.PortfolioPosition{
		Ticker:        models.CleanTicker(in.Ticker),
		Shares:        in.Shares,
		PurchasePrice: in.PurchasePrice,
	}
	if pos.PurchasePrice.IsNegative() {
		return pos, &ValidationError{Message: "Purchase price must not be negative."}
	}

	date := strings.TrimSpace(in.PurchaseDate)
	if date == "" {
		return pos, nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, date); err == nil {
			day := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			pos.PurchaseDate = &day
			return pos, nil
		}
	}
	return pos, &ValidationError{Message: "Invalid purchase_date, expected YYYY-MM-DD."}
}
