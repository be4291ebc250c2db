package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category labels produced by the classifier.
const (
	CategoryCash    = "Cash & Liquidity"
	CategoryOther   = "Other"
	CategoryMisc    = "Other/Miscellaneous"
	CategoryIntlETF = "International Equity"
	CategoryETF     = "Equity ETFs"
	CategoryGrowth  = "Growth/Tech"
)

const (
	// TrendLength is the number of daily closes kept in a cached trend.
	TrendLength = 7
	// DateLayout is the wire format of purchase dates.
	DateLayout = "2006-01-02"

	placeholderMarkers = "$*"
)

// PortfolioPosition is one row of the portfolio table.
type PortfolioPosition struct {
	Ticker          string           `json:"ticker"`
	Shares          decimal.Decimal  `json:"shares"`
	PurchasePrice   decimal.Decimal  `json:"purchase_price"`
	PurchaseDate    *time.Time       `json:"purchase_date"`
	Category        *string          `json:"category"`
	CachedTrend     []float64        `json:"cached_trend"`
	CurrentPrice    *decimal.Decimal `json:"current_price"`
	LastUpdated     *time.Time       `json:"last_updated"`
	RefreshFailures int              `json:"refresh_failures"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CacheEntry returns the cache columns of the position.
func (p PortfolioPosition) CacheEntry() CacheEntry {
	entry := CacheEntry{
		Trend:           p.CachedTrend,
		LastUpdated:     p.LastUpdated,
		RefreshFailures: p.RefreshFailures,
	}
	if p.CurrentPrice != nil {
		entry.CurrentPrice = p.CurrentPrice.InexactFloat64()
	}
	if p.Category != nil {
		entry.Category = *p.Category
	}
	return entry
}

// CacheEntry is the market data cached alongside a position.
type CacheEntry struct {
	CurrentPrice    float64
	Category        string
	Trend           []float64
	LastUpdated     *time.Time // nil means never refreshed
	RefreshFailures int
}

// ImportedPosition is a position parsed from a brokerage export.
type ImportedPosition struct {
	Ticker        string
	Shares        decimal.Decimal
	PurchasePrice decimal.Decimal
	CurrentPrice  decimal.Decimal
}

// CleanTicker upper-cases a ticker and strips whitespace and placeholder markers.
func CleanTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	t = strings.Trim(t, placeholderMarkers)
	return strings.TrimSpace(t)
}

// CashTrend returns the flat trend reported for cash instruments.
func CashTrend() []float64 {
	trend := make([]float64, TrendLength)
	for i := range trend {
		trend[i] = 1.0
	}
	return trend
}
