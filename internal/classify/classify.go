// Package classify assigns portfolio categories and prices to tickers.
package classify

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mauv0809/portfolio-tracker/internal/marketdata"
	"github.com/mauv0809/portfolio-tracker/internal/models"
	"github.com/rs/zerolog"
)

// cashPattern matches money-market sweep symbols such as SPAXX or FDRXX**.
var cashPattern = regexp.MustCompile(`^[A-Z]{3}XX[$*]*$`)

// cashEquivalents are short-duration treasury and ultra-short bond ETFs.
var cashEquivalents = map[string]bool{
	"SGOV": true,
	"BIL":  true,
	"SHV":  true,
	"USFR": true,
	"TFLO": true,
	"JPST": true,
	"MINT": true,
	"ICSH": true,
	"BOXX": true,
	"VBIL": true,
}

var growthSectors = map[string]bool{
	"Technology":             true,
	"Communication Services": true,
	"Consumer Cyclical":      true,
}

// QuoteFetcher is the market data dependency of the classifier.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, ticker string) (*marketdata.Quote, error)
}

// Result is the price, category and trend assigned to a ticker.
type Result struct {
	Price    float64
	Category string
	Trend    []float64
	// Degraded is set when the quote lookup failed and defaults were used.
	Degraded bool
}

// IsCash reports whether the ticker follows the money-market naming convention.
func IsCash(ticker string) bool {
	return cashPattern.MatchString(strings.ToUpper(strings.TrimSpace(ticker)))
}

// Cash is the fixed result for money-market tickers.
func Cash() Result {
	return Result{Price: 1.0, Category: models.CategoryCash, Trend: models.CashTrend()}
}

// Unavailable is the result used when no quote could be fetched.
func Unavailable() Result {
	return Result{Price: 0.0, Category: models.CategoryOther, Trend: []float64{}, Degraded: true}
}

// Classifier looks up quotes and categorizes tickers.
type Classifier struct {
	quotes QuoteFetcher
	log    zerolog.Logger
}

// New creates a classifier backed by the given quote source.
func New(quotes QuoteFetcher, log zerolog.Logger) *Classifier {
	return &Classifier{
		quotes: quotes,
		log:    log.With().Str("component", "classifier").Logger(),
	}
}

// Classify never fails: lookup errors produce Unavailable().
func (c *Classifier) Classify(ctx context.Context, ticker string) Result {
	if IsCash(ticker) {
		return Cash()
	}

	quote, err := c.quotes.FetchQuote(ctx, ticker)
	if err != nil {
		event := c.log.Warn()
		if !errors.Is(err, marketdata.ErrDataUnavailable) {
			event = c.log.Error()
		}
		event.Err(err).Str("ticker", ticker).Msg("Quote lookup failed, using defaults")
		return Unavailable()
	}

	result := Categorize(ticker, quote)
	c.log.Info().
		Str("ticker", ticker).
		Float64("price", result.Price).
		Str("category", result.Category).
		Msg("Classified ticker")

	return result
}

// Categorize applies the category rules to a fetched quote. The first
// matching rule wins.
func Categorize(ticker string, quote *marketdata.Quote) Result {
	if IsCash(ticker) {
		return Cash()
	}
	if quote == nil {
		return Unavailable()
	}

	trend := quote.Trend
	if trend == nil {
		trend = []float64{}
	}
	result := Result{Price: quote.CurrentPrice, Trend: trend}

	if cashEquivalents[models.CleanTicker(ticker)] {
		result.Category = models.CategoryCash
		return result
	}

	var sector string
	switch inst := quote.Instrument.(type) {
	case marketdata.Fund:
		if inst.ETF {
			if inst.International || strings.Contains(quote.LongName, "International") {
				result.Category = models.CategoryIntlETF
			} else {
				result.Category = models.CategoryETF
			}
			return result
		}
		sector = inst.Sector
	case marketdata.Stock:
		sector = inst.Sector
	}

	result.Category = sectorCategory(sector)
	return result
}

func sectorCategory(sector string) string {
	switch {
	case growthSectors[sector]:
		return models.CategoryGrowth
	case sector != "":
		return sector
	}
	return models.CategoryMisc
}
