package marketdata

import (
	"errors"
	"strings"
)

// ErrDataUnavailable is wrapped by every error FetchQuote returns. Callers
// are expected to recover from it with default values.
var ErrDataUnavailable = errors.New("market data unavailable")

// InstrumentType is the coarse kind of a quoted instrument.
type InstrumentType string

const (
	TypeStock   InstrumentType = "STOCK"
	TypeETF     InstrumentType = "ETF"
	TypeUnknown InstrumentType = "UNKNOWN"
)

// Instrument is one of Stock, Fund or Unknown.
type Instrument interface {
	Type() InstrumentType
	instrument()
}

// Stock is an individual equity.
type Stock struct {
	Sector string
}

// Fund is a pooled vehicle. ETF is false for mutual funds, which may
// carry a sector.
type Fund struct {
	ETF           bool
	International bool
	Sector        string
}

// Unknown is an instrument the provider did not describe.
type Unknown struct{}

func (Stock) Type() InstrumentType { return TypeStock }

func (f Fund) Type() InstrumentType {
	if f.ETF {
		return TypeETF
	}
	return TypeUnknown
}

func (Unknown) Type() InstrumentType { return TypeUnknown }

func (Stock) instrument()   {}
func (Fund) instrument()    {}
func (Unknown) instrument() {}

// Quote is the market data known for a ticker.
type Quote struct {
	Symbol       string
	CurrentPrice float64
	Instrument   Instrument
	LongName     string
	Trend        []float64 // oldest first, at most 7 points
}

// quoteResponse is the v7 quote endpoint payload.
type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  interface{}   `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol             string   `json:"symbol"`
	QuoteType          string   `json:"quoteType"`
	LongName           string   `json:"longName"`
	ShortName          string   `json:"shortName"`
	Sector             string   `json:"sector"`
	CurrentPrice       *float64 `json:"currentPrice"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
}

// price prefers currentPrice and falls back to regularMarketPrice.
func (r quoteResult) price() float64 {
	if r.CurrentPrice != nil && *r.CurrentPrice > 0 {
		return *r.CurrentPrice
	}
	if r.RegularMarketPrice != nil && *r.RegularMarketPrice > 0 {
		return *r.RegularMarketPrice
	}
	return 0
}

func (r quoteResult) name() string {
	if r.LongName != "" {
		return r.LongName
	}
	return r.ShortName
}

// toInstrument maps the loosely typed quote fields to an Instrument.
func (r quoteResult) toInstrument() Instrument {
	switch strings.ToUpper(r.QuoteType) {
	case "ETF":
		return Fund{ETF: true, International: strings.Contains(r.name(), "International")}
	case "MUTUALFUND":
		return Fund{International: strings.Contains(r.name(), "International"), Sector: r.Sector}
	}
	if r.Sector != "" {
		return Stock{Sector: r.Sector}
	}
	if strings.EqualFold(r.QuoteType, "EQUITY") {
		return Stock{}
	}
	return Unknown{}
}

// chartResponse is the v8 chart endpoint payload. Closes are pointers
// because the provider emits null for missing bars.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}
