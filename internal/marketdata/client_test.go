package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeYahoo serves canned quote and chart payloads keyed by symbol.
type fakeYahoo struct {
	quotes map[string]string
	charts map[string]string
	calls  int
}

func (f *fakeYahoo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls++
	switch {
	case r.URL.Path == "/v7/finance/quote":
		body, ok := f.quotes[r.URL.Query().Get("symbols")]
		if !ok {
			http.Error(w, `{"finance":{"error":"Not Found"}}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/"):
		body, ok := f.charts[strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithRateLimit(1000), WithTimeout(2*time.Second))
}

func TestFetchQuote_StockWithTrend(t *testing.T) {
	fake := &fakeYahoo{
		quotes: map[string]string{
			"AAPL": `{"quoteResponse":{"result":[{"symbol":"AAPL","quoteType":"EQUITY","longName":"Apple Inc.","sector":"Technology","currentPrice":190.5}],"error":null}}`,
		},
		charts: map[string]string{
			"AAPL": `{"chart":{"result":[{"timestamp":[1,2,3,4,5,6,7,8,9],"indicators":{"quote":[{"close":[1,2,3,184,185,null,187,188,189]}]}}],"error":null}}`,
		},
	}
	client := newTestClient(t, fake)

	quote, err := client.FetchQuote(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 190.5, quote.CurrentPrice)
	assert.Equal(t, Stock{Sector: "Technology"}, quote.Instrument)
	assert.Equal(t, TypeStock, quote.Instrument.Type())
	assert.Equal(t, "Apple Inc.", quote.LongName)
	assert.Equal(t, []float64{3, 184, 185, 0, 187, 188, 189}, quote.Trend)
}

func TestFetchQuote_PriceFallsBackToTrend(t *testing.T) {
	fake := &fakeYahoo{
		quotes: map[string]string{
			"VXUS": `{"quoteResponse":{"result":[{"symbol":"VXUS","quoteType":"ETF","longName":"Vanguard Total International Stock Index Fund ETF"}],"error":null}}`,
		},
		charts: map[string]string{
			"VXUS": `{"chart":{"result":[{"indicators":{"quote":[{"close":[60.1,60.2,61.5]}]}}],"error":null}}`,
		},
	}
	client := newTestClient(t, fake)

	quote, err := client.FetchQuote(context.Background(), "VXUS")
	require.NoError(t, err)

	assert.Equal(t, 61.5, quote.CurrentPrice)
	assert.Equal(t, Fund{ETF: true, International: true}, quote.Instrument)
	assert.Equal(t, TypeETF, quote.Instrument.Type())
}

func TestFetchQuote_ChartFailureKeepsQuote(t *testing.T) {
	fake := &fakeYahoo{
		quotes: map[string]string{
			"XOM": `{"quoteResponse":{"result":[{"symbol":"XOM","quoteType":"EQUITY","sector":"Energy","regularMarketPrice":110}],"error":null}}`,
		},
	}
	client := newTestClient(t, fake)

	quote, err := client.FetchQuote(context.Background(), "XOM")
	require.NoError(t, err)

	assert.Equal(t, 110.0, quote.CurrentPrice)
	assert.Empty(t, quote.Trend)
	assert.NotNil(t, quote.Trend)
}

func TestFetchQuote_UnknownTicker(t *testing.T) {
	client := newTestClient(t, &fakeYahoo{})

	_, err := client.FetchQuote(context.Background(), "ZZZZZ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestFetchQuote_EmptyResult(t *testing.T) {
	fake := &fakeYahoo{
		quotes: map[string]string{
			"GONE": `{"quoteResponse":{"result":[],"error":null}}`,
		},
	}
	client := newTestClient(t, fake)

	_, err := client.FetchQuote(context.Background(), "GONE")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestFetchQuote_EmptyTickerNoRequest(t *testing.T) {
	fake := &fakeYahoo{}
	client := newTestClient(t, fake)

	_, err := client.FetchQuote(context.Background(), " $* ")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Zero(t, fake.calls)
}

func TestFetchQuote_Timeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(slow)
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.FetchQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchQuote_NormalizesShareClass(t *testing.T) {
	fake := &fakeYahoo{
		quotes: map[string]string{
			"BRK-B": `{"quoteResponse":{"result":[{"symbol":"BRK-B","quoteType":"EQUITY","sector":"Financial Services","currentPrice":410}],"error":null}}`,
		},
		charts: map[string]string{
			"BRK-B": `{"chart":{"result":[],"error":null}}`,
		},
	}
	client := newTestClient(t, fake)

	quote, err := client.FetchQuote(context.Background(), "BRK.B")
	require.NoError(t, err)
	assert.Equal(t, "BRK-B", quote.Symbol)
	assert.Equal(t, Stock{Sector: "Financial Services"}, quote.Instrument)
}

func TestNormalizeTicker(t *testing.T) {
	cases := map[string]string{
		"aapl":    "AAPL",
		"BRK.B":   "BRK-B",
		"brk/b":   "BRK-B",
		"BRK B":   "BRK-B",
		"BRKB":    "BRK-B",
		"BF.B*":   "BF-B",
		"$MSFT":   "MSFT",
		"SPAXX**": "SPAXX",
		"RDS.AS":  "RDS.AS",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTicker(in), "input %q", in)
	}
}

func TestQuoteResult_Instrument(t *testing.T) {
	assert.Equal(t, Unknown{}, quoteResult{}.toInstrument())
	assert.Equal(t, Stock{}, quoteResult{QuoteType: "EQUITY"}.toInstrument())
	assert.Equal(t, Fund{}, quoteResult{QuoteType: "MUTUALFUND", LongName: "Vanguard 500"}.toInstrument())
	assert.Equal(t, Fund{ETF: true}, quoteResult{QuoteType: "ETF", LongName: "SPDR S&P 500"}.toInstrument())
	assert.Equal(t, Fund{Sector: "Technology"}, quoteResult{QuoteType: "MUTUALFUND", Sector: "Technology"}.toInstrument())
	assert.Equal(t, Stock{Sector: "Utilities"}, quoteResult{Sector: "Utilities"}.toInstrument())
}
