package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCleanTicker(t *testing.T) {
	cases := map[string]string{
		" aapl ":  "AAPL",
		"SPAXX**": "SPAXX",
		"$msft":   "MSFT",
		"brk.b":   "BRK.B",
		"":        "",
		"  *  ":   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanTicker(in), "input %q", in)
	}
}

func TestCashTrend(t *testing.T) {
	trend := CashTrend()
	assert.Len(t, trend, TrendLength)
	for _, v := range trend {
		assert.Equal(t, 1.0, v)
	}
}

func TestPortfolioPosition_CacheEntry(t *testing.T) {
	now := time.Now()
	price := decimal.NewFromFloat(120.5)
	category := "Growth/Tech"

	pos := PortfolioPosition{
		Ticker:          "AAPL",
		CurrentPrice:    &price,
		Category:        &category,
		CachedTrend:     []float64{1, 2, 3},
		LastUpdated:     &now,
		RefreshFailures: 2,
	}

	entry := pos.CacheEntry()
	assert.Equal(t, 120.5, entry.CurrentPrice)
	assert.Equal(t, "Growth/Tech", entry.Category)
	assert.Equal(t, []float64{1, 2, 3}, entry.Trend)
	assert.Equal(t, &now, entry.LastUpdated)
	assert.Equal(t, 2, entry.RefreshFailures)
}

func TestPortfolioPosition_CacheEntryNeverRefreshed(t *testing.T) {
	entry := PortfolioPosition{Ticker: "NEW"}.CacheEntry()
	assert.Zero(t, entry.CurrentPrice)
	assert.Empty(t, entry.Category)
	assert.Nil(t, entry.LastUpdated)
}
