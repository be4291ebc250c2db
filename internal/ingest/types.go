package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFile is returned when the upload has no header row.
	ErrEmptyFile = errors.New("file is empty")
	// ErrNoTickerColumn is returned when no header names a ticker column.
	ErrNoTickerColumn = errors.New("no Symbol or Ticker column found")
)

// Report is the outcome of one import.
type Report struct {
	// Processed counts rows upserted.
	Processed int
	// Inserted lists tickers that were not in the portfolio before.
	Inserted []string
	Skipped  []RowError
}

// RowError describes a data row that was skipped because it could not be
// parsed or stored.
type RowError struct {
	Line   int
	Ticker string
	Err    error
}

func (e RowError) Error() string {
	if e.Ticker == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d (%s): %v", e.Line, e.Ticker, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

type field int

const (
	fieldTicker field = iota
	fieldQuantity
	fieldCostPerShare
	fieldLastPrice
	fieldCurrentValue
	fieldTotalCost
)

// columnAliases lists the header names brokerages use for each field, in
// order of preference.
var columnAliases = map[field][]string{
	fieldTicker:       {"Symbol", "Ticker"},
	fieldQuantity:     {"Quantity", "Shares", "Qty"},
	fieldCostPerShare: {"Average Cost Basis", "Cost Basis Per Share", "Avg Cost", "Cost Basis"},
	fieldLastPrice:    {"Last Price", "Price", "Current Price"},
	fieldCurrentValue: {"Current Value", "Market Value"},
	fieldTotalCost:    {"Cost Basis Total", "Total Cost Basis"},
}

// sentinelTickers are header repeats and footers found in the ticker column.
var sentinelTickers = map[string]bool{
	"SYMBOL": true,
	"TOTAL":  true,
}
