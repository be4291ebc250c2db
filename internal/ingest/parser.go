package ingest

import (
	"errors"
	"strings"

	"github.com/mauv0809/portfolio-tracker/internal/classify"
	"github.com/mauv0809/portfolio-tracker/internal/models"
	"github.com/shopspring/decimal"
)

var errSkipRow = errors.New("not a position row")

var one = decimal.NewFromInt(1)

// columnIndex maps each known field to its position in a row.
type columnIndex map[field]int

// buildColumnIndex resolves header names to fields. Matching ignores case and
// surrounding whitespace; the first alias present wins.
func buildColumnIndex(header []string) columnIndex {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := byName[key]; !seen {
			byName[key] = i
		}
	}

	idx := make(columnIndex, len(columnAliases))
	for f, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := byName[strings.ToLower(alias)]; ok {
				idx[f] = i
				break
			}
		}
	}
	return idx
}

// getString safely extracts a trimmed cell.
func (idx columnIndex) getString(row []string, f field) string {
	i, ok := idx[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// has reports whether the cell holds a value rather than a placeholder.
func (idx columnIndex) has(row []string, f field) bool {
	return !isPlaceholder(idx.getString(row, f))
}

// getDecimal extracts a cleaned number, defaulting to zero.
func (idx columnIndex) getDecimal(row []string, f field) decimal.Decimal {
	return parseNumber(idx.getString(row, f))
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "--", "-", "n/a", "na":
		return true
	}
	return false
}

// parseNumber parses a brokerage-formatted amount such as "$1,234.50",
// "+12.3" or "(45.00)". Placeholders and unparseable text yield zero.
func parseNumber(s string) decimal.Decimal {
	if isPlaceholder(s) {
		return decimal.Zero
	}

	negative := false
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '\t', '\u00a0':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(s, "+")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}

// parseRow turns one data row into a position. Rows that are not
// positions return errSkipRow.
func parseRow(idx columnIndex, row []string) (models.ImportedPosition, error) {
	ticker := models.CleanTicker(idx.getString(row, fieldTicker))
	if ticker == "" || sentinelTickers[ticker] || strings.Contains(ticker, "PENDING") {
		return models.ImportedPosition{}, errSkipRow
	}

	pos := models.ImportedPosition{Ticker: ticker}
	rawQuantity := idx.getString(row, fieldQuantity)

	if classify.IsCash(ticker) || isPlaceholder(rawQuantity) {
		pos.CurrentPrice = one
		if !isPlaceholder(rawQuantity) {
			pos.Shares = parseNumber(rawQuantity)
		} else {
			// Cash sweeps report a dollar value instead of a quantity.
			pos.Shares = idx.getDecimal(row, fieldCurrentValue)
		}
		pos.PurchasePrice = idx.getDecimal(row, fieldCostPerShare)
		return pos, nil
	}

	pos.Shares = parseNumber(rawQuantity)
	pos.CurrentPrice = idx.getDecimal(row, fieldLastPrice)
	pos.PurchasePrice = idx.getDecimal(row, fieldCostPerShare)

	if !idx.has(row, fieldCostPerShare) && idx.has(row, fieldTotalCost) && pos.Shares.IsPositive() {
		pos.PurchasePrice = idx.getDecimal(row, fieldTotalCost).DivRound(pos.Shares, 4)
	}

	return pos, nil
}
