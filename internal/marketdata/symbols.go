package marketdata

import (
	"regexp"
	"strings"

	"github.com/mauv0809/portfolio-tracker/internal/models"
)

// symbolAliases maps brokerage spellings that carry no separator.
var symbolAliases = map[string]string{
	"BRKA": "BRK-A",
	"BRKB": "BRK-B",
	"BFA":  "BF-A",
	"BFB":  "BF-B",
}

// shareClassPattern matches a root symbol followed by a separated class letter,
// e.g. BRK.B, BRK/B or BRK B.
var shareClassPattern = regexp.MustCompile(`^([A-Z]{1,5})[./ ]([A-Z])$`)

// NormalizeTicker converts a brokerage symbol to the form the quote provider
// understands.
//
// Examples:
// brk.b -> BRK-B
// BRK/B -> BRK-B
// BRKB  -> BRK-B
// AAPL* -> AAPL
func NormalizeTicker(ticker string) string {
	symbol := models.CleanTicker(ticker)

	if alias, ok := symbolAliases[symbol]; ok {
		return alias
	}

	if m := shareClassPattern.FindStringSubmatch(symbol); m != nil {
		return m[1] + "-" + m[2]
	}

	return strings.ReplaceAll(symbol, " ", "")
}
