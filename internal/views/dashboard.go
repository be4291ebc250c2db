// Package views renders the HTML pages served by the app.
package views

//go:generate templ generate

import (
	"strconv"
	"strings"

	"github.com/mauv0809/portfolio-tracker/internal/portfolio"
)

const (
	sparkWidth  = 120
	sparkHeight = 28
)

// sparkPoints scales the trend into polyline points within the sparkline box.
func sparkPoints(trend []float64) string {
	if len(trend) < 2 {
		return ""
	}

	lo, hi := trend[0], trend[0]
	for _, v := range trend {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	points := make([]string, len(trend))
	step := float64(sparkWidth) / float64(len(trend)-1)
	for i, v := range trend {
		x := float64(i) * step
		y := sparkHeight - (v-lo)/span*sparkHeight
		points[i] = strconv.FormatFloat(x, 'f', 1, 64) + "," + strconv.FormatFloat(y, 'f', 1, 64)
	}
	return strings.Join(points, " ")
}

func trendStroke(trend []float64) string {
	if len(trend) > 0 && trend[len(trend)-1] < trend[0] {
		return "#b42318"
	}
	return "#0e7c3a"
}

func totalGain(holdings []portfolio.Holding) float64 {
	var total float64
	for _, h := range holdings {
		total += h.GainLoss
	}
	return total
}

func dateAdded(h portfolio.Holding) string {
	if h.DateAdded == nil {
		return ""
	}
	return *h.DateAdded
}

func gainClass(v float64) string {
	if v < 0 {
		return "loss"
	}
	return "gain"
}

func formatMoney(v float64) string {
	if v < 0 {
		return "-$" + formatNumber(-v, 2)
	}
	return "$" + formatNumber(v, 2)
}

func formatNumber(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if prec > 2 && strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
