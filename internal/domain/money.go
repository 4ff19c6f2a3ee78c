package domain

import (
	"strconv"

	"github.com/Rhymond/go-money"
)

// FormatUSD renders a dollar amount as "$1,234.56".
func FormatUSD(amount float64) string {
	return money.New(AmountToCents(amount), money.USD).Display()
}

// FormatPercent renders a fraction as a percentage with one decimal ("35.0%").
func FormatPercent(fraction float64) string {
	return strconv.FormatFloat(fraction*100, 'f', 1, 64) + "%"
}
