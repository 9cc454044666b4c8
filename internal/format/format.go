// Package format renders amounts and times for receipts and notifications.
package format

import (
	"math"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Money formats an amount held in the currency's minor unit (won for KRW,
// cents for USD). Unknown codes fall back to plain grouping.
func Money(amount int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return printer.Sprintf("%d %s", amount, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	sym := printer.Sprint(currency.Symbol(unit))
	if scale == 0 {
		return printer.Sprintf("%s%d", sym, amount)
	}
	v := float64(amount) / math.Pow10(scale)
	return printer.Sprintf("%s%.*f", sym, scale, v)
}

// Relative renders t against now as "just now", "5 minutes ago", "in 2 hours".
func Relative(t, now time.Time) string {
	d := now.Sub(t)
	future := d < 0
	if future {
		d = -d
	}
	var n int
	var unit string
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		n, unit = int(d/time.Minute), "minute"
	case d < 24*time.Hour:
		n, unit = int(d/time.Hour), "hour"
	default:
		n, unit = int(d/(24*time.Hour)), "day"
	}
	if n != 1 {
		unit += "s"
	}
	if future {
		return printer.Sprintf("in %d %s", n, unit)
	}
	return printer.Sprintf("%d %s ago", n, unit)
}

// Date is the receipt date format.
func Date(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 UTC") }
