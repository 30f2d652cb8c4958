package dispatch

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nexis84/Eve-Market-Bot/market"
)

const errGlyph = "❌"

var printer = message.NewPrinter(language.English)

// FormatISK renders an amount with thousands separators and two decimals.
func FormatISK(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatQuote renders a market reply. Prices are multiplied by qty; volumes are not.
func FormatQuote(item, hub string, qty int64, q market.Quote) string {
	prefix := item
	if qty > 1 {
		prefix = FormatCount(qty) + " x " + item
	}
	return fmt.Sprintf("%s in %s: %s | %s",
		prefix, hub,
		side("Sell", q.LowestSell, q.SellVolume, qty),
		side("Buy", q.HighestBuy, q.BuyVolume, qty))
}

func side(label string, price *float64, volume, qty int64) string {
	if price == nil {
		return label + " Unavailable"
	}
	return fmt.Sprintf("%s %s ISK (vol %s)", label, FormatISK(*price*float64(qty)), FormatCount(volume))
}

// errorf frames a user-facing failure with the error glyph on both ends.
func errorf(format string, args ...any) string {
	return errGlyph + " " + fmt.Sprintf(format, args...) + " " + errGlyph
}

func notFoundReply(item string, suggestions []string) string {
	if len(suggestions) == 0 {
		return errorf("No item found for %q.", item)
	}
	return errorf("No item found for %q. Did you mean: %s?", item, strings.Join(suggestions, ", "))
}

func ambiguousReply(item string) string {
	return errorf("%q matches several items, please be more specific.", item)
}

func unavailableReply(item string) string {
	return errorf("Market data for %q is temporarily unavailable, try again shortly.", item)
}

func fetchErrorReply(item string) string {
	return errorf("Error fetching market data for %q.", item)
}
