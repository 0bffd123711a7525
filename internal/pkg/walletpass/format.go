package walletpass

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const DefaultColor = "#10b981"

// FormatMoney renders an amount held in minor units the way the locale writes
// it, e.g. 150000 KRW in ko-KR becomes "₩150,000".
func FormatMoney(minor int64, currencyCode, locale string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode)))
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", currencyCode, err)
	}

	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	scale, _ := currency.Standard.Rounding(unit)
	major := float64(minor) / math.Pow10(scale)

	p := message.NewPrinter(tag)
	symbol := p.Sprint(currency.Symbol(unit))
	amount := p.Sprint(number.Decimal(major, number.Scale(scale)))

	if major < 0 {
		return "-" + symbol + strings.TrimPrefix(amount, "-"), nil
	}
	return symbol + amount, nil
}

// HexToRGB converts "#rrggbb" (or "rrggbb", or "#rgb") to the "rgb(r, g, b)"
// notation PassKit expects. ok is false for anything else.
func HexToRGB(hex string) (string, bool) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return "", false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", v>>16&0xff, v>>8&0xff, v&0xff), true
}

// NormalizeHexColor returns the colour in "#rrggbb" form or DefaultColor when
// the input cannot be parsed.
func NormalizeHexColor(hex string) string {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return DefaultColor
	}
	if _, err := strconv.ParseUint(h, 16, 32); err != nil {
		return DefaultColor
	}
	return "#" + strings.ToLower(h)
}
