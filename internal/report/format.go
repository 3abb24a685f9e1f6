package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Locale selects thousands and decimal separators
type Locale struct {
	Thousands byte
	Decimal   byte
}

var (
	// LocaleES uses dot thousands and comma decimals: 1.234,50
	LocaleES = Locale{Thousands: '.', Decimal: ','}
	// LocaleEN uses comma thousands and dot decimals: 1,234.50
	LocaleEN = Locale{Thousands: ',', Decimal: '.'}
)

// ParseLocale defaults to LocaleES
func ParseLocale(s string) Locale {
	if strings.EqualFold(strings.TrimSpace(s), "en") {
		return LocaleEN
	}
	return LocaleES
}

// formatLocaleFloat formats v with grouped thousands.
// When the fractional part is zero after rounding, the decimal part is omitted.
// Example (es): 1234.5 (2 decimals) => "1.234,50"; 1000.0 => "1.000".
func formatLocaleFloat(v float64, decimals int, loc Locale) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if decimals < 0 {
		decimals = 0
	}

	factor := math.Pow(10, float64(decimals))
	scaled := math.Round(v * factor)
	intPart := int64(scaled) / int64(factor)
	fracPart := int64(scaled) % int64(factor)

	s := groupThousands(strconv.FormatInt(intPart, 10), loc.Thousands)

	prefix := ""
	if neg && scaled != 0 {
		prefix = "-"
	}
	if decimals == 0 || fracPart == 0 {
		return prefix + s
	}

	fracStr := strconv.FormatInt(fracPart, 10)
	for len(fracStr) < decimals {
		fracStr = "0" + fracStr
	}
	return fmt.Sprintf("%s%s%c%s", prefix, s, loc.Decimal, fracStr)
}

func groupThousands(s string, sep byte) string {
	if len(s) <= 3 {
		return s
	}
	var buf []byte
	count := 0
	for i := len(s) - 1; i >= 0; i-- {
		buf = append(buf, s[i])
		count++
		if count == 3 && i != 0 {
			buf = append(buf, sep)
			count = 0
		}
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

func (g *Generator) money(d decimal.Decimal) string {
	return formatLocaleFloat(d.Round(2).InexactFloat64(), 2, g.locale)
}

func (g *Generator) number(v float64) string {
	return formatLocaleFloat(v, 2, g.locale)
}

func (g *Generator) percent(v float64) string {
	return formatLocaleFloat(v, 1, g.locale) + "%"
}

func (g *Generator) growth(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return g.percent(*v * 100)
}

// days renders days of stock; nil means unbounded
func (g *Generator) days(v *float64) string {
	if v == nil {
		return "∞"
	}
	return formatLocaleFloat(*v, 1, g.locale)
}
