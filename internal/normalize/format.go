package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// Placeholder shown for missing or non-finite values.
const Placeholder = "-"

// FormatDisplayValue renders a value for a card or table cell.
func FormatDisplayValue(v jsonvalue.Value) string {
	switch v.Kind() {
	case jsonvalue.Null:
		return Placeholder
	case jsonvalue.Number:
		n, _ := v.Number()
		return formatDisplayNumber(n)
	case jsonvalue.Bool:
		if b, _ := v.Bool(); b {
			return "Yes"
		}
		return "No"
	case jsonvalue.Array:
		return fmt.Sprintf("[%d items]", v.Len())
	case jsonvalue.Object:
		return "{...}"
	}
	return v.String()
}

func formatDisplayNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Placeholder
	}

	abs := math.Abs(n)
	switch {
	case abs >= 1e6:
		return strconv.FormatFloat(n/1e6, 'f', 2, 64) + "M"
	case abs >= 1000:
		// Printers keep per-call state, so one per call.
		p := message.NewPrinter(language.AmericanEnglish)
		return p.Sprint(number.Decimal(n, number.MaxFractionDigits(3)))
	case n != math.Trunc(n):
		if abs < 1 {
			return strconv.FormatFloat(n, 'f', 6, 64)
		}
		return strconv.FormatFloat(n, 'f', 2, 64)
	case n == 0:
		return "0"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FormatPercentage renders a signed percentage, e.g. "+1.25%".
func FormatPercentage(value float64, decimals int) string {
	sign := ""
	if value >= 0 {
		sign = "+"
	}
	return sign + strconv.FormatFloat(value, 'f', decimals, 64) + "%"
}

// FormatVolume abbreviates large volumes with B, M or K.
func FormatVolume(value float64) string {
	switch {
	case value >= 1e9:
		return strconv.FormatFloat(value/1e9, 'f', 2, 64) + "B"
	case value >= 1e6:
		return strconv.FormatFloat(value/1e6, 'f', 2, 64) + "M"
	case value >= 1e3:
		return strconv.FormatFloat(value/1e3, 'f', 2, 64) + "K"
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// FormatNumber groups thousands and fixes the number of decimals.
func FormatNumber(value float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	return humanize.FormatFloat("#,###."+strings.Repeat("#", decimals), value)
}

// ParsePercentage reads "+1.25%" as 1.25.
func ParsePercentage(s string) float64 {
	s = strings.Replace(s, "%", "", 1)
	s = strings.Replace(s, "+", "", 1)
	return ParseNumber(s)
}
