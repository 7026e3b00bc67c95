// Package normalize classifies arbitrary API responses and turns them into
// display primitives: quotes, OHLCV time series and currency rate maps.
//
// Upstream shapes are untrusted. Nothing in this package returns an error for
// an unexpected shape; callers get nil, an empty slice or a partial result.
package normalize

import (
	"regexp"
	"strings"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// Format is the structural family of a response.
type Format string

const (
	FormatAlphaVantageQuote    Format = "alpha_vantage_quote"
	FormatAlphaVantageIntraday Format = "alpha_vantage_intraday"
	FormatAlphaVantageDaily    Format = "alpha_vantage_daily"
	FormatCoinbase             Format = "coinbase"
	FormatForex                Format = "forex"
	FormatTimeSeries           Format = "time_series"
	FormatGeneric              Format = "generic"
)

const (
	globalQuoteKey = "Global Quote"
	dailySeriesKey = "Time Series (Daily)"
)

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// IsDateKey reports whether key starts with a YYYY-MM-DD date.
func IsDateKey(key string) bool {
	return datePrefix.MatchString(key)
}

func isIntradayKey(key string) bool {
	return strings.Contains(key, "Time Series (") && strings.Contains(key, "min)")
}

// DetectFormat classifies data by its top-level keys. Rules are checked in
// precedence order and the first match wins.
func DetectFormat(data jsonvalue.Value) Format {
	if !data.IsObject() {
		return FormatGeneric
	}
	keys := data.Keys()

	if data.Has(globalQuoteKey) {
		return FormatAlphaVantageQuote
	}

	for _, k := range keys {
		if isIntradayKey(k) {
			return FormatAlphaVantageIntraday
		}
	}

	if data.Has(dailySeriesKey) {
		return FormatAlphaVantageDaily
	}

	if inner, ok := data.Field("data"); ok && inner.IsObject() {
		rates, _ := inner.Field("rates")
		currency, _ := inner.Field("currency")
		if rates.Truthy() && currency.Truthy() {
			return FormatCoinbase
		}
	}

	if data.Has("base") && data.Has("rates") {
		return FormatForex
	}

	for _, k := range keys {
		if IsDateKey(k) {
			return FormatTimeSeries
		}
	}

	return FormatGeneric
}
