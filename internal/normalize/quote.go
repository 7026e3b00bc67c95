package normalize

import (
	"strings"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// Quote is a single-instrument price snapshot.
type Quote struct {
	Symbol        string   `json:"symbol"`
	Price         float64  `json:"price"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"changePercent"`
	PreviousClose *float64 `json:"previousClose,omitempty"`
	Open          *float64 `json:"open,omitempty"`
	High          *float64 `json:"high,omitempty"`
	Low           *float64 `json:"low,omitempty"`
	Volume        *float64 `json:"volume,omitempty"`
	Timestamp     string   `json:"timestamp,omitempty"`
}

// Alpha Vantage GLOBAL_QUOTE field labels.
const (
	quoteSymbol        = "01. symbol"
	quoteOpen          = "02. open"
	quoteHigh          = "03. high"
	quoteLow           = "04. low"
	quotePrice         = "05. price"
	quoteVolume        = "06. volume"
	quoteTradingDay    = "07. latest trading day"
	quotePreviousClose = "08. previous close"
	quoteChange        = "09. change"
	quoteChangePercent = "10. change percent"
)

// NormalizeQuote reads an Alpha Vantage "Global Quote" container.
// It returns nil when the container is missing.
func NormalizeQuote(data jsonvalue.Value) *Quote {
	quote, ok := data.Field(globalQuoteKey)
	if !ok || !quote.IsObject() {
		return nil
	}

	q := &Quote{
		Price:  quoteNumber(quote, quotePrice),
		Change: quoteNumber(quote, quoteChange),
	}
	if sym, ok := firstTruthy(quote, quoteSymbol); ok {
		q.Symbol = sym.String()
	}
	if pct, ok := quote.Field(quoteChangePercent); ok && pct.Truthy() {
		q.ChangePercent = ParseNumber(strings.Replace(pct.String(), "%", "", 1))
	}

	q.PreviousClose = optionalNumber(quote, quotePreviousClose)
	q.Open = optionalNumber(quote, quoteOpen)
	q.High = optionalNumber(quote, quoteHigh)
	q.Low = optionalNumber(quote, quoteLow)
	q.Volume = optionalNumber(quote, quoteVolume)

	if day, ok := quote.Field(quoteTradingDay); ok && day.Truthy() {
		q.Timestamp = day.String()
	}
	return q
}

func quoteNumber(quote jsonvalue.Value, key string) float64 {
	v, ok := firstTruthy(quote, key)
	if !ok {
		return 0
	}
	return toNumber(v)
}

func optionalNumber(quote jsonvalue.Value, key string) *float64 {
	v, ok := firstTruthy(quote, key)
	if !ok {
		return nil
	}
	n := toNumber(v)
	return &n
}
