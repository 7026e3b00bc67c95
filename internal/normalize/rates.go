package normalize

import "github.com/aaanmmoool/finboard/internal/jsonvalue"

// CurrencyRate is a base currency with its conversion rates.
type CurrencyRate struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	Timestamp string             `json:"timestamp,omitempty"`
}

// NormalizeCoinbaseRate reads a Coinbase exchange-rates payload
// ({"data": {"currency": ..., "rates": {...}}}). Rate strings become floats.
func NormalizeCoinbaseRate(data jsonvalue.Value) *CurrencyRate {
	rates, ok := data.Get("data.rates")
	if !ok || !rates.Truthy() {
		return nil
	}

	out := &CurrencyRate{Rates: ratesMap(rates)}
	if cur, ok := data.Get("data.currency"); ok && cur.Truthy() {
		out.Base = cur.String()
	}
	return out
}

// NormalizeForexRate reads a {"base", "rates", "date"} payload.
func NormalizeForexRate(data jsonvalue.Value) *CurrencyRate {
	rates, ok := data.Field("rates")
	if !ok || !rates.IsObject() {
		return nil
	}

	out := &CurrencyRate{Rates: ratesMap(rates)}
	if base, ok := data.Field("base"); ok && base.Truthy() {
		out.Base = base.String()
	}
	if date, ok := data.Field("date"); ok && date.Truthy() {
		out.Timestamp = date.String()
	}
	return out
}

func ratesMap(rates jsonvalue.Value) map[string]float64 {
	out := make(map[string]float64, rates.Len())
	for _, f := range rates.Fields() {
		out[f.Key] = toNumber(f.Value)
	}
	return out
}
