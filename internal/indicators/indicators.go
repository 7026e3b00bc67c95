// Package indicators computes chart overlays and summary statistics over
// normalized price series.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a series of closing prices.
type Summary struct {
	Count         int     `json:"count"`
	First         float64 `json:"first"`
	Last          float64 `json:"last"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"stdDev"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// Summarize returns the zero Summary for an empty series.
func Summarize(closes []float64) Summary {
	if len(closes) == 0 {
		return Summary{}
	}

	s := Summary{
		Count: len(closes),
		First: closes[0],
		Last:  closes[len(closes)-1],
		Min:   floats.Min(closes),
		Max:   floats.Max(closes),
		Mean:  stat.Mean(closes, nil),
	}
	if len(closes) > 1 {
		s.StdDev = stat.StdDev(closes, nil)
	}
	s.Change = s.Last - s.First
	if s.First != 0 {
		s.ChangePercent = s.Change / s.First * 100
	}
	return s
}

// SMA returns the simple moving average aligned with closes. Positions
// before the first full window are nil.
func SMA(closes []float64, period int) []*float64 {
	if period < 2 || len(closes) < period {
		return make([]*float64, len(closes))
	}
	return align(talib.Sma(closes, period), period-1)
}

// EMA returns the exponential moving average aligned with closes, seeded
// with the SMA of the first window.
func EMA(closes []float64, period int) []*float64 {
	if period < 2 || len(closes) < period {
		return make([]*float64, len(closes))
	}
	return align(talib.Ema(closes, period), period-1)
}

// RSI returns the latest Relative Strength Index, or nil with fewer than
// period+1 closes.
func RSI(closes []float64, period int) *float64 {
	if period < 2 || len(closes) < period+1 {
		return nil
	}

	rsi := talib.Rsi(closes, period)
	if len(rsi) == 0 || math.IsNaN(rsi[len(rsi)-1]) {
		return nil
	}
	last := rsi[len(rsi)-1]
	return &last
}

func align(values []float64, lookback int) []*float64 {
	out := make([]*float64, len(values))
	for i := lookback; i < len(values); i++ {
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}
