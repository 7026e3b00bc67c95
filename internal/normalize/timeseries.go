package normalize

import (
	"sort"
	"strings"
	"time"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// Point is one OHLCV sample.
type Point struct {
	Time      string   `json:"time"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	Volume    *float64 `json:"volume,omitempty"`
}

// Closes returns the close prices in series order.
func Closes(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}

var (
	openKeys   = []string{"1. open", "open", "o"}
	highKeys   = []string{"2. high", "high", "h"}
	lowKeys    = []string{"3. low", "low", "l"}
	closeKeys  = []string{"4. close", "close", "c"}
	volumeKeys = []string{"5. volume", "volume", "v"}
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp reads a date key as UTC epoch milliseconds, 0 when unparseable.
func ParseTimestamp(key string) int64 {
	key = strings.TrimSpace(key)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, key, time.UTC); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// NormalizeTimeSeries finds the first top-level object whose key names a time
// series (or is itself a date) and converts its date-keyed rows into points,
// ascending by timestamp.
func NormalizeTimeSeries(data jsonvalue.Value) []Point {
	for _, f := range data.Fields() {
		if !f.Value.IsObject() {
			continue
		}
		if strings.Contains(f.Key, "Time Series") || IsDateKey(f.Key) {
			return seriesFromRows(f.Value)
		}
	}
	return []Point{}
}

// ExtractTimeSeries picks the series extraction suited to the detected format.
// For formats without a native series, fieldPath may point at a date-keyed
// object inside the payload.
func ExtractTimeSeries(data jsonvalue.Value, fieldPath string) []Point {
	switch DetectFormat(data) {
	case FormatAlphaVantageIntraday, FormatAlphaVantageDaily:
		return NormalizeTimeSeries(data)
	case FormatTimeSeries:
		return seriesFromRows(data)
	}

	if fieldPath == "" {
		return []Point{}
	}
	v, ok := GetValueByPath(data, fieldPath)
	if !ok || !v.IsObject() {
		return []Point{}
	}
	return seriesFromRows(v)
}

// seriesFromRows maps date-keyed entries of rows to points. Object rows read
// OHLCV by label or alias; a bare number sets open, high, low and close.
func seriesFromRows(rows jsonvalue.Value) []Point {
	points := []Point{}
	for _, f := range rows.Fields() {
		if !IsDateKey(f.Key) {
			continue
		}

		p := Point{Time: f.Key, Timestamp: ParseTimestamp(f.Key)}
		switch f.Value.Kind() {
		case jsonvalue.Object:
			p.Open = aliasNumber(f.Value, openKeys)
			p.High = aliasNumber(f.Value, highKeys)
			p.Low = aliasNumber(f.Value, lowKeys)
			p.Close = aliasNumber(f.Value, closeKeys)
			vol := aliasNumber(f.Value, volumeKeys)
			p.Volume = &vol
		case jsonvalue.Number:
			n := toNumber(f.Value)
			p.Open, p.High, p.Low, p.Close = n, n, n, n
		default:
			continue
		}
		points = append(points, p)
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Timestamp != points[j].Timestamp {
			return points[i].Timestamp < points[j].Timestamp
		}
		return points[i].Time < points[j].Time
	})
	return points
}

func aliasNumber(row jsonvalue.Value, keys []string) float64 {
	v, ok := firstTruthy(row, keys...)
	if !ok {
		return 0
	}
	return toNumber(v)
}
