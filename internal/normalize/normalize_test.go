package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

func mustParse(t *testing.T, s string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Format
	}{
		{"global quote", `{"Global Quote": {}}`, FormatAlphaVantageQuote},
		{"quote wins over forex", `{"base": "USD", "rates": {}, "Global Quote": {"01. symbol": "IBM"}}`, FormatAlphaVantageQuote},
		{"intraday", `{"Meta Data": {}, "Time Series (5min)": {}}`, FormatAlphaVantageIntraday},
		{"daily", `{"Meta Data": {}, "Time Series (Daily)": {}}`, FormatAlphaVantageDaily},
		{"weekly is not daily", `{"Weekly Time Series": {}}`, FormatGeneric},
		{"coinbase", `{"data": {"currency": "BTC", "rates": {"USD": "1"}}}`, FormatCoinbase},
		{"coinbase needs currency", `{"data": {"rates": {"USD": "1"}}}`, FormatGeneric},
		{"forex", `{"base": "USD", "date": "2024-01-01", "rates": {"EUR": 0.9}}`, FormatForex},
		{"date keyed", `{"2024-01-01": {"close": 1}, "2024-01-02": 2}`, FormatTimeSeries},
		{"date with time", `{"2024-01-01 10:00:00": 1}`, FormatTimeSeries},
		{"generic", `{"price": 1}`, FormatGeneric},
		{"array", `[1, 2]`, FormatGeneric},
		{"scalar", `42`, FormatGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectFormat(mustParse(t, tt.input)))
		})
	}
}

func TestNormalizeQuote(t *testing.T) {
	data := mustParse(t, `{"Global Quote": {"01. symbol": "IBM", "05. price": "150.00", "09. change": "-1.25", "10. change percent": "-0.82%"}}`)

	q := NormalizeQuote(data)
	require.NotNil(t, q)
	assert.Equal(t, &Quote{Symbol: "IBM", Price: 150, Change: -1.25, ChangePercent: -0.82}, q)
}

func TestNormalizeQuote_FullPayload(t *testing.T) {
	data := mustParse(t, `{"Global Quote": {
		"01. symbol": "MSFT", "02. open": "410.1", "03. high": "415.5", "04. low": "409.0",
		"05. price": "414.2", "06. volume": "18000000", "07. latest trading day": "2024-03-01",
		"08. previous close": "411.0", "09. change": "3.2", "10. change percent": "0.7786%"}}`)

	q := NormalizeQuote(data)
	require.NotNil(t, q)
	require.NotNil(t, q.Open)
	require.NotNil(t, q.Volume)
	require.NotNil(t, q.PreviousClose)
	assert.Equal(t, 410.1, *q.Open)
	assert.Equal(t, 18000000.0, *q.Volume)
	assert.Equal(t, 411.0, *q.PreviousClose)
	assert.Equal(t, "2024-03-01", q.Timestamp)
	assert.InDelta(t, 0.7786, q.ChangePercent, 1e-9)
}

func TestNormalizeQuote_Missing(t *testing.T) {
	assert.Nil(t, NormalizeQuote(mustParse(t, `{"Note": "rate limited"}`)))
	assert.Nil(t, NormalizeQuote(mustParse(t, `{"Global Quote": "oops"}`)))
}

func TestNormalizeTimeSeries_Ordering(t *testing.T) {
	data := mustParse(t, `{"Time Series (Daily)": {
		"2024-01-02": {"1. open": "2", "2. high": "3", "3. low": "1", "4. close": "2.5", "5. volume": "100"},
		"2024-01-01": {"1. open": "1", "2. high": "2", "3. low": "0.5", "4. close": "1.5", "5. volume": "50"}}}`)

	points := NormalizeTimeSeries(data)
	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-01", points[0].Time)
	assert.Equal(t, "2024-01-02", points[1].Time)
	assert.Less(t, points[0].Timestamp, points[1].Timestamp)
	assert.Equal(t, 1.5, points[0].Close)
	require.NotNil(t, points[1].Volume)
	assert.Equal(t, 100.0, *points[1].Volume)
}

func TestNormalizeTimeSeries_AliasesAndBadNumbers(t *testing.T) {
	data := mustParse(t, `{"Meta Data": {"1. Information": "x"}, "Time Series (5min)": {
		"2024-01-01 10:05:00": {"o": 1, "h": "2", "l": "bad", "c": 1.5},
		"2024-01-01 10:00:00": {"open": "0.9", "close": "1.0"},
		"note": {"open": 7}}}`)

	points := NormalizeTimeSeries(data)
	require.Len(t, points, 2, "non-date rows are skipped")

	assert.Equal(t, "2024-01-01 10:00:00", points[0].Time)
	assert.Equal(t, 0.9, points[0].Open)
	assert.Equal(t, 0.0, points[0].High)

	assert.Equal(t, 1.0, points[1].Open)
	assert.Equal(t, 2.0, points[1].High)
	assert.Equal(t, 0.0, points[1].Low)
	assert.Equal(t, 1.5, points[1].Close)
}

func TestNormalizeTimeSeries_NoSeries(t *testing.T) {
	assert.Empty(t, NormalizeTimeSeries(mustParse(t, `{"price": 1}`)))
	assert.Empty(t, NormalizeTimeSeries(mustParse(t, `[1, 2, 3]`)))
}

func TestExtractTimeSeries(t *testing.T) {
	t.Run("top-level dates", func(t *testing.T) {
		data := mustParse(t, `{"2024-01-03": 3, "2024-01-01": {"close": "1"}, "meta": "skip"}`)
		points := ExtractTimeSeries(data, "")
		require.Len(t, points, 2)
		assert.Equal(t, "2024-01-01", points[0].Time)
		assert.Equal(t, 3.0, points[1].Open)
		assert.Equal(t, 3.0, points[1].Close)
		assert.Nil(t, points[1].Volume)
	})

	t.Run("generic with field path", func(t *testing.T) {
		data := mustParse(t, `{"result": {"history": {"2024-02-02": {"c": 5}, "2024-02-01": {"c": 4}}}}`)
		points := ExtractTimeSeries(data, "result.history")
		require.Len(t, points, 2)
		assert.Equal(t, []float64{4, 5}, Closes(points))
	})

	t.Run("generic without path", func(t *testing.T) {
		data := mustParse(t, `{"result": {}}`)
		assert.Empty(t, ExtractTimeSeries(data, ""))
		assert.Empty(t, ExtractTimeSeries(data, "result.missing"))
	})
}

func TestNormalizeRates(t *testing.T) {
	cb := NormalizeCoinbaseRate(mustParse(t, `{"data": {"currency": "BTC", "rates": {"USD": "50000.12", "EUR": "46000"}}}`))
	require.NotNil(t, cb)
	assert.Equal(t, "BTC", cb.Base)
	assert.Equal(t, map[string]float64{"USD": 50000.12, "EUR": 46000}, cb.Rates)

	assert.Nil(t, NormalizeCoinbaseRate(mustParse(t, `{"data": {}}`)))

	fx := NormalizeForexRate(mustParse(t, `{"base": "USD", "date": "2024-01-01", "rates": {"EUR": 0.91, "INR": 83.2}}`))
	require.NotNil(t, fx)
	assert.Equal(t, "USD", fx.Base)
	assert.Equal(t, "2024-01-01", fx.Timestamp)
	assert.Equal(t, 83.2, fx.Rates["INR"])

	assert.Nil(t, NormalizeForexRate(mustParse(t, `{"base": "USD"}`)))
}

func TestGetValueByPath(t *testing.T) {
	data := mustParse(t, `{"data":{"currency":"BTC","rates":{"USD":"50000.12"}}}`)

	v, ok := GetValueByPath(data, "data.rates.USD")
	require.True(t, ok)
	s, isStr := v.Str()
	assert.True(t, isStr)
	assert.Equal(t, "50000.12", s)

	_, ok = GetValueByPath(data, "data.currency.code")
	assert.False(t, ok)
	_, ok = GetValueByPath(data, "nope.rates")
	assert.False(t, ok)
	_, ok = GetValueByPath(jsonvalue.NewString("x"), "a")
	assert.False(t, ok)
}

func TestExtractFields(t *testing.T) {
	data := mustParse(t, `{
		"symbol": "IBM",
		"active": true,
		"meta": {"exchange": "NYSE", "tz": null},
		"Time Series (Daily)": {"2024-01-01": {"close": "1"}},
		"trades": [{"px": 1, "qty": 2}, {"px": 3, "other": 4}],
		"tags": ["a", "b"]
	}`)

	fields := ExtractFields(data, "")
	byPath := map[string]AvailableField{}
	var paths []string
	for _, f := range fields {
		byPath[f.Path] = f
		paths = append(paths, f.Path)
	}

	assert.Equal(t, []string{
		"symbol", "active", "meta", "meta.exchange", "meta.tz",
		"Time Series (Daily)", "trades", "trades.px", "trades.qty", "tags",
	}, paths)

	assert.Equal(t, "string", byPath["symbol"].Type)
	assert.Equal(t, "boolean", byPath["active"].Type)
	assert.Equal(t, "null", byPath["meta.tz"].Type)
	assert.Equal(t, "object", byPath["meta"].Type)
	assert.Equal(t, `{"exchange":"NYSE","tz":null}`, byPath["meta"].Value.String())

	assert.Equal(t, FieldTypeTimeSeries, byPath["Time Series (Daily)"].Type)

	assert.True(t, byPath["trades"].IsArray)
	assert.True(t, byPath["trades.px"].IsArray)
	assert.Equal(t, "number", byPath["trades.qty"].Type)
	assert.Equal(t, "array", byPath["tags"].Type)
}

func TestExtractFields_RootArray(t *testing.T) {
	fields := ExtractFields(mustParse(t, `[{"id": 1, "name": "x"}, {"id": 2}]`), "")
	require.Len(t, fields, 2)
	for _, f := range fields {
		assert.True(t, f.IsArray)
	}
	assert.Equal(t, "id", fields[0].Path)

	scalars := ExtractFields(mustParse(t, `[1, 2, 3]`), "")
	require.Len(t, scalars, 1)
	assert.Equal(t, "data", scalars[0].Path)
	assert.Equal(t, "array", scalars[0].Type)

	assert.Empty(t, ExtractFields(mustParse(t, `"text"`), ""))
}

func TestExtractFields_SampleTruncated(t *testing.T) {
	long := `{"blob": {"k": "0123456789012345678901234567890123456789012345678901234567890123456789012345678901234567890123456789"}}`
	fields := ExtractFields(mustParse(t, long), "")
	require.NotEmpty(t, fields)
	s, ok := fields[0].Value.Str()
	require.True(t, ok)
	assert.Len(t, []rune(s), 100)
}

func TestExtractFields_DeepNestingStaysLinear(t *testing.T) {
	depth := 8000
	doc := mustParse(t, strings.Repeat(`{"a":`, depth)+"1"+strings.Repeat("}", depth))

	start := time.Now()
	fields := ExtractFields(doc, "")
	elapsed := time.Since(start)

	require.Len(t, fields, depth)
	assert.Less(t, elapsed, 5*time.Second)

	s, ok := fields[0].Value.Str()
	require.True(t, ok)
	assert.Equal(t, strings.Repeat(`{"a":`, 20), s)

	last := fields[depth-1]
	assert.Equal(t, jsonvalue.Number, last.Value.Kind())
	assert.Len(t, last.Path, 2*depth-1)
}

func TestFormatDisplayValue(t *testing.T) {
	tests := []struct {
		name     string
		input    jsonvalue.Value
		expected string
	}{
		{"millions", jsonvalue.NewNumber(1234567), "1.23M"},
		{"negative millions", jsonvalue.NewNumber(-2500000), "-2.50M"},
		{"thousands grouped", jsonvalue.NewNumber(1234.5678), "1,234.568"},
		{"thousands integer", jsonvalue.NewNumber(50000), "50,000"},
		{"sub-unit price", jsonvalue.NewNumber(0.000123), "0.000123"},
		{"fraction", jsonvalue.NewNumber(12.3456), "12.35"},
		{"integer", jsonvalue.NewNumber(42), "42"},
		{"zero", jsonvalue.NewNumber(0), "0"},
		{"null", jsonvalue.NewNull(), "-"},
		{"true", jsonvalue.NewBool(true), "Yes"},
		{"false", jsonvalue.NewBool(false), "No"},
		{"array", jsonvalue.NewArray(jsonvalue.NewNumber(1), jsonvalue.NewNumber(2)), "[2 items]"},
		{"object", jsonvalue.NewObject(), "{...}"},
		{"string", jsonvalue.NewString("50000.12"), "50000.12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDisplayValue(tt.input))
		})
	}
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "+1.25%", FormatPercentage(1.25, 2))
	assert.Equal(t, "-0.8%", FormatPercentage(-0.82, 1))
	assert.Equal(t, "+0.00%", FormatPercentage(0, 2))

	assert.Equal(t, "1.50B", FormatVolume(1.5e9))
	assert.Equal(t, "2.00M", FormatVolume(2e6))
	assert.Equal(t, "3.25K", FormatVolume(3250))
	assert.Equal(t, "999", FormatVolume(999))

	assert.Equal(t, "1,234,568", FormatNumber(1234567.89, 0))
	assert.Equal(t, "1,234,567.89", FormatNumber(1234567.891, 2))

	assert.Equal(t, 1.25, ParsePercentage("+1.25%"))
	assert.Equal(t, -0.5, ParsePercentage("-0.5%"))
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 150.0, ParseNumber("150.00"))
	assert.Equal(t, -0.82, ParseNumber("-0.82%"))
	assert.Equal(t, 12.5, ParseNumber("  12.5 USD"))
	assert.Equal(t, 0.5, ParseNumber(".5"))
	assert.Equal(t, 1e3, ParseNumber("1e3"))
	assert.Equal(t, 0.0, ParseNumber("abc"))
	assert.Equal(t, 0.0, ParseNumber(""))
}
