package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// Leading numeric prefix, the way parseFloat reads "-0.82%" or "150.00 USD".
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber reads the longest numeric prefix of s. Unparseable input yields 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "-"); ok && strings.HasPrefix(rest, "Infinity") {
		return math.Inf(-1)
	}
	if strings.HasPrefix(strings.TrimPrefix(s, "+"), "Infinity") {
		return math.Inf(1)
	}

	m := numericPrefix.FindString(s)
	if m == "" {
		return 0
	}
	// Overflow reports ErrRange with ±Inf, which is what we want.
	f, _ := strconv.ParseFloat(m, 64)
	return f
}

// toNumber coerces numbers and numeric strings; anything else is 0.
func toNumber(v jsonvalue.Value) float64 {
	switch v.Kind() {
	case jsonvalue.Number:
		n, _ := v.Number()
		if math.IsNaN(n) {
			return 0
		}
		return n
	case jsonvalue.String:
		s, _ := v.Str()
		return ParseNumber(s)
	}
	return 0
}

// firstTruthy returns the first alias present with a truthy value.
func firstTruthy(obj jsonvalue.Value, keys ...string) (jsonvalue.Value, bool) {
	for _, k := range keys {
		if v, ok := obj.Field(k); ok && v.Truthy() {
			return v, true
		}
	}
	return jsonvalue.Value{}, false
}
