package normalize

import (
	"regexp"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// FieldTypeTimeSeries marks a date-keyed container reported as a leaf.
const FieldTypeTimeSeries = "timeseries"

// Sample values of containers are cut to this many characters of JSON.
const sampleMaxLen = 100

var timeSeriesKey = regexp.MustCompile(`Time Series|^\d{4}-\d{2}-\d{2}`)

// AvailableField describes one selectable node of a response.
type AvailableField struct {
	Path    string          `json:"path"`
	Value   jsonvalue.Value `json:"value"`
	Type    string          `json:"type"`
	IsArray bool            `json:"isArray"`
}

// GetValueByPath resolves a dot-notation path. It reports false at the first
// missing segment or scalar intermediate.
func GetValueByPath(data jsonvalue.Value, path string) (jsonvalue.Value, bool) {
	if path == "" || (!data.IsObject() && !data.IsArray()) {
		return jsonvalue.Value{}, false
	}
	return data.Get(path)
}

// ExtractFields lists every reachable node under prefix. Arrays of objects are
// described by their first element only, with IsArray set on each result, so
// heterogeneous arrays are approximated. Time series containers are not
// expanded since their children are rows, not schema.
func ExtractFields(data jsonvalue.Value, prefix string) []AvailableField {
	fields := []AvailableField{}
	switch data.Kind() {
	case jsonvalue.Array:
		return arrayFields(fields, data, prefix)
	case jsonvalue.Object:
		return objectFields(fields, data, prefix)
	}
	return fields
}

func objectFields(fields []AvailableField, data jsonvalue.Value, prefix string) []AvailableField {
	for _, f := range data.Fields() {
		path := f.Key
		if prefix != "" {
			path = prefix + "." + f.Key
		}
		isSeries := timeSeriesKey.MatchString(f.Key)

		desc := AvailableField{
			Path:    path,
			Value:   sample(f.Value),
			Type:    f.Value.Kind().String(),
			IsArray: f.Value.IsArray(),
		}
		if isSeries {
			desc.Type = FieldTypeTimeSeries
		}
		fields = append(fields, desc)

		if isSeries {
			continue
		}
		switch {
		case f.Value.IsObject():
			fields = objectFields(fields, f.Value, path)
		case f.Value.IsArray():
			if first, ok := f.Value.Index(0); ok && first.IsObject() {
				from := len(fields)
				fields = objectFields(fields, first, path)
				markArray(fields[from:])
			}
		}
	}
	return fields
}

func arrayFields(fields []AvailableField, data jsonvalue.Value, prefix string) []AvailableField {
	if first, ok := data.Index(0); ok && (first.IsObject() || first.IsArray()) {
		from := len(fields)
		if first.IsObject() {
			fields = objectFields(fields, first, prefix)
		} else {
			fields = arrayFields(fields, first, prefix)
		}
		markArray(fields[from:])
		return fields
	}

	path := prefix
	if path == "" {
		path = "data"
	}
	return append(fields, AvailableField{
		Path:    path,
		Value:   data,
		Type:    jsonvalue.Array.String(),
		IsArray: true,
	})
}

func markArray(fields []AvailableField) {
	for i := range fields {
		fields[i].IsArray = true
	}
}

func sample(v jsonvalue.Value) jsonvalue.Value {
	if !v.IsObject() && !v.IsArray() {
		return v
	}
	return jsonvalue.NewString(v.Preview(sampleMaxLen))
}
