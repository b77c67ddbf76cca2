// Package data loads, caches and refreshes the per-domain business datasets
// that the specialists query.
package data

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Dataset is a decoded JSON object holding one domain's data.
type Dataset map[string]interface{}

// LastUpdatedKey is stamped on every refreshed dataset.
const LastUpdatedKey = "last_updated"

// Has reports whether key is present.
func (d Dataset) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Map returns a nested object.
func (d Dataset) Map(key string) (Dataset, bool) {
	return AsMap(d[key])
}

// List returns a nested array.
func (d Dataset) List(key string) ([]interface{}, bool) {
	l, ok := d[key].([]interface{})
	return l, ok
}

// Number returns a numeric value, or 0 when absent or not numeric.
func (d Dataset) Number(key string) float64 {
	return Number(d[key])
}

// GetOr returns d[key], or def when the key is absent.
func (d Dataset) GetOr(key string, def interface{}) interface{} {
	if v, ok := d[key]; ok {
		return v
	}
	return def
}

// LastUpdated returns the refresh timestamp, or "" when unknown.
func (d Dataset) LastUpdated() string {
	s, _ := d[LastUpdatedKey].(string)
	return s
}

// Clone returns a deep copy.
func (d Dataset) Clone() Dataset {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return Dataset{}
	}
	var out Dataset
	if err := json.Unmarshal(raw, &out); err != nil {
		return Dataset{}
	}
	return out
}

// AsMap converts a decoded JSON value into a Dataset.
func AsMap(v interface{}) (Dataset, bool) {
	switch m := v.(type) {
	case Dataset:
		return m, true
	case map[string]interface{}:
		return Dataset(m), true
	}
	return nil, false
}

// Records returns the object elements of a decoded JSON array.
func Records(v interface{}) []Dataset {
	list, ok := v.([]interface{})
	if !ok {
		if typed, ok := v.([]map[string]interface{}); ok {
			out := make([]Dataset, 0, len(typed))
			for _, m := range typed {
				out = append(out, Dataset(m))
			}
			return out
		}
		return nil
	}
	out := make([]Dataset, 0, len(list))
	for _, item := range list {
		if m, ok := AsMap(item); ok {
			out = append(out, m)
		}
	}
	return out
}

// Number coerces JSON numbers, Go numerics and numeric strings to float64.
func Number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// String returns a JSON value as a string.
func String(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprintf("%v", v)
}
