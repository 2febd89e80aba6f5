package domain

import (
	"encoding/json"
	"math"
)

// dataNormaliser transforms decoded JSON into its canonical in-memory form:
// whole numbers become int, objects inside arrays become plain maps.
type dataNormaliser struct{}

// Normalise converts a freshly decoded JSON value so that integral numbers are
// ints. Records round-tripped through storage then compare equal to the
// records that were written.
func Normalise(value any) any {
	return dataNormaliser{}.normalise(value)
}

func (n dataNormaliser) normalise(value any) any {
	switch v := value.(type) {
	case float64:
		// if the number has no fractional part and fits, convert to int
		if v == math.Trunc(v) && v >= math.MinInt && v < math.MaxInt {
			return int(v)
		}
		return v

	case json.Number:
		if i, err := v.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		if f, err := v.Float64(); err == nil {
			return n.normalise(f)
		}
		return v.String()

	case []any:
		return n.transformSlice(v, n.normalise)

	case map[string]any:
		return n.transformMap(v, n.normalise)

	case Record:
		return Record(n.transformMap(v, n.normalise))

	default:
		// strings, bools and nulls are kept as is
		return v
	}
}

// transformSlice applies transformer to each item, returning a same length slice - think .map() in JS
func (n dataNormaliser) transformSlice(slice []any, transformer func(any) any) []any {
	result := make([]any, len(slice))

	for i, item := range slice {
		result[i] = transformer(item)
	}

	return result
}

func (n dataNormaliser) transformMap(m map[string]any, transformer func(any) any) map[string]any {
	normalisedMap := make(map[string]any, len(m))

	for key, value := range m {
		normalisedMap[key] = transformer(value)
	}

	return normalisedMap
}
