package copier

import (
	"fmt"
	"persistor/internal/core/domain"
)

// DeepCopy returns a copy of src that shares no maps or slices with it.
func DeepCopy[T any](src T) (T, error) {
	var zero T

	copied := deepCopyValue(any(src))
	if result, ok := copied.(T); ok {
		return result, nil
	}

	return zero, fmt.Errorf("deep copy failed: expected %T, got %T", zero, copied)
}

// deepCopyValue copies the JSON-shaped types records are made of
func deepCopyValue(src any) any {
	if src == nil {
		return nil
	}

	switch v := src.(type) {
	case domain.Record:
		if v == nil {
			return domain.Record(nil)
		}
		dst := make(domain.Record, len(v))
		for key, val := range v {
			dst[key] = deepCopyValue(val)
		}
		return dst

	case map[string]any:
		if v == nil {
			return map[string]any(nil)
		}
		dst := make(map[string]any, len(v))
		for key, val := range v {
			dst[key] = deepCopyValue(val)
		}
		return dst

	case []domain.Record:
		if v == nil {
			return []domain.Record(nil)
		}
		dst := make([]domain.Record, len(v))
		for i, record := range v {
			dst[i] = deepCopyValue(record).(domain.Record)
		}
		return dst

	case []any:
		if v == nil {
			return []any(nil)
		}
		dst := make([]any, len(v))
		for i, val := range v {
			dst[i] = deepCopyValue(val)
		}
		return dst

	case []map[string]any:
		if v == nil {
			return []map[string]any(nil)
		}
		dst := make([]map[string]any, len(v))
		for i, m := range v {
			dst[i] = deepCopyValue(m).(map[string]any)
		}
		return dst

	default:
		// strings, numbers, bools and anything else are treated as immutable values
		return v
	}
}
