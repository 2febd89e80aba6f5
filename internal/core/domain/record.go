package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IDField is the name of the mandatory identifier of a persisted record.
const IDField = "id"

type Record map[string]any

var (
	ErrNilRecord = errors.New("cannot create record from nil data")
	ErrNotObject = errors.New("record must be a JSON object")
	ErrInvalidID = errors.New("id must be a positive integer")
)

// ID returns the integer id of the record. ok is false when the id is absent,
// null or not an integral number.
func (r Record) ID() (int, bool) {
	v, ok := r[IDField]
	if !ok || v == nil {
		return 0, false
	}

	switch id := v.(type) {
	case int:
		return id, true
	case int64:
		if id < math.MinInt || id > math.MaxInt {
			return 0, false
		}
		return int(id), true
	case int32:
		return int(id), true
	case float64:
		if id != math.Trunc(id) || id < math.MinInt || id >= math.MaxInt {
			return 0, false
		}
		return int(id), true
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// HasID reports whether an id is present at all, whatever its type.
func (r Record) HasID() bool {
	v, ok := r[IDField]
	return ok && v != nil
}

func (r Record) SetID(id int) {
	r[IDField] = id
}

func NewFromMap(data map[string]any) (Record, error) {
	if data == nil {
		return nil, ErrNilRecord
	}

	return Record(data), nil
}

// ParseRecord decodes JSON text into a Record. Whole numbers are decoded as int.
func ParseRecord(raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse record: unexpected data after JSON value")
	}

	obj, ok := Normalise(v).(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	return Record(obj), nil
}

// ParseID reads the leading decimal token of s, so "3", " 3" and "3.json" all
// give 3.
func ParseID(s string) (int, error) {
	s = strings.TrimSpace(s)

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	id, err := strconv.Atoi(s[:end])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	return id, nil
}
