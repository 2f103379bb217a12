package inputs

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/matthewbaird/formengine/internal/form"
)

// Decode converts a JSON value from the browser into the Go value a field
// of type t holds. Empty strings decode to the type's empty value.
func Decode(t form.FieldType, raw json.RawMessage) (any, error) {
	switch t {
	case form.TypeText, form.TypeMultiText, form.TypeChoice:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decoding %s value: %w", t, err)
		}
		return s, nil
	case form.TypeNumber:
		return decodeNumber(raw)
	case form.TypeDate:
		return decodeTime(raw, DateLayout)
	case form.TypeTime:
		return decodeTime(raw, TimeLayout)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding %s value: %w", t, err)
	}
	return v, nil
}

func decodeNumber(raw json.RawMessage) (any, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding number value: %w", err)
	}
	if s == "" {
		return math.NaN(), nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("decoding number value: %w", err)
	}
	return n, nil
}

func decodeTime(raw json.RawMessage, layout string) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding time value: %w", err)
	}
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil, fmt.Errorf("decoding time value: %w", err)
	}
	return t, nil
}

// Encode converts a field value into a JSON-safe value, the inverse of
// Decode: NaN and zero times become empty strings.
func Encode(t form.FieldType, v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if t == form.TypeTime {
			return x.Format(TimeLayout)
		}
		return x.Format(DateLayout)
	}
	return v
}
