package form

import (
	"math"
	"time"
)

// ResolveDefault returns the empty value for a built-in field type: an
// empty string for text, multi_text and choice, NaN for number, and the
// zero time.Time (an invalid date) for date and time. Custom types have no
// empty value and resolve to nil; Make requires an explicit default for them.
func ResolveDefault(t FieldType) any {
	switch t {
	case TypeText, TypeMultiText, TypeChoice:
		return ""
	case TypeNumber:
		return math.NaN()
	case TypeDate, TypeTime:
		return time.Time{}
	}
	return nil
}

// initialData builds the starting snapshot from each config's default.
func initialData(configs []FieldConfig) Data {
	data := make(Data, len(configs))
	for _, c := range configs {
		if c.Default != nil {
			data[c.Name] = c.Default
			continue
		}
		data[c.Name] = ResolveDefault(c.Type)
	}
	return data
}
