// Package coerce converts raw register text and user-entered values into
// typed engine values. Conversion never fails; anything unparsable becomes
// the type's fallback (false, 0, 0.0, "").
package coerce

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/smarty-bms/smarty/pkgs/model"
)

// truthyWords are the textual spellings accepted as boolean true,
// case-insensitive.
var truthyWords = map[string]bool{
	"1": true, "true": true, "on": true, "yes": true,
}

// Bool coerces v to a boolean. Numerics are true above 0.5; strings are
// matched against the truthy word list and anything else is false.
func Bool(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return truthyWords[strings.ToLower(strings.TrimSpace(t))]
	default:
		f, err := cast.ToFloat64E(v)
		return err == nil && f > 0.5
	}
}

// Float coerces v to a float64, falling back to 0.0.
func Float(v interface{}) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		if strings.TrimSpace(t) == "" {
			return 0
		}
		f, err := cast.ToFloat64E(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return f
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0
		}
		return f
	}
}

// Int coerces v through Float and truncates toward zero.
func Int(v interface{}) int64 {
	return int64(math.Trunc(Float(v)))
}

// String renders an engine value the way it is persisted in read_value /
// write_value columns: booleans as "true"/"false", floats without a forced
// exponent or trailing zeros.
func String(v interface{}) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok {
		return cast.ToString(f)
	}
	return cast.ToString(v)
}

// ByType coerces v into the representation matching a declared data type.
// String, List and Object keep their textual form.
func ByType(v interface{}, t model.DataType) interface{} {
	switch t {
	case model.TypeBoolean:
		return Bool(v)
	case model.TypeInteger:
		return Int(v)
	case model.TypeFloat, model.TypeReal:
		return Float(v)
	default:
		return String(v)
	}
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	pow := math.Pow(10, float64(places))
	return math.Round(f*pow) / pow
}
