package transform

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

// datetimeFormats is the fixed, ordered list tried before falling back to
// generic parsing.
var datetimeFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
}

// convertValue coerces a single value to the target type. Nulls stay null and
// any failure returns the original value untouched; coercion never raises.
func convertValue(v structured.Value, target string) structured.Value {
	if v.IsNull() {
		return v
	}

	switch target {
	case "int":
		f, ok := toFloat(v)
		if !ok {
			return v
		}
		return structured.Number(math.Trunc(f))

	case "float":
		f, ok := toFloat(v)
		if !ok {
			return v
		}
		return structured.Number(f)

	case "str":
		return structured.String(scalarText(v))

	case "bool":
		return toBool(v)

	case "datetime":
		if v.Kind() != structured.KindString {
			return v
		}
		if t, ok := parseDatetime(v.StringVal()); ok {
			return structured.String(t.Format(time.RFC3339))
		}
		return v

	default:
		return v
	}
}

func toFloat(v structured.Value) (float64, bool) {
	switch v.Kind() {
	case structured.KindNumber:
		return v.NumberVal(), true
	case structured.KindBool:
		if v.BoolVal() {
			return 1, true
		}
		return 0, true
	case structured.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.StringVal()), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toBool(v structured.Value) structured.Value {
	switch v.Kind() {
	case structured.KindBool:
		return v
	case structured.KindString:
		switch strings.ToLower(v.StringVal()) {
		case "true", "1", "yes", "on":
			return structured.Bool(true)
		default:
			return structured.Bool(false)
		}
	case structured.KindNumber:
		return structured.Bool(v.NumberVal() != 0)
	case structured.KindList, structured.KindMap:
		return structured.Bool(v.Len() > 0)
	default:
		return v
	}
}

// parseDatetime tries the fixed format list in order, then dateparse as a
// generic fallback for everything the list misses.
func parseDatetime(s string) (time.Time, bool) {
	for _, layout := range datetimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// scalarText renders a scalar as text the way str() would: trimmed float
// formatting for numbers, true/false for booleans.
func scalarText(v structured.Value) string {
	switch v.Kind() {
	case structured.KindString:
		return v.StringVal()
	case structured.KindNumber:
		return strconv.FormatFloat(v.NumberVal(), 'f', -1, 64)
	case structured.KindBool:
		return strconv.FormatBool(v.BoolVal())
	case structured.KindNull:
		return ""
	default:
		raw, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
