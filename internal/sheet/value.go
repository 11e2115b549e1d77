package sheet

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IsBlank reports whether v is an empty cell.
func IsBlank(v Value) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Normalize maps nil to "" and decodes json.Number, leaving other values as-is.
func Normalize(v Value) Value {
	switch x := v.(type) {
	case nil:
		return ""
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	return v
}

// Format renders a cell as text, the way it would appear in a CSV export.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// Parse infers a cell value from text. Numbers and booleans are recognised
// only when formatting them back yields the same text, so values such as
// "007" or "1e3" stay strings.
func Parse(s string) Value {
	if s == "" {
		return ""
	}
	switch s {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	if i, err := strconv.Atoi(s); err == nil && strconv.Itoa(i) == s {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && Format(f) == s && strings.Contains(s, ".") {
		return f
	}
	return s
}
