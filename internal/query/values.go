package query

// values.go implements the coercion rules behind the comparison operators.
//
// Cells carry one of four logical types: nil, string, number (any Go numeric
// kind) or bool. equal coerces across types, deepEqual never does, and the
// ordering operators compare two strings lexicographically and everything
// else numerically.

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

type kind int

const (
	kindNil kind = iota
	kindString
	kindNumber
	kindBool
	kindOther
)

func kindOf(v sheet.Value) kind {
	switch v.(type) {
	case nil:
		return kindNil
	case string:
		return kindString
	case bool:
		return kindBool
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return kindNumber
	}
	return kindOther
}

// number returns v as float64 for numeric kinds.
func number(v sheet.Value) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// toNumber coerces v to a number. Blank strings are 0, booleans are 1/0,
// and anything unparseable is NaN.
func toNumber(v sheet.Value) float64 {
	if n, ok := number(v); ok {
		return n
	}
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

// toText renders v the way pattern operators see it.
func toText(v sheet.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if n, ok := number(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return sheet.Format(v)
}

// strictEqual compares without coercion. All numeric kinds are one type.
func strictEqual(a, b sheet.Value) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case kindNil:
		return true
	case kindNumber:
		x, _ := number(a)
		y, _ := number(b)
		return x == y
	case kindOther:
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// looseEqual compares with type coercion: nil only equals nil, booleans
// become 1/0, and a number compared with a string compares numerically.
func looseEqual(a, b sheet.Value) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka == kb {
		return strictEqual(a, b)
	}
	if ka == kindNil || kb == kindNil {
		return false
	}
	if ka == kindBool {
		return looseEqual(toNumber(a), b)
	}
	if kb == kindBool {
		return looseEqual(a, toNumber(b))
	}
	if (ka == kindNumber && kb == kindString) || (ka == kindString && kb == kindNumber) {
		return toNumber(a) == toNumber(b)
	}
	return false
}

// compare orders a and b. ok is false when either side is not comparable
// as a number.
func compare(a, b sheet.Value) (c int, ok bool) {
	if sa, isStr := a.(string); isStr {
		if sb, isStr := b.(string); isStr {
			return strings.Compare(sa, sb), true
		}
	}
	if kindOf(a) == kindNil || kindOf(b) == kindNil {
		return 0, false
	}
	x, y := toNumber(a), toNumber(b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}
