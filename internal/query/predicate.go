package query

// predicate.go holds the fixed operator catalog and the where-clause compiler.
//
// Compile validates everything up front (column names, operator names,
// operand shapes) so a bad clause fails before a single row is scanned, and
// converts operands into their evaluated form (compiled patterns, ordered
// bounds). Evaluate is the hot path and only ever sees compiled groups.

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// Operator names a comparison in the catalog.
type Operator string

const (
	OpEqual     Operator = "equal"
	OpDeepEqual Operator = "deepEqual"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpIncludes  Operator = "includes"
	OpExcludes  Operator = "excludes"
	OpBetween   Operator = "between"
	OpMatch     Operator = "match"
	OpMatchAny  Operator = "matchAny"
)

// opFunc reports whether a cell value satisfies an operand.
type opFunc func(actual sheet.Value, operand any) bool

var catalog = map[Operator]opFunc{
	OpEqual:     func(a sheet.Value, o any) bool { return looseEqual(a, o) },
	OpDeepEqual: func(a sheet.Value, o any) bool { return strictEqual(a, o) },
	OpGt:        ordered(func(c int) bool { return c > 0 }),
	OpGte:       ordered(func(c int) bool { return c >= 0 }),
	OpLt:        ordered(func(c int) bool { return c < 0 }),
	OpLte:       ordered(func(c int) bool { return c <= 0 }),
	OpIncludes:  includes,
	OpExcludes:  func(a sheet.Value, o any) bool { return !includes(a, o) },
	OpBetween:   between,
	OpMatch:     match,
	OpMatchAny:  matchAny,
}

// Catalog returns the operator names, sorted.
func Catalog() []Operator {
	ops := make([]Operator, 0, len(catalog))
	for op := range catalog {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Known reports whether op is in the catalog.
func (op Operator) Known() bool {
	_, ok := catalog[op]
	return ok
}

// Group is the compiled predicate for one column.
type Group struct {
	Column int    // 1-based column position
	Name   string // column name
	Pairs  []Pair // conjunction
}

// Compile resolves every column in w against h and prepares its pairs.
// Conditions naming the same column are merged into one group; groups are
// ordered by first appearance. Unknown columns are reported together in one
// *UnknownColumnError before anything else is checked.
func Compile(w Where, h HeaderIndex) ([]Group, error) {
	if err := unknownColumns(h, w.Columns()); err != nil {
		return nil, err
	}

	var groups []Group
	index := make(map[string]int)
	for _, cond := range w {
		prepared := make([]Pair, 0, 1)
		for _, p := range pairs(cond.Criterion) {
			operand, err := prepare(p.Op, p.Operand)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", cond.Column, err)
			}
			prepared = append(prepared, Pair{Op: p.Op, Operand: operand})
		}

		if i, ok := index[cond.Column]; ok {
			groups[i].Pairs = append(groups[i].Pairs, prepared...)
			continue
		}
		pos, _ := h.Position(cond.Column)
		index[cond.Column] = len(groups)
		groups = append(groups, Group{Column: pos, Name: cond.Column, Pairs: prepared})
	}
	return groups, nil
}

// Evaluate reports whether value satisfies every pair, stopping at the first
// failure. An operator outside the catalog is a programming error and panics;
// Compile rejects such operators before evaluation.
func Evaluate(value sheet.Value, ps []Pair) bool {
	for _, p := range ps {
		fn, ok := catalog[p.Op]
		if !ok {
			panic(fmt.Sprintf("query: %v %q", ErrUnknownOperator, p.Op))
		}
		if !fn(value, p.Operand) {
			return false
		}
	}
	return true
}

// prepare validates an operand and converts it to its evaluated form.
func prepare(op Operator, operand any) (any, error) {
	if !op.Known() {
		return nil, fmt.Errorf("%w %q", ErrUnknownOperator, op)
	}
	switch op {
	case OpIncludes, OpExcludes:
		items, ok := collection(operand)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a list, got %T", ErrInvalidOperand, op, operand)
		}
		return items, nil
	case OpBetween:
		b, err := toBounds(operand)
		if err != nil {
			return nil, err
		}
		return b, nil
	case OpMatch:
		re, err := pattern(operand)
		if err != nil {
			return nil, err
		}
		return re, nil
	case OpMatchAny:
		items, ok := collection(operand)
		if !ok {
			return nil, fmt.Errorf("%w: matchAny needs a list of patterns, got %T", ErrInvalidOperand, operand)
		}
		res := make([]*regexp.Regexp, len(items))
		for i, it := range items {
			re, err := pattern(it)
			if err != nil {
				return nil, err
			}
			res[i] = re
		}
		return res, nil
	}
	return operand, nil
}

func ordered(test func(int) bool) opFunc {
	return func(a sheet.Value, o any) bool {
		c, ok := compare(a, o)
		return ok && test(c)
	}
}

func includes(a sheet.Value, o any) bool {
	items, ok := collection(o)
	if !ok {
		return false
	}
	for _, it := range items {
		if strictEqual(a, it) {
			return true
		}
	}
	return false
}

// bounds is a compiled between operand with lo <= hi.
type bounds struct {
	lo, hi float64
}

func toBounds(operand any) (bounds, error) {
	if b, ok := operand.(bounds); ok {
		return b, nil
	}
	items, ok := collection(operand)
	if !ok || len(items) != 2 {
		return bounds{}, fmt.Errorf("%w: between needs exactly two bounds", ErrInvalidOperand)
	}
	x, xok := number(items[0])
	y, yok := number(items[1])
	if !xok || !yok {
		return bounds{}, fmt.Errorf("%w: between bounds must be numbers", ErrInvalidOperand)
	}
	if x > y {
		x, y = y, x
	}
	return bounds{lo: x, hi: y}, nil
}

func between(a sheet.Value, o any) bool {
	b, err := toBounds(o)
	if err != nil {
		return false
	}
	if kindOf(a) == kindNil {
		return false
	}
	n := toNumber(a)
	return b.lo <= n && n <= b.hi
}

func match(a sheet.Value, o any) bool {
	re, err := pattern(o)
	if err != nil {
		return false
	}
	return re.MatchString(toText(a))
}

func matchAny(a sheet.Value, o any) bool {
	if res, ok := o.([]*regexp.Regexp); ok {
		text := toText(a)
		for _, re := range res {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}
	items, ok := collection(o)
	if !ok {
		return false
	}
	for _, it := range items {
		if match(a, it) {
			return true
		}
	}
	return false
}

// pattern accepts a compiled *regexp.Regexp, a Go regexp string, or the
// slash-delimited form "/expr/flags" with flags drawn from "imsU".
func pattern(operand any) (*regexp.Regexp, error) {
	switch p := operand.(type) {
	case *regexp.Regexp:
		return p, nil
	case string:
		expr := p
		if len(p) >= 2 && p[0] == '/' {
			if end := strings.LastIndexByte(p, '/'); end > 0 {
				flags := p[end+1:]
				if strings.Trim(flags, "imsU") == "" {
					expr = p[1:end]
					if flags != "" {
						expr = "(?" + flags + ")" + expr
					}
				}
			}
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidOperand, p, err)
		}
		return re, nil
	}
	return nil, fmt.Errorf("%w: pattern must be a string, got %T", ErrInvalidOperand, operand)
}

// collection returns any slice or array operand as []any.
func collection(operand any) ([]any, bool) {
	if items, ok := operand.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(operand)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// operandJSON converts compiled operands back to their JSON-friendly form.
func operandJSON(operand any) any {
	switch o := operand.(type) {
	case *regexp.Regexp:
		return o.String()
	case []*regexp.Regexp:
		out := make([]string, len(o))
		for i, re := range o {
			out[i] = re.String()
		}
		return out
	case bounds:
		return []float64{o.lo, o.hi}
	}
	return operand
}
