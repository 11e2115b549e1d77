package query

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"testing"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

func TestOperators(t *testing.T) {
	tests := []struct {
		name    string
		op      Operator
		value   sheet.Value
		operand any
		want    bool
	}{
		// equal coerces
		{"equal same string", OpEqual, "Bob", "Bob", true},
		{"equal number vs numeric string", OpEqual, 35, "35", true},
		{"equal int vs float", OpEqual, 35, 35.0, true},
		{"equal bool vs 1", OpEqual, true, 1, true},
		{"equal bool vs string", OpEqual, false, "0", true},
		{"equal blank vs 0", OpEqual, "", 0, true},
		{"equal nil vs blank", OpEqual, nil, "", false},
		{"equal different strings", OpEqual, "Bob", "bob", false},

		// deepEqual does not
		{"deepEqual number vs string", OpDeepEqual, 35, "35", false},
		{"deepEqual int vs float", OpDeepEqual, 35, 35.0, true},
		{"deepEqual bool vs 1", OpDeepEqual, true, 1, false},
		{"deepEqual same", OpDeepEqual, "Bob", "Bob", true},

		// ordering
		{"gt numbers", OpGt, 35, 30, true},
		{"gt equal", OpGt, 30, 30, false},
		{"gte equal", OpGte, 30, 30, true},
		{"lt numeric string", OpLt, "23", 30, true},
		{"lte strings lexicographic", OpLte, "Alice", "Bob", true},
		{"gt strings lexicographic", OpGt, "10", "9", false},
		{"gt non numeric string", OpGt, "abc", 1, false},
		{"gt nil", OpGt, nil, 0, false},

		// membership
		{"includes hit", OpIncludes, "Bob", []any{"Alice", "Bob"}, true},
		{"includes strict", OpIncludes, 2, []any{"2"}, false},
		{"includes typed slice", OpIncludes, 2, []int{1, 2}, true},
		{"excludes", OpExcludes, "Zoe", []string{"Alice", "Bob"}, true},
		{"excludes hit", OpExcludes, "Bob", []string{"Bob"}, false},

		// range
		{"between inside", OpBetween, 30, []any{20, 40}, true},
		{"between inclusive", OpBetween, 40, []any{20, 40}, true},
		{"between reversed bounds", OpBetween, 30, []any{40, 20}, true},
		{"between outside", OpBetween, 41, []int{20, 40}, false},
		{"between numeric string", OpBetween, "25", []any{20, 40}, true},

		// patterns
		{"match", OpMatch, "Charlie", "^Ch", true},
		{"match miss", OpMatch, "Bob", "^Ch", false},
		{"match slash flags", OpMatch, "BOB", "/^bob$/i", true},
		{"match compiled", OpMatch, 35, regexp.MustCompile(`^3\d$`), true},
		{"match bool text", OpMatch, true, "^true$", true},
		{"matchAny", OpMatchAny, "Bob", []any{"^A", "^B"}, true},
		{"matchAny miss", OpMatchAny, "Zoe", []string{"^A", "^B"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.value, []Pair{{Op: tt.op, Operand: tt.operand}})
			if got != tt.want {
				t.Errorf("%s(%#v, %#v) = %v, want %v", tt.op, tt.value, tt.operand, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Conjunction(t *testing.T) {
	ps := []Pair{{Op: OpGte, Operand: 20}, {Op: OpLte, Operand: 40}}
	if !Evaluate(28, ps) {
		t.Error("28 should satisfy gte 20 and lte 40")
	}
	if Evaluate(41, ps) {
		t.Error("41 should not satisfy lte 40")
	}
	if !Evaluate("anything", nil) {
		t.Error("empty conjunction should be true")
	}
}

func TestEvaluate_ShortCircuits(t *testing.T) {
	// The second pair would panic if it were reached.
	ps := []Pair{{Op: OpEqual, Operand: "x"}, {Op: "bogus"}}
	if Evaluate("y", ps) {
		t.Error("Evaluate() = true, want false")
	}
}

func TestEvaluate_UnknownOperatorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Evaluate() with unknown operator should panic")
		}
	}()
	Evaluate("x", []Pair{{Op: "bogus"}})
}

func TestCompile(t *testing.T) {
	w := Where{}.
		Op("age", OpGte, 20).
		Eq("name", "Bob").
		Op("age", OpLte, 40)

	groups, err := Compile(w, people)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].Column != 2 || groups[0].Name != "age" || len(groups[0].Pairs) != 2 {
		t.Errorf("groups[0] = %+v, want age at 2 with two pairs", groups[0])
	}
	if groups[1].Column != 1 || groups[1].Pairs[0].Op != OpEqual {
		t.Errorf("groups[1] = %+v, want name equal at 1", groups[1])
	}
}

func TestCompile_UnknownColumns(t *testing.T) {
	w := Where{}.Eq("email", "x").Eq("name", "Bob").Op("phone", "bogus", 1)

	_, err := Compile(w, people)
	var uc *UnknownColumnError
	if !errors.As(err, &uc) {
		t.Fatalf("Compile() error = %v, want *UnknownColumnError", err)
	}
	if !reflect.DeepEqual(uc.Columns, []string{"email", "phone"}) {
		t.Errorf("Columns = %v, want [email phone]", uc.Columns)
	}
}

func TestCompile_BadOperators(t *testing.T) {
	tests := []struct {
		name    string
		w       Where
		wantErr error
	}{
		{"unknown operator", Where{}.Op("age", "approx", 1), ErrUnknownOperator},
		{"between one bound", Where{}.Op("age", OpBetween, []any{1}), ErrInvalidOperand},
		{"between strings", Where{}.Op("age", OpBetween, []any{"a", "b"}), ErrInvalidOperand},
		{"includes scalar", Where{}.Op("age", OpIncludes, 3), ErrInvalidOperand},
		{"match bad pattern", Where{}.Op("name", OpMatch, "("), ErrInvalidOperand},
		{"match non string", Where{}.Op("name", OpMatch, 3), ErrInvalidOperand},
		{"matchAny scalar", Where{}.Op("name", OpMatchAny, "^A"), ErrInvalidOperand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.w, people)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompile_PreparesOperands(t *testing.T) {
	groups, err := Compile(Where{}.Op("age", OpBetween, []any{40, 20}).Op("name", OpMatch, "^B"), people)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if b, ok := groups[0].Pairs[0].Operand.(bounds); !ok || b.lo != 20 || b.hi != 40 {
		t.Errorf("between operand = %#v, want bounds{20, 40}", groups[0].Pairs[0].Operand)
	}
	if _, ok := groups[1].Pairs[0].Operand.(*regexp.Regexp); !ok {
		t.Errorf("match operand = %T, want *regexp.Regexp", groups[1].Pairs[0].Operand)
	}
}

func TestWhere_JSONKeepsOrder(t *testing.T) {
	var w Where
	err := json.Unmarshal([]byte(`{"name":"Bob","age":{"gte":20,"lte":40.5},"id":{"includes":[1,2]},"is_active":true}`), &w)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got := w.Columns(); !reflect.DeepEqual(got, []string{"name", "age", "id", "is_active"}) {
		t.Fatalf("Columns() = %v", got)
	}
	if s, ok := w[0].Criterion.(Scalar); !ok || s.Value != "Bob" {
		t.Errorf("w[0] = %#v, want Scalar Bob", w[0].Criterion)
	}
	ops, ok := w[1].Criterion.(Operators)
	if !ok || len(ops) != 2 || ops[0].Op != OpGte || ops[0].Operand != 20 || ops[1].Operand != 40.5 {
		t.Errorf("w[1] = %#v, want gte 20, lte 40.5", w[1].Criterion)
	}
	if ops, _ := w[2].Criterion.(Operators); !reflect.DeepEqual(ops[0].Operand, []any{1, 2}) {
		t.Errorf("w[2] operand = %#v, want [1 2]", ops[0].Operand)
	}

	out, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"name":"Bob","age":{"gte":20,"lte":40.5},"id":{"includes":[1,2]},"is_active":true}`
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}
}

func TestWhere_JSONRejects(t *testing.T) {
	for _, in := range []string{`[]`, `{"name":["a"]}`, `"x"`, `{"age":{"gte":}}`} {
		var w Where
		if err := json.Unmarshal([]byte(in), &w); err == nil {
			t.Errorf("Unmarshal(%s) expected error", in)
		}
	}
}

func TestCatalog(t *testing.T) {
	want := []Operator{"between", "deepEqual", "equal", "excludes", "gt", "gte", "includes", "lt", "lte", "match", "matchAny"}
	if got := Catalog(); !reflect.DeepEqual(got, want) {
		t.Errorf("Catalog() = %v, want %v", got, want)
	}
}
