package hstore

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

func TestLookup_Parse(t *testing.T) {
	tests := []struct {
		expr   string
		column string
		op     lookupOp
	}{
		{"data", "data", opExact},
		{"data__exact", "data", opExact},
		{"data__contains", "data", opContains},
		{"data__gt", "data", opGt},
		{"data__gte", "data", opGte},
		{"data__lt", "data", opLt},
		{"data__lte", "data", opLte},
		{"id__in", "id", opIn},
		{"data__isnull", "data", opIsNull},
		{"point__within", "point", opWithin},
		{"point__intersects", "point", opIntersects},
	}
	for _, tt := range tests {
		c := Lookup(tt.expr, "x")
		if c.Err() != nil {
			t.Errorf("Lookup(%q) failed: %v", tt.expr, c.Err())
			continue
		}
		if c.column != tt.column || c.op != tt.op {
			t.Errorf("Lookup(%q) = %s/%v, wanted %s/%v", tt.expr, c.column, c.op, tt.column, tt.op)
		}
		if c.String() != tt.expr {
			t.Errorf("String() = %q, wanted %q", c.String(), tt.expr)
		}
	}
}

func TestLookup_UnknownOperator(t *testing.T) {
	for _, expr := range []string{"data__like", "data__", "data__contains__gt"} {
		err := Lookup(expr, "x").Err()
		if !errors.Is(err, ErrUnsupportedLookup) {
			t.Errorf("Lookup(%q).Err() = %v, wanted ErrUnsupportedLookup", expr, err)
		}
		var le *LookupError
		if !errors.As(err, &le) || le.Column != "data" {
			t.Errorf("Lookup(%q).Err() = %#v, wanted *LookupError on data", expr, err)
		}
	}
}

func TestClassifyOperand(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind operandKind
	}{
		{"nil", nil, nullOperand},
		{"string", "k", stringOperand},
		{"bytes", []byte("k"), stringOperand},
		{"int", 5, scalarOperand},
		{"bool", true, scalarOperand},
		{"uuid", uuid.New(), scalarOperand},
		{"entity", &Ref{ID: 1}, scalarOperand},
		{"strings", []string{"a", "b"}, listOperand},
		{"empty list", []string{}, listOperand},
		{"mixed list", []any{"a", 1}, listOperand},
		{"array", [2]int{1, 2}, listOperand},
		{"dict", Dict{"a": "1"}, pairsOperand},
		{"string map", map[string]string{"a": "1"}, pairsOperand},
		{"any map", map[string]any{"a": 1}, pairsOperand},
		{"empty map", map[string]any{}, pairsOperand},
		{"multi", map[string]any{"a": []string{"1", "2"}, "b": "x"}, multiPairsOperand},
		{"typed multi", map[string][]int{"a": {1}}, multiPairsOperand},
		{"point", orb.Point{1, 2}, geometryOperand},
		{"polygon", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, geometryOperand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opd, err := classifyOperand(tt.in)
			if err != nil {
				t.Fatalf("classifyOperand failed: %v", err)
			}
			if opd.kind != tt.kind {
				t.Fatalf("kind = %v, wanted %v", opd.kind, tt.kind)
			}
		})
	}
}

func TestClassifyOperand_Multi(t *testing.T) {
	opd, err := classifyOperand(map[string]any{"a": []any{1, "2"}, "b": "x"})
	if err != nil {
		t.Fatal(err)
	}
	deepEqual(t, opd.pairs, map[string]any{"b": "x"})
	deepEqual(t, opd.multi, map[string][]any{"a": {1, "2"}})
}

func TestClassifyOperand_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"func", func() {}},
		{"chan", make(chan int)},
		{"complex", complex(1, 1)},
		{"int keys", map[int]string{1: "a"}},
		{"nested map", map[string]any{"a": map[string]any{"b": 1}}},
		{"nil value", map[string]any{"a": nil}},
		{"func in list value", map[string]any{"a": []any{func() {}}}},
		{"nil pointer", (*Ref)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classifyOperand(tt.in)
			if !errors.Is(err, ErrInvalidFilterOperand) {
				t.Fatalf("classifyOperand = %v, wanted ErrInvalidFilterOperand", err)
			}
		})
	}

	err := Lookup("data__contains", func() {}).Err()
	var le *LookupError
	if !errors.As(err, &le) || le.Lookup != "contains" || !errors.Is(err, ErrInvalidFilterOperand) {
		t.Fatalf("Lookup(func).Err() = %v, wanted *LookupError wrapping ErrInvalidFilterOperand", err)
	}
}

func TestWhere_SortsExpressions(t *testing.T) {
	conds := Where(map[string]any{"name": "x", "data__contains": "k", "data__gt": map[string]any{"v": 1}})
	var exprs []string
	for _, c := range conds {
		exprs = append(exprs, c.String())
	}
	deepEqual(t, exprs, []string{"data__contains", "data__gt", "name"})
}
