package hstore

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/paulmach/orb"
)

type lookupOp int

const (
	opExact lookupOp = iota
	opContains
	opGt
	opGte
	opLt
	opLte
	opIn
	opIsNull
	opWithin
	opIntersects
)

var lookupNames = map[string]lookupOp{
	"exact":      opExact,
	"contains":   opContains,
	"gt":         opGt,
	"gte":        opGte,
	"lt":         opLt,
	"lte":        opLte,
	"in":         opIn,
	"isnull":     opIsNull,
	"within":     opWithin,
	"intersects": opIntersects,
}

func (op lookupOp) String() string {
	for name, o := range lookupNames {
		if o == op {
			return name
		}
	}
	return fmt.Sprintf("lookup(%d)", int(op))
}

func (op lookupOp) comparison() string {
	switch op {
	case opGt:
		return ">"
	case opGte:
		return ">="
	case opLt:
		return "<"
	case opLte:
		return "<="
	default:
		panic(fmt.Errorf("%v is not a comparison", op))
	}
}

type operandKind int

const (
	nullOperand operandKind = iota
	stringOperand
	scalarOperand
	listOperand
	pairsOperand
	multiPairsOperand
	geometryOperand
)

func (k operandKind) String() string {
	switch k {
	case nullOperand:
		return "null"
	case stringOperand:
		return "string"
	case scalarOperand:
		return "scalar"
	case listOperand:
		return "list"
	case pairsOperand:
		return "map"
	case multiPairsOperand:
		return "map of lists"
	case geometryOperand:
		return "geometry"
	default:
		return fmt.Sprintf("operandKind(%d)", int(k))
	}
}

// operand is a filter value sorted by shape. Only the fields relevant to
// kind are set.
type operand struct {
	kind  operandKind
	value any              // null, string, scalar
	list  []any            // list
	pairs map[string]any   // pairs, and the scalar part of multiPairs
	multi map[string][]any // list-valued part of multiPairs
	geom  orb.Geometry
}

// Cond is a single filter condition: a column, a lookup and an operand.
type Cond struct {
	expr   string
	column string
	op     lookupOp
	opd    operand
	err    error
}

// Lookup parses a "column__lookup" expression, e.g. "data__contains" or
// "data__gt". A bare column name means exact. Malformed operands and unknown
// lookups are reported by Err and by any query the condition is added to.
func Lookup(expr string, value any) Cond {
	c := Cond{expr: expr}
	column, name, found := strings.Cut(expr, "__")
	c.column = column
	if found {
		op, ok := lookupNames[name]
		if !ok {
			c.err = lookupErrf(nil, column, name, ErrUnsupportedLookup, "")
			return c
		}
		c.op = op
	}
	opd, err := classifyOperand(value)
	if err != nil {
		c.err = lookupErrf(nil, column, c.op.String(), err, "")
		return c
	}
	c.opd = opd
	return c
}

func (c Cond) Err() error {
	return c.err
}

func (c Cond) String() string {
	return c.expr
}

func classifyOperand(v any) (operand, error) {
	switch v := v.(type) {
	case nil:
		return operand{kind: nullOperand}, nil
	case string:
		return operand{kind: stringOperand, value: v}, nil
	case []byte:
		return operand{kind: stringOperand, value: string(v)}, nil
	case orb.Geometry:
		return operand{kind: geometryOperand, geom: v}, nil
	case Dict:
		return pairsOf(v), nil
	case map[string]string:
		return pairsOf(v), nil
	}

	val := reflect.ValueOf(v)
	if isListValue(val) {
		return operand{kind: listOperand, list: listItems(val)}, nil
	}
	if val.Kind() == reflect.Map {
		if val.Type().Key().Kind() != reflect.String {
			return operand{}, fmt.Errorf("%w: map keys must be strings, got %v", ErrInvalidFilterOperand, val.Type())
		}
		opd := operand{kind: pairsOperand, pairs: make(map[string]any, val.Len())}
		iter := val.MapRange()
		for iter.Next() {
			k, ev := iter.Key().String(), iter.Value()
			for ev.Kind() == reflect.Interface && !ev.IsNil() {
				ev = ev.Elem()
			}
			if isListValue(ev) {
				if opd.multi == nil {
					opd.multi = make(map[string][]any)
				}
				opd.multi[k] = listItems(ev)
				opd.kind = multiPairsOperand
				continue
			}
			if err := checkScalar(ev); err != nil {
				return operand{}, fmt.Errorf("%w: key %q", err, k)
			}
			opd.pairs[k] = ev.Interface()
		}
		for k, items := range opd.multi {
			for _, item := range items {
				if err := checkScalar(reflect.ValueOf(item)); err != nil {
					return operand{}, fmt.Errorf("%w: key %q", err, k)
				}
			}
		}
		return opd, nil
	}
	if err := checkScalar(val); err != nil {
		return operand{}, err
	}
	return operand{kind: scalarOperand, value: v}, nil
}

func pairsOf[M ~map[string]string](m M) operand {
	pairs := make(map[string]any, len(m))
	for k, v := range m {
		pairs[k] = v
	}
	return operand{kind: pairsOperand, pairs: pairs}
}

// isListValue reports whether val is a list operand. Byte slices and
// fixed-size types with a text form (uuid.UUID) are scalars.
func isListValue(val reflect.Value) bool {
	if !val.IsValid() {
		return false
	}
	switch val.Kind() {
	case reflect.Slice:
		return val.Type().Elem().Kind() != reflect.Uint8 && !val.Type().Implements(textMarshalerType)
	case reflect.Array:
		return !val.Type().Implements(textMarshalerType) && !val.Type().Implements(geometryType)
	default:
		return false
	}
}

func listItems(val reflect.Value) []any {
	items := make([]any, val.Len())
	for i := range items {
		items[i] = val.Index(i).Interface()
	}
	return items
}

func checkScalar(val reflect.Value) error {
	if !val.IsValid() {
		return fmt.Errorf("%w: nil value", ErrInvalidFilterOperand)
	}
	switch val.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return fmt.Errorf("%w: %v", ErrInvalidFilterOperand, val.Type())
	case reflect.Map:
		return fmt.Errorf("%w: nested map %v", ErrInvalidFilterOperand, val.Type())
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return fmt.Errorf("%w: nil %v", ErrInvalidFilterOperand, val.Type())
		}
	}
	return nil
}

// Where turns a mapping of "column__lookup" expressions into conditions,
// sorted by expression so that the generated SQL is stable.
func Where(kv map[string]any) []Cond {
	exprs := make([]string, 0, len(kv))
	for expr := range kv {
		exprs = append(exprs, expr)
	}
	slices.Sort(exprs)
	conds := make([]Cond, len(exprs))
	for i, expr := range exprs {
		conds[i] = Lookup(expr, kv[expr])
	}
	return conds
}
