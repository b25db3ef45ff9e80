package hstore

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// compile resolves the condition against tbl and returns its SQL predicate.
// All operand checks happen here, before any statement is built.
func (c Cond) compile(tbl *Table) (predicate, error) {
	if c.err != nil {
		var le *LookupError
		if errors.As(c.err, &le) && le.Table == "" {
			le.Table = tbl.name
		}
		return nil, c.err
	}
	col := tbl.columnsByName[c.column]
	if col == nil {
		return nil, lookupErrf(tbl, c.column, c.op.String(), ErrUnknownColumn, "")
	}
	if c.op == opIsNull {
		return compileIsNull(col, c.opd)
	}
	switch col.kind {
	case dictColumn, refsColumn:
		return compileMapLookup(col, c.op, c.opd)
	case geometryColumn:
		return compileGeometryLookup(col, c.op, c.opd)
	default:
		return compileScalarLookup(col, c.op, c.opd)
	}
}

func invalidOperand(col *Column, op lookupOp, opd operand, format string, args ...any) error {
	msg := fmt.Sprintf("%v operand", opd.kind)
	if format != "" {
		msg += ": " + fmt.Sprintf(format, args...)
	}
	return lookupErrf(col.table, col.name, op.String(), ErrInvalidFilterOperand, "%s", msg)
}

func unsupportedLookup(col *Column, op lookupOp) error {
	return lookupErrf(col.table, col.name, op.String(), ErrUnsupportedLookup, "not available on %v columns", col.kind)
}

func compileIsNull(col *Column, opd operand) (predicate, error) {
	isNull, ok := opd.value.(bool)
	if opd.kind != scalarOperand || !ok {
		return nil, invalidOperand(col, opIsNull, opd, "expected bool")
	}
	ident := quoteIdent(col.name)
	if isNull {
		return constPredicate(ident + " IS NULL"), nil
	}
	return constPredicate(ident + " IS NOT NULL"), nil
}

func compileMapLookup(col *Column, op lookupOp, opd operand) (predicate, error) {
	ident := quoteIdent(col.name)
	switch op {
	case opExact:
		switch opd.kind {
		case nullOperand:
			return constPredicate(ident + " IS NULL"), nil
		case pairsOperand:
			m, err := col.mapText(opd.pairs)
			if err != nil {
				return nil, err
			}
			h := toHstore(m)
			return func(b *sqlBuilder) {
				b.Printf("%s = %s::hstore", ident, b.Arg(h))
			}, nil
		}
		return nil, invalidOperand(col, op, opd, "expected a map")

	case opContains:
		switch opd.kind {
		case stringOperand, scalarOperand:
			key, err := Coerce(opd.value)
			if err != nil {
				return nil, invalidOperand(col, op, opd, "%v", err)
			}
			return func(b *sqlBuilder) {
				b.Printf("%s ? %s", ident, b.Arg(key))
			}, nil
		case listOperand:
			keys := make([]string, len(opd.list))
			for i, item := range opd.list {
				k, err := Coerce(item)
				if err != nil {
					return nil, invalidOperand(col, op, opd, "item %d: %v", i, err)
				}
				keys[i] = k
			}
			if len(keys) == 0 {
				return constPredicate("TRUE"), nil
			}
			return func(b *sqlBuilder) {
				b.Printf("%s ?& %s::text[]", ident, b.Arg(keys))
			}, nil
		case pairsOperand, multiPairsOperand:
			return compileMapContains(col, opd)
		}
		return nil, invalidOperand(col, op, opd, "expected a key, a list of keys or a map")

	case opGt, opGte, opLt, opLte:
		if opd.kind != pairsOperand || len(opd.pairs) != 1 {
			return nil, invalidOperand(col, op, opd, "expected a map with exactly one key")
		}
		key := slices.Collect(maps.Keys(opd.pairs))[0]
		s, err := col.valueText(opd.pairs[key])
		if err != nil {
			return nil, invalidOperand(col, op, opd, "key %q: %v", key, err)
		}
		cmp := op.comparison()
		return func(b *sqlBuilder) {
			b.Printf("(%s -> %s) %s %s", ident, b.Arg(key), cmp, b.Arg(s))
		}, nil

	default:
		return nil, unsupportedLookup(col, op)
	}
}

// compileMapContains handles {key: value} and {key: [v1, v2, ...]} operands.
// Scalar pairs become a single @> test; each list-valued key matches any of
// its values.
func compileMapContains(col *Column, opd operand) (predicate, error) {
	ident := quoteIdent(col.name)
	m, err := col.mapText(opd.pairs)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 && len(opd.multi) == 0 {
		return constPredicate("TRUE"), nil
	}
	var preds []predicate
	if len(m) > 0 {
		h := toHstore(m)
		preds = append(preds, func(b *sqlBuilder) {
			b.Printf("%s @> %s::hstore", ident, b.Arg(h))
		})
	}
	for _, key := range slices.Sorted(maps.Keys(opd.multi)) {
		items := opd.multi[key]
		if len(items) == 0 {
			return constPredicate("FALSE"), nil
		}
		values := make([]string, len(items))
		for i, item := range items {
			s, err := col.valueText(item)
			if err != nil {
				return nil, invalidOperand(col, opContains, opd, "key %q item %d: %v", key, i, err)
			}
			values[i] = s
		}
		preds = append(preds, func(b *sqlBuilder) {
			b.Printf("(%s -> %s) = ANY(%s::text[])", ident, b.Arg(key), b.Arg(values))
		})
	}
	return andPredicate(preds), nil
}

func compileScalarLookup(col *Column, op lookupOp, opd operand) (predicate, error) {
	ident := quoteIdent(col.name)
	switch op {
	case opExact:
		switch opd.kind {
		case nullOperand:
			return constPredicate(ident + " IS NULL"), nil
		case stringOperand, scalarOperand:
			v := opd.value
			return func(b *sqlBuilder) {
				b.Printf("%s = %s", ident, b.Arg(v))
			}, nil
		}
		return nil, invalidOperand(col, op, opd, "expected a scalar")

	case opGt, opGte, opLt, opLte:
		if opd.kind != stringOperand && opd.kind != scalarOperand {
			return nil, invalidOperand(col, op, opd, "expected a scalar")
		}
		v, cmp := opd.value, op.comparison()
		return func(b *sqlBuilder) {
			b.Printf("%s %s %s", ident, cmp, b.Arg(v))
		}, nil

	case opIn:
		if opd.kind != listOperand {
			return nil, invalidOperand(col, op, opd, "expected a list")
		}
		if len(opd.list) == 0 {
			return constPredicate("FALSE"), nil
		}
		items := opd.list
		return func(b *sqlBuilder) {
			b.Printf("%s IN (", ident)
			for i, item := range items {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(b.Arg(item))
			}
			b.WriteString(")")
		}, nil

	case opContains:
		if opd.kind != stringOperand {
			return nil, invalidOperand(col, op, opd, "expected a string")
		}
		v := opd.value
		return func(b *sqlBuilder) {
			b.Printf("strpos(%s, %s) > 0", ident, b.Arg(v))
		}, nil

	default:
		return nil, unsupportedLookup(col, op)
	}
}

func compileGeometryLookup(col *Column, op lookupOp, opd operand) (predicate, error) {
	ident := quoteIdent(col.name)
	var fn string
	switch op {
	case opExact:
		if opd.kind == nullOperand {
			return constPredicate(ident + " IS NULL"), nil
		}
		fn = "ST_Equals"
	case opContains:
		fn = "ST_Contains"
	case opWithin:
		fn = "ST_Within"
	case opIntersects:
		fn = "ST_Intersects"
	default:
		return nil, unsupportedLookup(col, op)
	}
	if opd.kind != geometryOperand {
		return nil, invalidOperand(col, op, opd, "expected a geometry")
	}
	wkt, srid := geometryText(opd.geom), col.srid
	return func(b *sqlBuilder) {
		b.Printf("%s(%s, %s)", fn, ident, geomFromText(b, wkt, srid))
	}, nil
}
