package hstore

import (
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/paulmach/orb"
)

type columnKind int

const (
	scalarColumn columnKind = iota
	dictColumn
	refsColumn
	geometryColumn
)

func (k columnKind) String() string {
	switch k {
	case scalarColumn:
		return "scalar"
	case dictColumn:
		return "map"
	case refsColumn:
		return "refs"
	case geometryColumn:
		return "geometry"
	default:
		return fmt.Sprintf("columnKind(%d)", int(k))
	}
}

const DefaultSRID = 4326

type Column struct {
	table *Table
	name  string
	field reflect.StructField
	kind  columnKind
	isKey bool

	refType reflect.Type // *T of Refs[T]
	srid    int
	def     func() any
}

var geometryType = reflect.TypeFor[orb.Geometry]()

func newColumn(tbl *Table, fi fieldInfo, isKey bool) *Column {
	col := &Column{
		table: tbl,
		name:  fi.name,
		field: fi.field,
		isKey: isKey,
		srid:  DefaultSRID,
	}
	ft := fi.field.Type
	switch {
	case ft == dictType:
		col.kind = dictColumn
	case ft.Kind() == reflect.Map && ft.Implements(reflect.TypeFor[refsMap]()):
		col.kind = refsColumn
		col.refType = reflect.Zero(ft).Interface().(refsMap).refTargetType()
	case ft == geometryType || ft.Implements(geometryType):
		col.kind = geometryColumn
	default:
		col.kind = scalarColumn
	}
	if isKey && col.kind != scalarColumn {
		panic(fmt.Errorf("table %s: key column %s must be a scalar, got %v", tbl.name, col.name, ft))
	}
	return col
}

func (col *Column) Name() string {
	return col.name
}

func (col *Column) Table() *Table {
	return col.table
}

func (col *Column) isMap() bool {
	return col.kind == dictColumn || col.kind == refsColumn
}

func (col *Column) targetTable() *Table {
	return col.table.schema.TableByRowType(col.refType)
}

func (col *Column) fieldVal(rowVal reflect.Value) reflect.Value {
	return rowVal.Elem().FieldByIndex(col.field.Index)
}

// valueText converts one map value to its stored text. Reference columns
// accept rows of the target table (by pointer or value) and raw keys.
func (col *Column) valueText(v any) (string, error) {
	if col.kind == refsColumn && v != nil {
		val := reflect.ValueOf(v)
		if val.Type() == col.refType || val.Type() == col.refType.Elem() {
			return refID(val)
		}
	}
	return Coerce(v)
}

func (col *Column) mapText(m map[string]any) (map[string]string, error) {
	result := make(map[string]string, len(m))
	for k, v := range m {
		s, err := col.valueText(v)
		if err != nil {
			return nil, tableErrf(col.table, col.name, nil, err, "key %q", k)
		}
		result[k] = s
	}
	return result, nil
}

// encode returns the bind argument for the field value fv. Nil maps and nil
// geometries are bound as SQL NULL.
func (col *Column) encode(fv reflect.Value) (any, error) {
	switch col.kind {
	case dictColumn:
		if fv.IsNil() {
			return nil, nil
		}
		return fv.Interface().(Dict).hstore(), nil
	case refsColumn:
		if fv.IsNil() {
			return nil, nil
		}
		ids := make(map[string]string, fv.Len())
		iter := fv.MapRange()
		for iter.Next() {
			id, err := refID(iter.Value())
			if err != nil {
				return nil, tableErrf(col.table, col.name, nil, err, "key %q", iter.Key().String())
			}
			ids[iter.Key().String()] = id
		}
		return toHstore(ids), nil
	case geometryColumn:
		if (fv.Kind() == reflect.Interface || fv.Kind() == reflect.Pointer) && fv.IsNil() {
			return nil, nil
		}
		return geometryText(fv.Interface().(orb.Geometry)), nil
	default:
		return fv.Interface(), nil
	}
}

// encodeAny is like encode, but accepts loosely typed input from Update.
func (col *Column) encodeAny(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.kind {
	case dictColumn, refsColumn:
		if fv := reflect.ValueOf(v); fv.Type() == col.field.Type {
			return col.encode(fv)
		}
		m, err := toAnyMap(v)
		if err != nil {
			return nil, tableErrf(col.table, col.name, nil, err, "")
		}
		ss, err := col.mapText(m)
		if err != nil {
			return nil, err
		}
		return toHstore(ss), nil
	case geometryColumn:
		g, ok := v.(orb.Geometry)
		if !ok {
			return nil, tableErrf(col.table, col.name, nil, ErrInvalidFilterOperand, "expected orb.Geometry, got %T", v)
		}
		return geometryText(g), nil
	default:
		return v, nil
	}
}

// placeholder wraps a bind parameter reference with the cast the column needs.
func (col *Column) placeholder(b *sqlBuilder, arg any) string {
	switch col.kind {
	case dictColumn, refsColumn:
		return b.Arg(arg) + "::hstore"
	case geometryColumn:
		return geomFromText(b, arg, col.srid)
	default:
		return b.Arg(arg)
	}
}

// selectExpr is the expression the column is read with.
func (col *Column) selectExpr() string {
	if col.kind == geometryColumn {
		return "ST_AsText(" + quoteIdent(col.name) + ")"
	}
	return quoteIdent(col.name)
}

// scanTarget returns where pgx should scan the column and a function that
// moves the scanned value into the row.
func (col *Column) scanTarget(rowVal reflect.Value) (any, func(ld *loader) error) {
	fv := col.fieldVal(rowVal)
	switch col.kind {
	case dictColumn:
		var h pgtype.Hstore
		return &h, func(*loader) error {
			fv.Set(reflect.ValueOf(fromHstore(h)))
			return nil
		}
	case refsColumn:
		var h pgtype.Hstore
		return &h, func(ld *loader) error {
			if h == nil {
				fv.Set(reflect.Zero(fv.Type()))
				return nil
			}
			ld.addPending(col, rowVal, fromHstore(h))
			return nil
		}
	case geometryColumn:
		var s *string
		return &s, func(*loader) error {
			if s == nil {
				fv.Set(reflect.Zero(fv.Type()))
				return nil
			}
			g, err := parseGeometry(*s)
			if err != nil {
				return tableErrf(col.table, col.name, nil, err, "")
			}
			gv := reflect.ValueOf(g)
			if !gv.Type().AssignableTo(fv.Type()) {
				return tableErrf(col.table, col.name, nil, nil, "stored %T does not fit %v", g, fv.Type())
			}
			fv.Set(gv)
			return nil
		}
	default:
		return fv.Addr().Interface(), nil
	}
}

func toAnyMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Map || val.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: expected a string-keyed map, got %T", ErrInvalidFilterOperand, v)
	}
	m := make(map[string]any, val.Len())
	iter := val.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, nil
}
