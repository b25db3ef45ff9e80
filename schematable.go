package hstore

import (
	"fmt"
	"reflect"
)

type Table struct {
	schema          *Schema
	name            string
	pos             int // index in schema.tables, unstable across code changes
	rowType         reflect.Type
	rowTypePtr      reflect.Type
	rowInfo         *structInfo
	columns         []*Column
	columnsByName   map[string]*Column
	keyCol          *Column
	suppressContent bool
}

func (tbl *Table) Name() string {
	return tbl.name
}

type tableOpt int

const (
	SuppressContentWhenLogging = tableOpt(1)
)

// AddTable registers Row as the row type of the named table. Field 0 of Row
// is the primary key.
func AddTable[Row any](scm *Schema, name string, opts ...any) *Table {
	tbl := newTable(scm, name, reflect.TypeFor[*Row]())
	for _, opt := range opts {
		switch opt := opt.(type) {
		case tableOpt:
			if opt == SuppressContentWhenLogging {
				tbl.suppressContent = true
			}
		default:
			panic(fmt.Errorf("invalid option %T %v", opt, opt))
		}
	}
	return tbl
}

func newTable(scm *Schema, name string, rowPtrType reflect.Type) *Table {
	scm.init()
	if rowPtrType.Kind() != reflect.Ptr || rowPtrType.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("%s: row type must be a struct, got %v", name, rowPtrType.Elem()))
	}
	tbl := &Table{
		schema:        scm,
		name:          name,
		rowTypePtr:    rowPtrType,
		rowType:       rowPtrType.Elem(),
		rowInfo:       reflectTypeWithoutCache(rowPtrType),
		columnsByName: make(map[string]*Column),
	}
	for i, fi := range tbl.rowInfo.fields {
		if tbl.columnsByName[fi.name] != nil {
			panic(fmt.Errorf("table %s: duplicate column %s", name, fi.name))
		}
		col := newColumn(tbl, fi, i == 0)
		tbl.columns = append(tbl.columns, col)
		tbl.columnsByName[col.name] = col
	}
	tbl.keyCol = tbl.columns[0]
	scm.addTable(tbl)
	return tbl
}

func (tbl *Table) Columns() []*Column {
	return append([]*Column(nil), tbl.columns...)
}

func (tbl *Table) ColumnNamed(name string) *Column {
	return tbl.columnsByName[name]
}

func (tbl *Table) KeyColumn() *Column {
	return tbl.keyCol
}

func (tbl *Table) KeyType() reflect.Type {
	return tbl.keyCol.field.Type
}

func (tbl *Table) column(name string) (*Column, error) {
	col := tbl.columnsByName[name]
	if col == nil {
		return nil, tableErrf(tbl, name, nil, ErrUnknownColumn, "")
	}
	return col, nil
}

func (tbl *Table) mapColumn(name string) (*Column, error) {
	col, err := tbl.column(name)
	if err != nil {
		return nil, err
	}
	if !col.isMap() {
		return nil, tableErrf(tbl, name, nil, ErrUnsupportedLookup, "not a map column (%v)", col.kind)
	}
	return col, nil
}

func (tbl *Table) ensureCorrectKeyType(keyVal reflect.Value) reflect.Value {
	keyType := tbl.KeyType()
	if keyVal.Type() != keyType {
		if keyVal.CanConvert(keyType) {
			return keyVal.Convert(keyType)
		}
		panic(fmt.Errorf("%s: key must be %v, got %v %v", tbl.name, keyType, keyVal.Type(), keyVal.Interface()))
	}
	return keyVal
}

func (tbl *Table) RowKeyVal(rowVal reflect.Value) reflect.Value {
	return tbl.rowInfo.keyValue(rowVal)
}
func (tbl *Table) RowKey(row any) any {
	return tbl.RowKeyVal(reflect.ValueOf(row)).Interface()
}
func (tbl *Table) SetRowKey(row, key any) {
	tbl.SetRowKeyVal(reflect.ValueOf(row), reflect.ValueOf(key))
}
func (tbl *Table) SetRowKeyVal(rowVal, keyVal reflect.Value) {
	tbl.RowKeyVal(rowVal).Set(tbl.ensureCorrectKeyType(keyVal))
}

func (tbl *Table) RowHasZeroKey(row any) bool {
	return tbl.RowValHasZeroKey(reflect.ValueOf(row))
}

func (tbl *Table) RowValHasZeroKey(rowVal reflect.Value) bool {
	return tbl.RowKeyVal(rowVal).IsZero()
}

// KeyString returns the text a reference map stores for key.
func (tbl *Table) KeyString(key any) string {
	return must(coerceVal(tbl.ensureCorrectKeyType(reflect.ValueOf(key))))
}

// NewRowVal returns a new row with every map column set to its default.
func (tbl *Table) NewRowVal() reflect.Value {
	rowVal := reflect.New(tbl.rowType)
	ensure(tbl.applyDefaults(rowVal))
	return rowVal
}
func (tbl *Table) NewRow() any {
	return tbl.NewRowVal().Interface()
}

// applyDefaults fills nil map columns from their default factory, or with an
// empty map when there is none. A factory returning nil leaves the column nil,
// which is written as NULL.
func (tbl *Table) applyDefaults(rowVal reflect.Value) error {
	for _, col := range tbl.columns {
		if !col.isMap() {
			continue
		}
		fv := col.fieldVal(rowVal)
		if !fv.IsNil() {
			continue
		}
		if col.def == nil {
			fv.Set(reflect.MakeMap(fv.Type()))
			continue
		}
		v := col.def()
		if v == nil {
			continue
		}
		dv, err := col.convertDefault(v)
		if err != nil {
			return err
		}
		fv.Set(dv)
	}
	return nil
}

func (col *Column) convertDefault(v any) (reflect.Value, error) {
	val := reflect.ValueOf(v)
	if val.Type().AssignableTo(col.field.Type) {
		if val.Kind() == reflect.Map && !val.IsNil() {
			// factories may hand out a shared map
			clone := reflect.MakeMapWithSize(col.field.Type, val.Len())
			iter := val.MapRange()
			for iter.Next() {
				clone.SetMapIndex(iter.Key(), iter.Value())
			}
			return clone, nil
		}
		return val, nil
	}
	if col.kind == dictColumn {
		m, err := toStringMap(v)
		if err != nil {
			return reflect.Value{}, tableErrf(col.table, col.name, nil, err, "default")
		}
		return reflect.ValueOf(Dict(m).Clone()), nil
	}
	return reflect.Value{}, tableErrf(col.table, col.name, nil, nil, "default returned %T, wanted %v", v, col.field.Type)
}

func (tbl *Table) newRowVal() reflect.Value {
	return reflect.New(tbl.rowType)
}
