package hstore

import (
	"fmt"
	"reflect"
)

type TableBuilder[Row any] struct {
	tbl *Table
}

func DefineTable[Row any](scm *Schema, name string, f func(b *TableBuilder[Row])) *Table {
	tbl := newTable(scm, name, reflect.TypeFor[*Row]())
	b := TableBuilder[Row]{
		tbl: tbl,
	}
	if f != nil {
		f(&b)
	}
	return tbl
}

// Default sets the factory used for a nil map column when a row is created.
func (b *TableBuilder[Row]) Default(column string, f func() any) {
	col := b.col(column)
	if !col.isMap() {
		panic(fmt.Errorf("table %s: Default(%s): not a map column", b.tbl.name, column))
	}
	col.def = f
}

// SRID sets the spatial reference system of a geometry column.
func (b *TableBuilder[Row]) SRID(column string, srid int) {
	col := b.col(column)
	if col.kind != geometryColumn {
		panic(fmt.Errorf("table %s: SRID(%s): not a geometry column", b.tbl.name, column))
	}
	col.srid = srid
}

func (b *TableBuilder[Row]) SuppressContentWhenLogging() {
	b.tbl.suppressContent = true
}

func (b *TableBuilder[Row]) col(name string) *Column {
	col := b.tbl.columnsByName[name]
	if col == nil {
		panic(fmt.Errorf("table %s: no column %s", b.tbl.name, name))
	}
	return col
}
