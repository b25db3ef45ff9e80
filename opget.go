package hstore

import (
	"context"
	"reflect"
)

// Get returns the row with the given key, or nil if there is none.
func Get[Row any](ctx context.Context, txh Txish, key any) (*Row, error) {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	rowVal, err := tx.getRowValByKeyVal(ctx, tbl, reflect.ValueOf(key))
	if err != nil || !rowVal.IsValid() {
		return nil, err
	}
	return rowVal.Interface().(*Row), nil
}

// Reload fetches a fresh copy of row, or nil if it has been deleted.
func Reload[Row any](ctx context.Context, txh Txish, row *Row) (*Row, error) {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	keyVal := tbl.RowKeyVal(reflect.ValueOf(row))
	rowVal, err := tx.getRowValByKeyVal(ctx, tbl, keyVal)
	if err != nil || !rowVal.IsValid() {
		return nil, err
	}
	return rowVal.Interface().(*Row), nil
}

func Exists[Row any](ctx context.Context, txh Txish, key any) (bool, error) {
	return Objects[Row](txh).ByKey(key).Exists(ctx)
}

func (tx *Tx) Get(ctx context.Context, tbl *Table, key any) (any, error) {
	rowVal, err := tx.getRowValByKeyVal(ctx, tbl, reflect.ValueOf(key))
	if err != nil || !rowVal.IsValid() {
		return nil, err
	}
	return rowVal.Interface(), nil
}

func (tx *Tx) getRowValByKeyVal(ctx context.Context, tbl *Table, keyVal reflect.Value) (reflect.Value, error) {
	if tbl == nil {
		panic("tbl == nil")
	}
	keyVal = tbl.ensureCorrectKeyType(keyVal)

	var b sqlBuilder
	writeSelect(&b, tbl)
	b.Printf(" WHERE %s = %s", quoteIdent(tbl.keyCol.name), b.Arg(keyVal.Interface()))
	vals, err := tx.load(ctx, "GET", tbl, &b)
	if err != nil {
		return reflect.Value{}, err
	}
	if len(vals) == 0 {
		return reflect.Value{}, nil
	}
	return vals[0], nil
}
