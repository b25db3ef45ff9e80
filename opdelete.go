package hstore

import (
	"context"
	"reflect"
)

func DeleteRow[Row any](ctx context.Context, txh Txish, row *Row) (bool, error) {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	keyVal := tbl.RowKeyVal(reflect.ValueOf(row))
	return tx.DeleteByKeyVal(ctx, tbl, keyVal)
}

func DeleteByKey[Row any](ctx context.Context, txh Txish, key any) (bool, error) {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	return tx.DeleteByKey(ctx, tbl, key)
}

func (tx *Tx) DeleteByKey(ctx context.Context, tbl *Table, key any) (bool, error) {
	return tx.DeleteByKeyVal(ctx, tbl, reflect.ValueOf(key))
}

func (tx *Tx) DeleteByKeyVal(ctx context.Context, tbl *Table, keyVal reflect.Value) (bool, error) {
	keyVal = tbl.ensureCorrectKeyType(keyVal)
	var b sqlBuilder
	b.WriteString("DELETE FROM ")
	b.Ident(tbl.name)
	b.Printf(" WHERE %s = %s", quoteIdent(tbl.keyCol.name), b.Arg(keyVal.Interface()))
	n, err := tx.exec(ctx, "DELETE", tbl, &b)
	if err != nil {
		return false, err
	}
	if n == 0 && tx.db.verbose {
		tx.db.logf("db: DELETE.NOOP %s/%v", tbl.name, keyVal.Interface())
	}
	return n > 0, nil
}
