package hstore

import (
	"context"
	"errors"
	"reflect"

	"github.com/jackc/pgx/v5"
)

// New returns a new row of Row's table with map columns set to their
// defaults.
func New[Row any](scm *Schema) *Row {
	return scm.TableByRowType(reflect.TypeFor[*Row]()).NewRow().(*Row)
}

// Create inserts row. Nil map columns get their defaults first, and the row
// is updated in place, so it reflects what was stored. A zero key is left to
// the database and read back.
func Create[Row any](ctx context.Context, txh Txish, row *Row) error {
	tx := txh.DBTx()
	return tx.Create(ctx, tableOf[Row](tx), row)
}

// Save upserts row, replacing every column of an existing row. Rows with a
// zero key are created.
func Save[Row any](ctx context.Context, txh Txish, row *Row) error {
	tx := txh.DBTx()
	return tx.Save(ctx, tableOf[Row](tx), row)
}

func (tx *Tx) Create(ctx context.Context, tbl *Table, row any) error {
	return tx.insertVal(ctx, tbl, reflect.ValueOf(row), false)
}

func (tx *Tx) Save(ctx context.Context, tbl *Table, row any) error {
	rowVal := reflect.ValueOf(row)
	return tx.insertVal(ctx, tbl, rowVal, !tbl.RowValHasZeroKey(rowVal))
}

func (tx *Tx) insertVal(ctx context.Context, tbl *Table, rowVal reflect.Value, upsert bool) error {
	if tx == nil {
		panic("nil tx")
	}
	if rowVal.Type() != tbl.rowTypePtr {
		panic(tableErrf(tbl, "", nil, nil, "expected %v, got %v", tbl.rowTypePtr, rowVal.Type()))
	}
	err := tbl.applyDefaults(rowVal)
	if err != nil {
		return err
	}

	omitKey := tbl.RowValHasZeroKey(rowVal)
	var cols []*Column
	var args []any
	for _, col := range tbl.columns {
		if col.isKey && omitKey {
			continue
		}
		arg, err := col.encode(col.fieldVal(rowVal))
		if err != nil {
			return err
		}
		cols = append(cols, col)
		args = append(args, arg)
	}

	keyIdent := quoteIdent(tbl.keyCol.name)
	var b sqlBuilder
	b.WriteString("INSERT INTO ")
	b.Ident(tbl.name)
	if len(cols) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		b.WriteString(" (")
		for i, col := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(col.name)
		}
		b.WriteString(") VALUES (")
		for i, col := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(col.placeholder(&b, args[i]))
		}
		b.WriteString(")")
	}
	if upsert {
		b.Printf(" ON CONFLICT (%s) DO ", keyIdent)
		var sets int
		for _, col := range cols {
			if col.isKey {
				continue
			}
			if sets == 0 {
				b.WriteString("UPDATE SET ")
			} else {
				b.WriteString(", ")
			}
			ident := quoteIdent(col.name)
			b.Printf("%s = EXCLUDED.%s", ident, ident)
			sets++
		}
		if sets == 0 {
			b.WriteString("NOTHING")
		}
	}
	b.Printf(" RETURNING %s", keyIdent)

	op := "INSERT"
	if upsert {
		op = "PUT"
	}
	keyVal := tbl.RowKeyVal(rowVal)
	err = tx.queryRow(ctx, op, tbl, &b, keyVal.Addr().Interface())
	if errors.Is(err, pgx.ErrNoRows) && upsert {
		// ON CONFLICT DO NOTHING returns no row for an existing key
		err = nil
	}
	if err != nil {
		return err
	}
	if tx.db.verbose {
		tx.db.logf("db: %s %s/%v => %s", op, tbl.name, keyVal.Interface(), loggableRowVal(tbl, rowVal))
	}
	return nil
}
