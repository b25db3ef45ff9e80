package hstore

import (
	"context"
	"errors"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Row-scoped map operations read or change a single map column in the
// database without loading and saving whole rows. Reads look at the first
// matching row in query order; writes apply to every matching row in one
// statement.

// HKeys returns the keys of attr on the first matching row, sorted.
func (q *Query[Row]) HKeys(ctx context.Context, attr string) ([]string, error) {
	col, err := q.mapAttr(attr)
	if err != nil {
		return nil, err
	}
	var b sqlBuilder
	b.Printf("SELECT akeys(%s) FROM %s", quoteIdent(col.name), quoteIdent(q.tbl.name))
	q.writeTail(&b, 1)

	var keys []string
	err = q.tx.queryRow(ctx, "HKEYS", q.tbl, &b, &keys)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tableErrf(q.tbl, col.name, nil, ErrNotFound, "")
	} else if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// HPeek returns the value of key in attr on the first matching row: a string
// for map columns and a row pointer for reference maps. found is false when
// the key is absent.
func (q *Query[Row]) HPeek(ctx context.Context, attr, key string) (v any, found bool, err error) {
	col, err := q.mapAttr(attr)
	if err != nil {
		return nil, false, err
	}
	var b sqlBuilder
	b.Printf("SELECT %s -> %s FROM %s", quoteIdent(col.name), b.Arg(key), quoteIdent(q.tbl.name))
	q.writeTail(&b, 1)

	var s *string
	err = q.tx.queryRow(ctx, "HPEEK", q.tbl, &b, &s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, tableErrf(q.tbl, col.name, nil, ErrNotFound, "")
	} else if err != nil {
		return nil, false, err
	}
	if s == nil {
		return nil, false, nil
	}
	if col.kind == dictColumn {
		return *s, true, nil
	}
	targets, err := newLoader(ctx, q.tx).deref(col, Dict{key: *s})
	if err != nil {
		return nil, false, err
	}
	return targets[key].Interface(), true, nil
}

// HSlice returns the subset of keys present in attr on the first matching
// row. Values are strings for map columns and row pointers for reference
// maps.
func (q *Query[Row]) HSlice(ctx context.Context, attr string, keys []string) (map[string]any, error) {
	col, err := q.mapAttr(attr)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	var b sqlBuilder
	b.Printf("SELECT slice(%s, %s::text[]) FROM %s", quoteIdent(col.name), b.Arg(keys), quoteIdent(q.tbl.name))
	q.writeTail(&b, 1)

	var h pgtype.Hstore
	err = q.tx.queryRow(ctx, "HSLICE", q.tbl, &b, &h)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tableErrf(q.tbl, col.name, nil, ErrNotFound, "")
	} else if err != nil {
		return nil, err
	}
	d := fromHstore(h)
	result := make(map[string]any, len(d))
	if col.kind == dictColumn {
		for k, v := range d {
			result[k] = v
		}
		return result, nil
	}
	targets, err := newLoader(ctx, q.tx).deref(col, d)
	if err != nil {
		return nil, err
	}
	for k, v := range targets {
		result[k] = v.Interface()
	}
	return result, nil
}

// HRemove deletes keys from attr on every matching row and returns the
// number of rows matched. Absent keys are ignored.
func (q *Query[Row]) HRemove(ctx context.Context, attr string, keys ...string) (int64, error) {
	col, err := q.mapAttr(attr)
	if err != nil {
		return 0, err
	}
	if keys == nil {
		keys = []string{}
	}
	ident := quoteIdent(col.name)
	var b sqlBuilder
	b.Printf("UPDATE %s SET %s = %s - %s::text[]", quoteIdent(q.tbl.name), ident, ident, b.Arg(keys))
	q.writeMutationWhere(&b, 0)
	return q.tx.exec(ctx, "HREMOVE", q.tbl, &b)
}

// HUpdate merges delta into attr on every matching row and returns the
// number of rows matched. Keys not in delta are preserved. The merge runs
// inside the database, so concurrent updates of different keys do not
// overwrite each other. Values are coerced like Dict.Set; reference maps
// accept rows or raw keys.
func (q *Query[Row]) HUpdate(ctx context.Context, attr string, delta map[string]any) (int64, error) {
	col, err := q.mapAttr(attr)
	if err != nil {
		return 0, err
	}
	m, err := col.mapText(delta)
	if err != nil {
		return 0, err
	}
	ident := quoteIdent(col.name)
	var b sqlBuilder
	b.Printf("UPDATE %s SET %s = COALESCE(%s, ''::hstore) || %s::hstore", quoteIdent(q.tbl.name), ident, ident, b.Arg(toHstore(m)))
	q.writeMutationWhere(&b, 0)
	return q.tx.exec(ctx, "HUPDATE", q.tbl, &b)
}

func (q *Query[Row]) mapAttr(attr string) (*Column, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.tbl.mapColumn(attr)
}
