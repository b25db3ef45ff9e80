package hstore

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Query selects rows of one table. Queries are immutable: every method that
// refines a query returns a new one and leaves the receiver untouched.
//
// A condition that fails to compile does not panic; the error is recorded,
// returned by Err, and returned by every terminal operation before any
// statement is sent.
type Query[Row any] struct {
	tx    *Tx
	tbl   *Table
	preds []predicate
	order []orderTerm
	limit int
	err   error
}

type orderTerm struct {
	col  *Column
	desc bool
}

func Objects[Row any](txh Txish) *Query[Row] {
	tx := txh.DBTx()
	return &Query[Row]{
		tx:  tx,
		tbl: tableOf[Row](tx),
	}
}

func (q *Query[Row]) clone() *Query[Row] {
	nq := *q
	nq.preds = slices.Clip(q.preds)
	nq.order = slices.Clip(q.order)
	return &nq
}

func (q *Query[Row]) Table() *Table {
	return q.tbl
}

func (q *Query[Row]) Err() error {
	return q.err
}

func (q *Query[Row]) compile(conds []Cond) ([]predicate, error) {
	preds := make([]predicate, 0, len(conds))
	for _, c := range conds {
		p, err := c.compile(q.tbl)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Filter narrows the query to rows matching all conds.
func (q *Query[Row]) Filter(conds ...Cond) *Query[Row] {
	nq := q.clone()
	if nq.err != nil {
		return nq
	}
	preds, err := q.compile(conds)
	if err != nil {
		nq.err = err
		return nq
	}
	nq.preds = append(nq.preds, preds...)
	return nq
}

// Where is Filter for a mapping of "column__lookup" expressions.
func (q *Query[Row]) Where(kv map[string]any) *Query[Row] {
	return q.Filter(Where(kv)...)
}

// Exclude drops rows matching all conds. Rows for which the conditions are
// NULL are kept.
func (q *Query[Row]) Exclude(conds ...Cond) *Query[Row] {
	nq := q.clone()
	if nq.err != nil || len(conds) == 0 {
		return nq
	}
	preds, err := q.compile(conds)
	if err != nil {
		nq.err = err
		return nq
	}
	nq.preds = append(nq.preds, notPredicate(andPredicate(preds)))
	return nq
}

func (q *Query[Row]) ByKey(key any) *Query[Row] {
	keyVal := q.tbl.ensureCorrectKeyType(reflect.ValueOf(key))
	return q.Filter(Lookup(q.tbl.keyCol.name, keyVal.Interface()))
}

// OrderBy sets the sort order; prefix a column with "-" for descending.
// Without OrderBy, rows come in primary key order.
func (q *Query[Row]) OrderBy(columns ...string) *Query[Row] {
	nq := q.clone()
	nq.order = nil
	for _, name := range columns {
		desc := strings.HasPrefix(name, "-")
		col, err := q.tbl.column(strings.TrimPrefix(name, "-"))
		if err != nil {
			if nq.err == nil {
				nq.err = err
			}
			return nq
		}
		nq.order = append(nq.order, orderTerm{col, desc})
	}
	return nq
}

func (q *Query[Row]) Limit(n int) *Query[Row] {
	nq := q.clone()
	nq.limit = n
	return nq
}

func (q *Query[Row]) writeOrder(b *sqlBuilder) {
	b.WriteString(" ORDER BY ")
	if len(q.order) == 0 {
		b.Ident(q.tbl.keyCol.name)
		return
	}
	for i, o := range q.order {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(o.col.name)
		if o.desc {
			b.WriteString(" DESC")
		}
	}
}

func (q *Query[Row]) writeLimit(b *sqlBuilder, limit int) {
	if limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
}

// writeTail emits WHERE, ORDER BY and LIMIT for a single-table read, with
// limit overriding the query's own when positive.
func (q *Query[Row]) writeTail(b *sqlBuilder, limit int) {
	writeWhere(b, q.preds)
	q.writeOrder(b)
	if limit <= 0 {
		limit = q.limit
	}
	q.writeLimit(b, limit)
}

// writeMutationWhere selects the rows an UPDATE, DELETE or count applies to.
// A limited query selects its rows by key through a subquery, since none of
// them accepts LIMIT directly.
func (q *Query[Row]) writeMutationWhere(b *sqlBuilder, limit int) {
	if limit <= 0 {
		limit = q.limit
	}
	if limit <= 0 {
		writeWhere(b, q.preds)
		return
	}
	key := quoteIdent(q.tbl.keyCol.name)
	b.Printf(" WHERE %s IN (SELECT %s FROM %s", key, key, quoteIdent(q.tbl.name))
	q.writeTail(b, limit)
	b.WriteString(")")
}

// SQL returns the SELECT statement the query runs, for logging and tests.
func (q *Query[Row]) SQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	var b sqlBuilder
	writeSelect(&b, q.tbl)
	q.writeTail(&b, 0)
	return b.String(), b.Args(), nil
}

func (q *Query[Row]) all(ctx context.Context, op string, limit int) ([]*Row, error) {
	if q.err != nil {
		return nil, q.err
	}
	var b sqlBuilder
	writeSelect(&b, q.tbl)
	q.writeTail(&b, limit)
	vals, err := q.tx.load(ctx, op, q.tbl, &b)
	if err != nil {
		return nil, err
	}
	result := make([]*Row, len(vals))
	for i, v := range vals {
		result[i] = v.Interface().(*Row)
	}
	return result, nil
}

func (q *Query[Row]) All(ctx context.Context) ([]*Row, error) {
	return q.all(ctx, "SELECT", 0)
}

// First returns the first matching row, or ErrNotFound.
func (q *Query[Row]) First(ctx context.Context) (*Row, error) {
	rows, err := q.all(ctx, "FIRST", 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, tableErrf(q.tbl, "", nil, ErrNotFound, "")
	}
	return rows[0], nil
}

// Get returns the only matching row. It fails with ErrNotFound when nothing
// matches and with ErrMultipleRows when more than one row does.
func (q *Query[Row]) Get(ctx context.Context) (*Row, error) {
	rows, err := q.all(ctx, "GET", 2)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, tableErrf(q.tbl, "", nil, ErrNotFound, "")
	case 1:
		return rows[0], nil
	default:
		return nil, tableErrf(q.tbl, "", nil, ErrMultipleRows, "")
	}
}

func (q *Query[Row]) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	var b sqlBuilder
	b.WriteString("SELECT count(*) FROM ")
	b.Ident(q.tbl.name)
	q.writeMutationWhere(&b, 0)
	var n int64
	err := q.tx.queryRow(ctx, "COUNT", q.tbl, &b, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (q *Query[Row]) Exists(ctx context.Context) (bool, error) {
	if q.err != nil {
		return false, q.err
	}
	var b sqlBuilder
	b.WriteString("SELECT EXISTS (SELECT 1 FROM ")
	b.Ident(q.tbl.name)
	writeWhere(&b, q.preds)
	b.WriteString(")")
	var found bool
	err := q.tx.queryRow(ctx, "EXISTS", q.tbl, &b, &found)
	if err != nil {
		return false, err
	}
	return found, nil
}

// Update replaces whole column values on every matching row. Map columns
// accept Dict, Refs, or any string-keyed map, coerced like Dict.Set.
func (q *Query[Row]) Update(ctx context.Context, values map[string]any) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if len(values) == 0 {
		return 0, nil
	}
	names := slices.Sorted(maps.Keys(values))

	var b sqlBuilder
	b.WriteString("UPDATE ")
	b.Ident(q.tbl.name)
	b.WriteString(" SET ")
	for i, name := range names {
		col, err := q.tbl.column(name)
		if err != nil {
			return 0, err
		}
		if col.isKey {
			return 0, tableErrf(q.tbl, name, nil, nil, "cannot update the key column")
		}
		arg, err := col.encodeAny(values[name])
		if err != nil {
			return 0, err
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.Printf("%s = %s", quoteIdent(col.name), col.placeholder(&b, arg))
	}
	q.writeMutationWhere(&b, 0)
	return q.tx.exec(ctx, "UPDATE", q.tbl, &b)
}

func (q *Query[Row]) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	var b sqlBuilder
	b.WriteString("DELETE FROM ")
	b.Ident(q.tbl.name)
	q.writeMutationWhere(&b, 0)
	return q.tx.exec(ctx, "DELETE", q.tbl, &b)
}

func (q *Query[Row]) String() string {
	sql, args, err := q.SQL()
	if err != nil {
		return fmt.Sprintf("<invalid query: %v>", err)
	}
	return sql + " " + loggableArgs(q.tbl, args)
}
