package hstore

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
)

// loader reads rows and resolves their reference maps. Referenced rows are
// fetched in one batch per target table and round, and every row is kept in
// an identity map, so reference cycles terminate and a row referenced twice
// is loaded once.
type loader struct {
	ctx      context.Context
	tx       *Tx
	identity map[*Table]map[string]reflect.Value
	pending  []pendingRefs
}

type pendingRefs struct {
	col    *Column
	rowVal reflect.Value
	ids    Dict
}

func newLoader(ctx context.Context, tx *Tx) *loader {
	return &loader{
		ctx:      ctx,
		tx:       tx,
		identity: make(map[*Table]map[string]reflect.Value),
	}
}

func (ld *loader) addPending(col *Column, rowVal reflect.Value, ids Dict) {
	ld.pending = append(ld.pending, pendingRefs{col, rowVal, ids})
}

func (ld *loader) lookup(tbl *Table, id string) (reflect.Value, bool) {
	rowVal, ok := ld.identity[tbl][id]
	return rowVal, ok
}

func (ld *loader) register(tbl *Table, id string, rowVal reflect.Value) {
	m := ld.identity[tbl]
	if m == nil {
		m = make(map[string]reflect.Value)
		ld.identity[tbl] = m
	}
	m[id] = rowVal
}

func writeSelect(b *sqlBuilder, tbl *Table) {
	b.WriteString("SELECT ")
	for i, col := range tbl.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.selectExpr())
	}
	b.WriteString(" FROM ")
	b.Ident(tbl.name)
}

// load runs a statement built by writeSelect and returns fully resolved rows.
func (tx *Tx) load(ctx context.Context, op string, tbl *Table, b *sqlBuilder) ([]reflect.Value, error) {
	rows, err := tx.query(ctx, op, tbl, b)
	if err != nil {
		return nil, err
	}
	ld := newLoader(ctx, tx)
	result, err := ld.scanRows(tbl, rows)
	if err != nil {
		return nil, err
	}
	if err := ld.resolve(); err != nil {
		return nil, err
	}
	return result, nil
}

func (ld *loader) scanRows(tbl *Table, rows pgx.Rows) ([]reflect.Value, error) {
	defer rows.Close()
	var result []reflect.Value
	dests := make([]any, len(tbl.columns))
	var finishers []func(*loader) error
	for rows.Next() {
		rowVal := tbl.newRowVal()
		finishers = finishers[:0]
		for i, col := range tbl.columns {
			dest, fin := col.scanTarget(rowVal)
			dests[i] = dest
			if fin != nil {
				finishers = append(finishers, fin)
			}
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, tableErrf(tbl, "", nil, err, "scanning row")
		}

		id, err := coerceVal(tbl.RowKeyVal(rowVal))
		if err != nil {
			return nil, tableErrf(tbl, "", nil, err, "row key")
		}
		if existing, ok := ld.lookup(tbl, id); ok {
			result = append(result, existing)
			continue
		}
		for _, fin := range finishers {
			if err := fin(ld); err != nil {
				return nil, err
			}
		}
		ld.register(tbl, id, rowVal)
		result = append(result, rowVal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// fetch loads the rows of tbl with the given keys into the identity map.
// Missing rows are simply absent afterwards.
func (ld *loader) fetch(tbl *Table, ids []string) error {
	var b sqlBuilder
	writeSelect(&b, tbl)
	b.Printf(" WHERE %s::text = ANY(%s::text[])", quoteIdent(tbl.keyCol.name), b.Arg(ids))
	rows, err := ld.tx.query(ld.ctx, "DEREF", tbl, &b)
	if err != nil {
		return err
	}
	_, err = ld.scanRows(tbl, rows)
	return err
}

func (ld *loader) fetchMissing(tbl *Table, ids []string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if _, ok := ld.lookup(tbl, id); !ok && !seen[id] {
			seen[id] = true
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return ld.fetch(tbl, missing)
}

// resolve fills every pending reference map, fetching targets as needed.
// Fetched rows may add pending maps of their own; those are handled in
// the next round.
func (ld *loader) resolve() error {
	for len(ld.pending) > 0 {
		batch := ld.pending
		ld.pending = nil

		var order []*Table
		wanted := make(map[*Table][]string)
		for _, p := range batch {
			tgt := p.col.targetTable()
			if _, ok := wanted[tgt]; !ok {
				order = append(order, tgt)
			}
			for _, k := range p.ids.Keys() {
				wanted[tgt] = append(wanted[tgt], p.ids[k])
			}
		}
		for _, tgt := range order {
			if err := ld.fetchMissing(tgt, wanted[tgt]); err != nil {
				return err
			}
		}

		for _, p := range batch {
			tgt := p.col.targetTable()
			fv := p.col.fieldVal(p.rowVal)
			m := reflect.MakeMapWithSize(fv.Type(), len(p.ids))
			for _, k := range p.ids.Keys() {
				id := p.ids[k]
				target, ok := ld.lookup(tgt, id)
				if !ok {
					return &ReferenceError{p.col.table.name, p.col.name, k, id, ErrDanglingReference}
				}
				m.SetMapIndex(reflect.ValueOf(k), target)
			}
			fv.Set(m)
		}
	}
	return nil
}

// deref resolves reference ids of col to live rows, keyed like ids.
func (ld *loader) deref(col *Column, ids Dict) (map[string]reflect.Value, error) {
	tgt := col.targetTable()
	keys := ids.Keys()
	all := make([]string, len(keys))
	for i, k := range keys {
		all[i] = ids[k]
	}
	if err := ld.fetchMissing(tgt, all); err != nil {
		return nil, err
	}
	if err := ld.resolve(); err != nil {
		return nil, err
	}
	result := make(map[string]reflect.Value, len(ids))
	for _, k := range keys {
		target, ok := ld.lookup(tgt, ids[k])
		if !ok {
			return nil, &ReferenceError{col.table.name, col.name, k, ids[k], ErrDanglingReference}
		}
		result[k] = target
	}
	return result, nil
}
