package hstore

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/jackc/pgx/v5"
)

type Txish interface {
	DBTx() *Tx
}

type Tx struct {
	db      *DB
	q       Querier
	managed bool
}

func (db *DB) newTx(q Querier, managed bool) *Tx {
	return &Tx{
		db:      db,
		q:       q,
		managed: managed,
	}
}

// DBTx implements Txish
func (tx *Tx) DBTx() *Tx {
	return tx
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) Schema() *Schema {
	return tx.db.schema
}

// IsManaged reports whether tx runs inside DB.Tx or Tx.Tx.
func (tx *Tx) IsManaged() bool {
	return tx.managed
}

// Tx runs f inside a transaction. It commits when f returns nil, and rolls
// back when f returns an error or panics; a panic is returned as an error.
func (db *DB) Tx(ctx context.Context, f func(tx *Tx) error) error {
	return db.runTx(ctx, db.q, f)
}

// Tx runs f in a nested transaction (a savepoint when tx is managed).
func (tx *Tx) Tx(ctx context.Context, f func(tx *Tx) error) error {
	return tx.db.runTx(ctx, tx.q, f)
}

func (db *DB) runTx(ctx context.Context, q Querier, f func(tx *Tx) error) error {
	ptx, err := q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("hstore: begin: %w", err)
	}
	if db.verbose {
		db.logf("db: BEGIN")
	}
	tx := db.newTx(ptx, true)
	funcErr := safelyCall(f, tx)
	if funcErr != nil {
		rollback(ctx, db, ptx)
		return funcErr
	}
	err = ptx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("hstore: commit: %w", err)
	}
	if db.verbose {
		db.logf("db: COMMIT")
	}
	return nil
}

func rollback(ctx context.Context, db *DB, ptx pgx.Tx) {
	// the caller's context may already be canceled, which is often why f failed
	err := ptx.Rollback(context.WithoutCancel(ctx))
	if db.verbose {
		if err != nil {
			db.logf("db: ROLLBACK failed: %v", err)
		} else {
			db.logf("db: ROLLBACK")
		}
	}
}

type panicked struct {
	reason interface{}
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (tx *Tx) exec(ctx context.Context, op string, tbl *Table, b *sqlBuilder) (int64, error) {
	sql, args := b.String(), b.Args()
	tag, err := tx.q.Exec(ctx, sql, args...)
	if err != nil {
		tx.logFailure(op, tbl, sql, args, err)
		return 0, err
	}
	n := tag.RowsAffected()
	if tx.db.verbose {
		tx.db.logf("db: %s %s => %d: %s %s", op, tbl.name, n, sql, loggableArgs(tbl, args))
	}
	return n, nil
}

func (tx *Tx) query(ctx context.Context, op string, tbl *Table, b *sqlBuilder) (pgx.Rows, error) {
	sql, args := b.String(), b.Args()
	rows, err := tx.q.Query(ctx, sql, args...)
	if err != nil {
		tx.logFailure(op, tbl, sql, args, err)
		return nil, err
	}
	if tx.db.verbose {
		tx.db.logf("db: %s %s: %s %s", op, tbl.name, sql, loggableArgs(tbl, args))
	}
	return rows, nil
}

func (tx *Tx) queryRow(ctx context.Context, op string, tbl *Table, b *sqlBuilder, dest ...any) error {
	sql, args := b.String(), b.Args()
	err := tx.q.QueryRow(ctx, sql, args...).Scan(dest...)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		tx.logFailure(op, tbl, sql, args, err)
		return err
	}
	if tx.db.verbose {
		if errors.Is(err, pgx.ErrNoRows) {
			tx.db.logf("db: %s.NOTFOUND %s: %s %s", op, tbl.name, sql, loggableArgs(tbl, args))
		} else {
			tx.db.logf("db: %s %s: %s %s", op, tbl.name, sql, loggableArgs(tbl, args))
		}
	}
	return err
}

func (tx *Tx) logFailure(op string, tbl *Table, sql string, args []any, err error) {
	if tx.db.verbose || tx.db.strict {
		tx.db.logf("db: %s.FAILED %s: %s %s: %v", op, tbl.name, sql, loggableArgs(tbl, args), err)
	}
}
