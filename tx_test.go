package hstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errOffline = errors.New("offline")

type statement struct {
	sql  string
	args []any
}

// recorder is a Querier that remembers statements instead of running them.
// Exec reports every statement as affecting two rows; reads fail with
// errOffline.
type recorder struct {
	stmts []statement
	tx    *recordingTx
}

func (r *recorder) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, statement{sql, args})
	return pgconn.NewCommandTag("UPDATE 2"), nil
}

func (r *recorder) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.stmts = append(r.stmts, statement{sql, args})
	return nil, errOffline
}

func (r *recorder) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	r.stmts = append(r.stmts, statement{sql, args})
	return offlineRow{}
}

func (r *recorder) Begin(ctx context.Context) (pgx.Tx, error) {
	if r.tx == nil {
		return nil, errOffline
	}
	return r.tx, nil
}

func (r *recorder) last(t testing.TB) statement {
	t.Helper()
	if len(r.stmts) == 0 {
		t.Fatalf("no statements recorded")
	}
	return r.stmts[len(r.stmts)-1]
}

type offlineRow struct{}

func (offlineRow) Scan(dest ...any) error {
	return errOffline
}

// recordingTx is a pgx.Tx that only supports the methods DB.Tx and the
// statement helpers call.
type recordingTx struct {
	pgx.Tx
	rec            *recorder
	committed      bool
	rolledBack     bool
	rollbackCtxErr error
}

func (tx *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return tx.rec.Exec(ctx, sql, args...)
}

func (tx *recordingTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *recordingTx) Rollback(ctx context.Context) error {
	tx.rolledBack = true
	tx.rollbackCtxErr = ctx.Err()
	return nil
}

func setupRecorder(t testing.TB, verbose bool) (*DB, *recorder, *[]string) {
	rec := &recorder{}
	rec.tx = &recordingTx{rec: rec}
	var logs []string
	db := New(rec, basicSchema, Options{
		IsTesting: true,
		Verbose:   verbose,
		Logf: func(format string, args ...any) {
			t.Logf(format, args...)
			logs = append(logs, fmt.Sprintf(format, args...))
		},
	})
	return db, rec, &logs
}

func TestTx_Commit(t *testing.T) {
	db, rec, logs := setupRecorder(t, true)
	err := db.Tx(context.Background(), func(tx *Tx) error {
		if !tx.IsManaged() {
			t.Errorf("tx is not managed")
		}
		_, err := Objects[DataBag](tx).ByKey(1).HRemove(context.Background(), "data", "a")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.tx.committed || rec.tx.rolledBack {
		t.Fatalf("committed = %v, rolledBack = %v", rec.tx.committed, rec.tx.rolledBack)
	}
	deepEqual(t, len(rec.stmts), 1)
	deepEqual(t, (*logs)[0], "db: BEGIN")
	deepEqual(t, (*logs)[len(*logs)-1], "db: COMMIT")
}

func TestTx_RollbackOnError(t *testing.T) {
	db, rec, _ := setupRecorder(t, false)
	boom := errors.New("boom")
	err := db.Tx(context.Background(), func(tx *Tx) error {
		return boom
	})
	if err != boom {
		t.Fatalf("err = %v, wanted boom", err)
	}
	if rec.tx.committed || !rec.tx.rolledBack {
		t.Fatalf("committed = %v, rolledBack = %v", rec.tx.committed, rec.tx.rolledBack)
	}
}

func TestTx_RollbackOnPanic(t *testing.T) {
	db, rec, _ := setupRecorder(t, false)
	err := db.Tx(context.Background(), func(tx *Tx) error {
		panic("kaboom")
	})
	var p panicked
	if !errors.As(err, &p) {
		t.Fatalf("err = %T %v, wanted panicked", err, err)
	}
	if p.reason != "kaboom" || !strings.HasPrefix(err.Error(), "panic: kaboom") {
		t.Fatalf("err = %v", err)
	}
	if !rec.tx.rolledBack {
		t.Fatalf("not rolled back")
	}
}

func TestTx_RollbackAfterCancel(t *testing.T) {
	db, rec, _ := setupRecorder(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	err := db.Tx(ctx, func(tx *Tx) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, wanted context.Canceled", err)
	}
	if !rec.tx.rolledBack || rec.tx.rollbackCtxErr != nil {
		t.Fatalf("rollback ran with a canceled context: %v", rec.tx.rollbackCtxErr)
	}
}

func TestTx_BeginFailure(t *testing.T) {
	db, rec, _ := setupRecorder(t, false)
	rec.tx = nil
	called := false
	err := db.Tx(context.Background(), func(tx *Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, errOffline) || called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}

func TestTx_Unmanaged(t *testing.T) {
	db := setup(t)
	if db.DBTx().IsManaged() {
		t.Fatalf("DBTx() is managed")
	}
	if db.DBTx().Schema() != basicSchema || db.DBTx().DB() != db {
		t.Fatalf("DBTx() is not bound to db")
	}
}
