package hstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the part of pgx this package talks to. *pgxpool.Pool, *pgx.Conn
// and pgx.Tx all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type DB struct {
	q       Querier
	pool    *pgxpool.Pool
	schema  *Schema
	logf    func(format string, args ...any)
	verbose bool
	strict  bool
}

type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool

	// Pool settings, used by Connect only.
	MaxConns        int32
	ConnectTimeout  time.Duration
	MaxConnIdleTime time.Duration
}

// New wraps an existing connection, pool or transaction. The hstore type must
// already be registered on it (see RegisterTypes).
func New(q Querier, schema *Schema, opt Options) *DB {
	logf := opt.Logf
	if logf == nil {
		logf = func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...))
		}
	}
	return &DB{
		q:       q,
		schema:  schema,
		logf:    logf,
		verbose: opt.Verbose,
		strict:  opt.IsTesting,
	}
}

// Connect opens a pgx pool for dsn with hstore registered on every
// connection.
func Connect(ctx context.Context, dsn string, schema *Schema, opt Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("hstore: parsing dsn: %w", err)
	}
	if opt.MaxConns > 0 {
		cfg.MaxConns = opt.MaxConns
	}
	if opt.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opt.ConnectTimeout
	}
	if opt.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opt.MaxConnIdleTime
	}
	cfg.AfterConnect = RegisterTypes

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("hstore: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("hstore: ping: %w", err)
	}

	db := New(pool, schema, opt)
	db.pool = pool
	return db, nil
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *DB) Schema() *Schema {
	return db.schema
}

// Pool returns the pool opened by Connect, or nil when the DB wraps a
// caller-provided Querier.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// DBTx implements Txish. Statements run outside of any explicit transaction.
func (db *DB) DBTx() *Tx {
	return db.newTx(db.q, false)
}
