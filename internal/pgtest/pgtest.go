// Package pgtest provides a PostgreSQL server with the hstore and postgis
// extensions for integration tests.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DSNEnv names an environment variable pointing at an existing server. When
// set, no container is started.
const DSNEnv = "HSTORE_TEST_DSN"

const Image = "postgis/postgis:16-3.4"

// Server is a running test database.
type Server struct {
	DSN  string
	stop func(ctx context.Context) error
}

// Start returns a server from DSNEnv, or starts a container. Failing to
// reach Docker is an error, never a panic.
func Start(ctx context.Context) (srv *Server, err error) {
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		srv = &Server{DSN: dsn, stop: func(context.Context) error { return nil }}
	} else {
		srv, err = startContainer(ctx)
		if err != nil {
			return nil, err
		}
	}
	err = Prepare(ctx, srv.DSN)
	if err != nil {
		srv.Stop(ctx)
		return nil, err
	}
	return srv, nil
}

func startContainer(ctx context.Context) (srv *Server, err error) {
	defer func() {
		// testcontainers panics when no Docker host can be found
		if p := recover(); p != nil {
			srv, err = nil, fmt.Errorf("pgtest: starting container: %v", p)
		}
	}()
	ctr, err := postgres.Run(ctx,
		Image,
		postgres.WithDatabase("hstore_test"),
		postgres.WithUsername("hstore"),
		postgres.WithPassword("hstore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Second*90),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("pgtest: starting container: %w", err)
	}
	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		ctr.Terminate(ctx)
		return nil, fmt.Errorf("pgtest: connection string: %w", err)
	}
	return &Server{DSN: dsn, stop: func(ctx context.Context) error { return ctr.Terminate(ctx) }}, nil
}

func (srv *Server) Stop(ctx context.Context) error {
	return srv.stop(ctx)
}

// Prepare creates the extensions the tests need.
func Prepare(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgtest: connecting: %w", err)
	}
	defer conn.Close(ctx)
	for _, ext := range []string{"hstore", "postgis"} {
		_, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS "+ext)
		if err != nil {
			return fmt.Errorf("pgtest: creating extension %s: %w", ext, err)
		}
	}
	return nil
}

// Exec runs DDL statements in order on a fresh connection.
func Exec(ctx context.Context, dsn string, stmts ...string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgtest: connecting: %w", err)
	}
	defer conn.Close(ctx)
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgtest: %s: %w", stmt, err)
		}
	}
	return nil
}
