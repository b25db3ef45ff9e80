package hstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RegisterTypes teaches conn the hstore extension type. It has the signature
// of pgxpool.Config.AfterConnect; Connect installs it there. The extension
// must already exist in the database.
func RegisterTypes(ctx context.Context, conn *pgx.Conn) error {
	var oid uint32
	err := conn.QueryRow(ctx, "SELECT 'hstore'::regtype::oid").Scan(&oid)
	if err != nil {
		return fmt.Errorf("hstore: looking up hstore type: %w", err)
	}
	conn.TypeMap().RegisterType(&pgtype.Type{
		Name:  "hstore",
		OID:   oid,
		Codec: pgtype.HstoreCodec{},
	})
	return nil
}
