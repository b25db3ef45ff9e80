package hstore

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestIsConstraintViolation(t *testing.T) {
	notNull := &pgconn.PgError{Code: "23502", Message: "null value in column"}
	if !IsConstraintViolation(fmt.Errorf("insert: %w", notNull)) {
		t.Errorf("23502 is not a constraint violation")
	}
	if IsConstraintViolation(&pgconn.PgError{Code: "42P01"}) {
		t.Errorf("42P01 is a constraint violation")
	}
	if IsConstraintViolation(errors.New("23502")) {
		t.Errorf("plain error is a constraint violation")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{lookupErrf(dataBagsTable, "data", "gt", ErrInvalidFilterOperand, "map operand"),
			"databag.data__gt: invalid filter operand: map operand"},
		{lookupErrf(nil, "data", "", ErrUnknownColumn, ""),
			"data: unknown column"},
		{tableErrf(dataBagsTable, "", nil, ErrNotFound, ""),
			"databag: row not found"},
		{tableErrf(dataBagsTable, "data", 5, ErrUnsupportedValueKind, "key %q", "k"),
			`databag.data/5: key "k": unsupported value kind`},
		{&ReferenceError{"refsbag", "refs", "a", "42", ErrDanglingReference},
			`refsbag.refs["a"] -> 42: dangling reference`},
		{&ValueError{func() {}, "a.b", ErrUnsupportedValueKind},
			"unsupported value kind: func() at a.b"},
	}
	for _, tt := range tests {
		deepEqual(t, tt.err.Error(), tt.want)
	}
}

func TestLoggableArgs(t *testing.T) {
	args := []any{nil, "a\"b", int64(5), pgtype.Hstore{"k": ptr("v")}, []string{"x"}}
	deepEqual(t, loggableArgs(dataBagsTable, args), `[NULL, "a\"b", 5, {"k":"v"}, ["x"]]`)
	deepEqual(t, loggableArgs(secretsTable, args), "<suppressed>")
	deepEqual(t, loggableArgs(secretsTable, nil), "[]")
}

func TestLoggableRowVal(t *testing.T) {
	row := &DataBag{ID: 1, Name: "n", Data: Dict{"k": "v"}}
	deepEqual(t, loggableRowVal(dataBagsTable, reflect.ValueOf(row)), `{"ID":1,"Name":"n","Data":{"k":"v"}}`)
	deepEqual(t, loggableRowVal(secretsTable, reflect.ValueOf(&Secret{Key: "k"})), "<suppressed>")

	// cycles cannot be marshaled
	self := &cycle{ID: 1}
	self.Next = self
	s := loggableRowVal(dataBagsTable, reflect.ValueOf(self))
	if s == "" {
		t.Errorf("empty rendering of a cyclic row")
	}
}

type cycle struct {
	ID   int
	Next *cycle
}
