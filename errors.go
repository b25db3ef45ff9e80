package hstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUnsupportedValueKind = errors.New("unsupported value kind")
	ErrUnsupportedLookup    = errors.New("unsupported lookup")
	ErrInvalidFilterOperand = errors.New("invalid filter operand")
	ErrDanglingReference    = errors.New("dangling reference")
	ErrNotFound             = errors.New("row not found")
	ErrMultipleRows         = errors.New("multiple rows found")
	ErrUnknownColumn        = errors.New("unknown column")
)

// ValueError is returned when a value has no string form that can be stored
// in a map column.
type ValueError struct {
	Value any
	Path  string
	Err   error
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

func (e *ValueError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%v: %T at %s", e.Err, e.Value, e.Path)
	}
	return fmt.Sprintf("%v: %T", e.Err, e.Value)
}

type LookupError struct {
	Table  string
	Column string
	Lookup string
	Msg    string
	Err    error
}

func lookupErrf(tbl *Table, column, lookup string, err error, format string, args ...any) error {
	var name string
	if tbl != nil {
		name = tbl.name
	}
	return &LookupError{name, column, lookup, fmt.Sprintf(format, args...), err}
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func (e *LookupError) Error() string {
	var buf strings.Builder
	if e.Table != "" {
		buf.WriteString(e.Table)
		buf.WriteByte('.')
	}
	buf.WriteString(e.Column)
	if e.Lookup != "" {
		buf.WriteString("__")
		buf.WriteString(e.Lookup)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Err.Error())
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	return buf.String()
}

// ReferenceError reports a reference map entry whose target row is missing.
type ReferenceError struct {
	Table  string
	Column string
	Key    string
	ID     string
	Err    error
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s.%s[%q] -> %s: %v", e.Table, e.Column, e.Key, e.ID, e.Err)
}

type TableError struct {
	Table  *Table
	Column string
	Key    any
	Msg    string
	Err    error
}

func tableErrf(tbl *Table, column string, key any, err error, format string, args ...any) error {
	return &TableError{tbl, column, key, fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table.Name())
	if e.Column != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Column)
	}
	if e.Key != nil {
		fmt.Fprintf(&buf, "/%v", e.Key)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// IsConstraintViolation reports whether err is an integrity constraint
// violation raised by Postgres (SQLSTATE class 23), e.g. a NOT NULL map
// column receiving a NULL default.
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "23")
}
