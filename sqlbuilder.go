package hstore

import (
	"fmt"
	"strconv"
	"strings"
)

// sqlBuilder accumulates statement text and its positional arguments. Every
// value goes through Arg; only identifiers and fixed keywords are written
// into the text.
type sqlBuilder struct {
	buf  strings.Builder
	args []any
}

func (b *sqlBuilder) Arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) WriteString(s string) {
	b.buf.WriteString(s)
}

func (b *sqlBuilder) Printf(format string, args ...any) {
	fmt.Fprintf(&b.buf, format, args...)
}

func (b *sqlBuilder) Ident(name string) {
	b.buf.WriteString(quoteIdent(name))
}

func (b *sqlBuilder) String() string {
	return b.buf.String()
}

func (b *sqlBuilder) Args() []any {
	return b.args
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// writeWhere emits " WHERE p1 AND p2 ..." for a non-empty predicate list.
func writeWhere(b *sqlBuilder, preds []predicate) {
	for i, p := range preds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		p(b)
	}
}

// predicate emits one boolean SQL expression.
type predicate func(b *sqlBuilder)

func constPredicate(sql string) predicate {
	return func(b *sqlBuilder) {
		b.WriteString(sql)
	}
}

func andPredicate(preds []predicate) predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return func(b *sqlBuilder) {
		b.WriteString("(")
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" AND ")
			}
			p(b)
		}
		b.WriteString(")")
	}
}

func notPredicate(p predicate) predicate {
	return func(b *sqlBuilder) {
		b.WriteString("NOT COALESCE(")
		p(b)
		b.WriteString(", FALSE)")
	}
}

func renderPredicate(p predicate) (string, []any) {
	var b sqlBuilder
	p(&b)
	return b.String(), b.Args()
}
