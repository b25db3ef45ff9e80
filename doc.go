/*
Package hstore maps Go structs to PostgreSQL tables that keep a free-form
string map per row in hstore columns, and queries those maps with
field-level lookups.

We implement:

1. Tables, registered with AddTable or DefineTable. Field 0 of the row struct
is the primary key. Column names come from the `db` tag or the snake_cased
field name.

2. Map columns (Dict), holding string keys and string values. Values of any
other kind are coerced on the way in: booleans to "true"/"false", numbers to
decimal text, lists, maps and structs to JSON. Reads return the stored
strings; Decode parses JSON values back.

3. Reference map columns (Refs[T]), holding {key -> primary key of a T row}.
They are loaded with every reference resolved to a live *T. A reference to a
missing row fails with ErrDanglingReference.

4. Queries (Objects[Row]), built from conditions such as
Lookup("data__contains", map[string]any{"b0": "1"}), composing by AND with
each other and with ordinary column and PostGIS geometry lookups.

5. Row-scoped map operations (HKeys, HPeek, HSlice, HRemove, HUpdate) which
read or change one map column in the database without loading whole rows.

# Lookups

On map and reference map columns:

	data={...}                  data = $1::hstore
	data__contains="k"          data ? $1
	data__contains=[k1, k2]     data ?& $1::text[]         (empty list: TRUE)
	data__contains={k: v}       data @> $1::hstore         (empty map: TRUE)
	data__contains={k: [a, b]}  (data -> $1) = ANY($2::text[])
	data__gt={k: v}             (data -> $1) > $2          (also gte, lt, lte)
	data__isnull=true           data IS NULL

Every key and value is a bound parameter. Identifiers are quoted.

# Concurrency

HUpdate and HRemove compile to a single UPDATE that merges or deletes keys
inside the database (col || delta, col - keys), so two concurrent updates of
different keys of the same row both survive. Whole-row Save and Query.Update
are last writer wins.

# Database setup

The hstore extension (and postgis, for geometry columns) must exist. Connect
registers the hstore type on every pool connection; when wrapping an existing
pgx connection with New, call RegisterTypes yourself.
*/
package hstore
