package hstore

import (
	"log/slog"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

type (
	DataBag struct {
		ID   int64
		Name string
		Data Dict
	}

	Ref struct {
		ID   int64
		Name string
	}

	RefsBag struct {
		ID   int64
		Name string
		Refs Refs[Ref]
	}

	Location struct {
		ID    int64
		Name  string
		Data  Dict
		Point orb.Point
	}

	Defaults struct {
		ID int64
		A  Dict
		B  Dict `db:"bee"`
		C  Dict
	}

	Secret struct {
		Key     string `db:"k"`
		Payload Dict
		skipped int
		Ignored string `db:"-"`
	}
)

var (
	basicSchema   = NewSchema()
	dataBagsTable = AddTable[DataBag](basicSchema, "databag")
	refsTable     = AddTable[Ref](basicSchema, "ref")
	refsBagsTable = AddTable[RefsBag](basicSchema, "refsbag")
	locationTable = DefineTable(basicSchema, "location", func(b *TableBuilder[Location]) {
		b.SRID("point", 3857)
	})
	defaultsTable = DefineTable(basicSchema, "defaults", func(b *TableBuilder[Defaults]) {
		b.Default("bee", func() any { return map[string]any{"x": 1, "y": true} })
		b.Default("c", func() any { return nil })
	})
	secretsTable = AddTable[Secret](basicSchema, "secrets", SuppressContentWhenLogging)
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

// setup returns a DB without a connection; it is enough to build statements.
func setup(t testing.TB) *DB {
	t.Helper()
	return New(nil, basicSchema, Options{
		IsTesting: true,
		Logf:      t.Logf,
	})
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func assertPanics(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	fn()
}

func ptr[T any](v T) *T {
	return &v
}
