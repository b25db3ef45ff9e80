package hstore

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCoerce(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	tm := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		in  any
		out string
	}{
		{"", ""},
		{"plain", "plain"},
		{`it's 100% \ -- "quoted"` + "\n*", `it's 100% \ -- "quoted"` + "\n*"},
		{"Привет, мир / مرحبا بالعالم / 日本語", "Привет, мир / مرحبا بالعالم / 日本語"},
		{[]byte("bytes"), "bytes"},
		{true, "true"},
		{false, "false"},
		{0, "0"},
		{-42, "-42"},
		{int8(7), "7"},
		{uint64(math.MaxUint64), "18446744073709551615"},
		{1.5, "1.5"},
		{float32(0.25), "0.25"},
		{1e21, "1000000000000000000000"},
		{ptr(12), "12"},
		{id, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{tm, "2024-03-01T12:30:00Z"},
		{[]int{1, 2, 3}, "[1,2,3]"},
		{[]any{"a", 1, true, nil}, `["a",1,true,null]`},
		{[2]string{"x", "y"}, `["x","y"]`},
		{map[string]any{"b": 2, "a": "<&>"}, `{"a":"<&>","b":2}`},
		{struct {
			Name string `json:"name"`
			N    int    `json:"n"`
		}{"z", 3}, `{"name":"z","n":3}`},
	}
	for _, tt := range tests {
		got, err := Coerce(tt.in)
		if err != nil {
			t.Errorf("Coerce(%#v) failed: %v", tt.in, err)
		} else if got != tt.out {
			t.Errorf("Coerce(%#v) = %q, wanted %q", tt.in, got, tt.out)
		}
	}
}

func TestCoerce_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		in   any
		path string
	}{
		{"nil", nil, ""},
		{"nil pointer", (*int)(nil), ""},
		{"chan", make(chan int), ""},
		{"func", func() {}, ""},
		{"complex", complex(1, 2), ""},
		{"NaN", math.NaN(), ""},
		{"Inf", math.Inf(1), ""},
		{"nested func", map[string]any{"f": func() {}}, "$.f"},
		{"nested chan in list", []any{1, make(chan int)}, "$[1]"},
		{"nested NaN", []float64{1, math.NaN()}, "$[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(tt.in)
			if !errors.Is(err, ErrUnsupportedValueKind) {
				t.Fatalf("Coerce = %v, wanted ErrUnsupportedValueKind", err)
			}
			var ve *ValueError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %T, wanted *ValueError", err)
			}
			if ve.Path != tt.path {
				t.Errorf("ValueError.Path = %q, wanted %q", ve.Path, tt.path)
			}
		})
	}
}

func TestCoerceAll_ReportsKey(t *testing.T) {
	_, err := coerceAll(map[string]any{"ok": 1, "bad": make(chan int)})
	var ve *ValueError
	if !errors.As(err, &ve) {
		t.Fatalf("coerceAll = %v, wanted *ValueError", err)
	}
	if ve.Path != "bad" {
		t.Fatalf("ValueError.Path = %q, wanted %q", ve.Path, "bad")
	}
}

func TestDecode(t *testing.T) {
	s, err := Coerce([]any{"a", 1.5, false})
	if err != nil {
		t.Fatal(err)
	}
	var list []any
	if err := Decode(s, &list); err != nil {
		t.Fatalf("Decode(%q) failed: %v", s, err)
	}
	deepEqual(t, list, []any{"a", 1.5, false})

	var b bool
	if err := Decode("true", &b); err != nil || !b {
		t.Fatalf("Decode(true) = (%v, %v), wanted (true, nil)", b, err)
	}

	if err := Decode("not json", &b); err == nil {
		t.Fatalf("Decode(not json) succeeded, wanted error")
	}
}
