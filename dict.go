package hstore

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/jackc/pgx/v5/pgtype"
)

// Dict is the in-memory value of a map column: string keys, string values.
//
// A nil Dict behaves like an empty one for reads. Rows created through
// Create, New or Table.NewRow never carry a nil Dict unless a column default
// explicitly returns nil.
type Dict map[string]string

// NewDict coerces every value of m with Coerce.
func NewDict(m map[string]any) (Dict, error) {
	ss, err := coerceAll(m)
	if err != nil {
		return nil, err
	}
	return Dict(ss), nil
}

// MustDict is like NewDict, but panics on values that cannot be coerced.
func MustDict(m map[string]any) Dict {
	return must(NewDict(m))
}

// Set stores the coerced form of v under key.
func (d Dict) Set(key string, v any) error {
	s, err := Coerce(v)
	if err != nil {
		return err
	}
	d[key] = s
	return nil
}

func (d Dict) Get(key string) (string, bool) {
	v, ok := d[key]
	return v, ok
}

// Keys returns the keys in lexicographic order.
func (d Dict) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

func (d Dict) Clone() Dict {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// Equal compares keys and values; nil and empty dicts are equal.
func (d Dict) Equal(other Dict) bool {
	return maps.Equal(d, other)
}

// Decode parses the JSON text stored under key into v.
func (d Dict) Decode(key string, v any) error {
	s, ok := d[key]
	if !ok {
		return fmt.Errorf("hstore: no key %q", key)
	}
	return Decode(s, v)
}

func (d Dict) String() string {
	if d == nil {
		return "{}"
	}
	return string(must(json.Marshal(map[string]string(d))))
}

func (d Dict) hstore() pgtype.Hstore {
	return toHstore(d)
}

func toHstore(m map[string]string) pgtype.Hstore {
	h := make(pgtype.Hstore, len(m))
	for k, v := range m {
		h[k] = &v
	}
	return h
}

// fromHstore converts a scanned hstore into a Dict. SQL NULL values inside
// the hstore read as empty strings; this package never writes them.
func fromHstore(h pgtype.Hstore) Dict {
	if h == nil {
		return nil
	}
	d := make(Dict, len(h))
	for k, v := range h {
		if v != nil {
			d[k] = *v
		} else {
			d[k] = ""
		}
	}
	return d
}

var dictType = reflect.TypeFor[Dict]()

// toStringMap accepts Dict, map[string]string, map[string]any or any other
// string-keyed map and coerces its values.
func toStringMap(v any) (map[string]string, error) {
	switch v := v.(type) {
	case Dict:
		return v, nil
	case map[string]string:
		return v, nil
	case map[string]any:
		return coerceAll(v)
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Map || val.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: expected a string-keyed map, got %T", ErrInvalidFilterOperand, v)
	}
	result := make(map[string]string, val.Len())
	iter := val.MapRange()
	for iter.Next() {
		s, err := coerceVal(iter.Value())
		if err != nil {
			return nil, err
		}
		result[iter.Key().String()] = s
	}
	return result, nil
}
