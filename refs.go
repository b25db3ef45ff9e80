package hstore

import (
	"maps"
	"reflect"
	"slices"
)

// Refs is the in-memory value of a reference map column. It is stored as an
// hstore of {key -> referenced row key} and loaded with every reference
// resolved to a live row of T's table.
type Refs[T any] map[string]*T

type refsMap interface {
	refTargetType() reflect.Type
}

func (r Refs[T]) refTargetType() reflect.Type {
	return reflect.TypeFor[*T]()
}

// IDs returns the stored form of r: the coerced key of each referenced row.
func (r Refs[T]) IDs() (map[string]string, error) {
	if r == nil {
		return nil, nil
	}
	ids := make(map[string]string, len(r))
	for k, v := range r {
		id, err := refID(reflect.ValueOf(v))
		if err != nil {
			return nil, err
		}
		ids[k] = id
	}
	return ids, nil
}

// Keys returns the keys in lexicographic order.
func (r Refs[T]) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// Equal reports whether r and other reference the same set of (key, row key)
// pairs. Pointer identity of the referenced rows does not matter.
func (r Refs[T]) Equal(other Refs[T]) bool {
	a, err := r.IDs()
	if err != nil {
		return false
	}
	b, err := other.IDs()
	if err != nil {
		return false
	}
	return maps.Equal(a, b)
}

// refID returns the coerced primary key of a row pointer or row struct.
func refID(val reflect.Value) (string, error) {
	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return "", &ValueError{val.Interface(), "", ErrUnsupportedValueKind}
		}
		val = val.Elem()
	}
	si := reflectType(reflect.PointerTo(val.Type()))
	return coerceVal(val.FieldByIndex(si.keyField.Index))
}
