package hstore

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

var (
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
)

// Coerce returns the string form a value is stored as inside a map column.
//
// Strings pass through untouched. Booleans become "true"/"false", numbers
// become decimal text, text marshalers use their text form, and lists, maps
// and structs become canonical JSON so that callers can decode them back with
// Decode. Values without a stable text form (nil, channels, functions, complex
// numbers) fail with ErrUnsupportedValueKind.
func Coerce(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return formatFloat(v, 64)
	}
	return coerceVal(reflect.ValueOf(v))
}

func coerceVal(val reflect.Value) (string, error) {
	if !val.IsValid() {
		return "", &ValueError{nil, "", ErrUnsupportedValueKind}
	}
	typ := val.Type()
	if typ.Implements(textMarshalerType) {
		if typ.Kind() == reflect.Pointer && val.IsNil() {
			return "", &ValueError{val.Interface(), "", ErrUnsupportedValueKind}
		}
		raw, err := val.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "", &ValueError{val.Interface(), "", err}
		}
		return string(raw), nil
	}
	switch typ.Kind() {
	case reflect.String:
		return val.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(val.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(val.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(val.Uint(), 10), nil
	case reflect.Float32:
		return formatFloat(val.Float(), 32)
	case reflect.Float64:
		return formatFloat(val.Float(), 64)
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return "", &ValueError{val.Interface(), "", ErrUnsupportedValueKind}
		}
		return coerceVal(val.Elem())
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return string(val.Bytes()), nil
		}
		return coerceJSON(val)
	case reflect.Array, reflect.Map, reflect.Struct:
		return coerceJSON(val)
	default:
		return "", &ValueError{val.Interface(), "", ErrUnsupportedValueKind}
	}
}

func formatFloat(f float64, bitSize int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &ValueError{f, "", ErrUnsupportedValueKind}
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize), nil
}

func coerceJSON(val reflect.Value) (string, error) {
	if path, bad := findUnsupported(val, "$", 0); bad.IsValid() {
		return "", &ValueError{bad.Interface(), path, ErrUnsupportedValueKind}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(val.Interface())
	if err != nil {
		return "", &ValueError{val.Interface(), "", fmt.Errorf("%w: %v", ErrUnsupportedValueKind, err)}
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// findUnsupported walks a JSON-bound value looking for kinds encoding/json
// would either reject or silently mangle.
func findUnsupported(val reflect.Value, path string, depth int) (string, reflect.Value) {
	if depth > 64 || !val.IsValid() {
		return "", reflect.Value{}
	}
	if val.Type().Implements(jsonMarshalerType) || val.Type().Implements(textMarshalerType) {
		return "", reflect.Value{}
	}
	switch val.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return path, val
	case reflect.Float32, reflect.Float64:
		if f := val.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return path, val
		}
	case reflect.Pointer, reflect.Interface:
		if !val.IsNil() {
			return findUnsupported(val.Elem(), path, depth+1)
		}
	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.Uint8 {
			return "", reflect.Value{}
		}
		for i := 0; i < val.Len(); i++ {
			if p, bad := findUnsupported(val.Index(i), fmt.Sprintf("%s[%d]", path, i), depth+1); bad.IsValid() {
				return p, bad
			}
		}
	case reflect.Map:
		iter := val.MapRange()
		for iter.Next() {
			if p, bad := findUnsupported(iter.Value(), fmt.Sprintf("%s.%v", path, iter.Key()), depth+1); bad.IsValid() {
				return p, bad
			}
		}
	case reflect.Struct:
		typ := val.Type()
		for i := 0; i < typ.NumField(); i++ {
			if !typ.Field(i).IsExported() {
				continue
			}
			if p, bad := findUnsupported(val.Field(i), path+"."+typ.Field(i).Name, depth+1); bad.IsValid() {
				return p, bad
			}
		}
	}
	return "", reflect.Value{}
}

// Decode parses a stored list, map, number or boolean back into v. Map
// columns never decode values on their own.
func Decode(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func coerceAll(m map[string]any) (map[string]string, error) {
	result := make(map[string]string, len(m))
	for k, v := range m {
		s, err := Coerce(v)
		if err != nil {
			var ve *ValueError
			if errors.As(err, &ve) && ve.Path == "" {
				ve.Path = k
			}
			return nil, err
		}
		result[k] = s
	}
	return result, nil
}
