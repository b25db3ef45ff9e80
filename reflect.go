package hstore

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

var typeInfoCache sync.Map

type structInfo struct {
	keyField reflect.StructField
	fields   []fieldInfo
}

type fieldInfo struct {
	field reflect.StructField
	name  string
}

func (si *structInfo) keyValue(rowVal reflect.Value) reflect.Value {
	return rowVal.Elem().FieldByIndex(si.keyField.Index)
}

func reflectType(typ reflect.Type) *structInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectTypeWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectTypeWithoutCache(typ reflect.Type) *structInfo {
	if typ.Kind() != reflect.Ptr {
		panic(fmt.Errorf("%v not a pointer", typ))
	}
	typ = typ.Elem()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v not a struct", typ))
	}
	if typ.NumField() == 0 {
		panic(fmt.Errorf("%v is an empty struct", typ))
	}
	keyField := typ.Field(0)
	if !keyField.IsExported() {
		panic(fmt.Errorf("key field %v.%s must be exported", typ, keyField.Name))
	}

	info := &structInfo{
		keyField: keyField,
	}
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := columnNameOf(f)
		if name == "-" {
			if i == 0 {
				panic(fmt.Errorf("key field %v.%s cannot be skipped", typ, f.Name))
			}
			continue
		}
		info.fields = append(info.fields, fieldInfo{f, name})
	}
	return info
}

func columnNameOf(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("db"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" {
			return name
		}
	}
	return snakeCase(f.Name)
}

// snakeCase converts Go field names to column names: ID -> id,
// UserID -> user_id, HTTPServer -> http_server.
func snakeCase(s string) string {
	runes := []rune(s)
	var buf strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					buf.WriteByte('_')
				}
			}
			buf.WriteRune(unicode.ToLower(r))
		} else {
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

func (tx *Tx) tableByRowType(rt reflect.Type) *Table {
	tbl := tx.db.schema.tablesByRowType[rt]
	if tbl == nil {
		panic(fmt.Errorf("no table defined for row type %v", rt))
	}
	return tbl
}

func tableOf[Row any](tx *Tx) *Table {
	return tx.tableByRowType(reflect.TypeFor[*Row]())
}
