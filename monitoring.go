package hstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

func loggableRowVal(tbl *Table, rowVal reflect.Value) string {
	if !rowVal.IsValid() {
		return "<none>"
	}
	if tbl.suppressContent {
		return "<suppressed>"
	}
	raw, err := json.Marshal(rowVal.Interface())
	if err != nil {
		// reference cycles
		return fmt.Sprintf("%+v", rowVal.Elem().Interface())
	}
	return string(raw)
}

// loggableArgs renders statement arguments for verbose logs, hiding them
// for tables defined with SuppressContentWhenLogging.
func loggableArgs(tbl *Table, args []any) string {
	if len(args) == 0 {
		return "[]"
	}
	if tbl.suppressContent {
		return "<suppressed>"
	}
	var buf strings.Builder
	buf.WriteByte('[')
	for i, arg := range args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(loggableVal(arg))
	}
	buf.WriteByte(']')
	return buf.String()
}

func loggableVal(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case pgtype.Hstore:
		return fromHstore(v).String()
	case string:
		return fmt.Sprintf("%q", v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
