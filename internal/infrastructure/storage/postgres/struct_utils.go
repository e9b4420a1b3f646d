package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns extracts all column names from struct "db" tags,
// descending into embedded structs (entity.Document and its bases).
// Columns are returned in struct order.
//
// Usage:
//
//	columns := ExtractDBColumns[reports.Report]()
//	// Returns: ["id", "deletion_mark", "version", ..., "report_no", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

func columnsOf(t reflect.Type) []string {
	layout := layoutOf(t)
	if layout == nil {
		return nil
	}
	var cols []string
	for _, f := range layout.fields {
		if f.embedded {
			cols = append(cols, columnsOf(t.Field(f.index).Type)...)
			continue
		}
		cols = append(cols, f.column)
	}
	return cols
}

// structLayout is the cached db-tag layout of one struct type.
type structLayout struct {
	fields []layoutField
}

type layoutField struct {
	index    int
	column   string
	embedded bool
}

var layoutCache sync.Map // map[reflect.Type]*structLayout

// layoutOf returns the layout of a struct type (or pointer to one), computing it once.
func layoutOf(t reflect.Type) *structLayout {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := layoutCache.Load(t); ok {
		return cached.(*structLayout)
	}

	layout := &structLayout{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			layout.fields = append(layout.fields, layoutField{index: i, embedded: true})
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		layout.fields = append(layout.fields, layoutField{index: i, column: tag})
	}

	layoutCache.Store(t, layout)
	return layout
}

// StructToMap converts a struct to a map using "db" tags.
// It only includes fields that have a "db" tag and are not ignored ("-").
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]any)
	fillMap(rv, res)
	return res
}

func fillMap(rv reflect.Value, res map[string]any) {
	layout := layoutOf(rv.Type())
	for _, f := range layout.fields {
		fv := rv.Field(f.index)
		if !f.embedded {
			res[f.column] = fv.Interface()
			continue
		}
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct {
			fillMap(fv, res)
		}
	}
}
