package domain

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Fields хранит значения колонок одной строки по имени колонки.
type Fields map[string]any

// Columns возвращает имена колонок в детерминированном порядке.
func (f Fields) Columns() []string {
	cols := make([]string, 0, len(f))
	for col := range f {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Clone возвращает поверхностную копию набора полей.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Record описывает строку для вставки вместе со списком обязательных колонок.
type Record struct {
	Table    string
	Fields   Fields
	Required []string
}

// Missing возвращает обязательные колонки, значение которых отсутствует или пустое.
func (r Record) Missing() []string {
	var missing []string
	for _, col := range r.Required {
		if isBlank(r.Fields[col]) {
			missing = append(missing, col)
		}
	}
	return missing
}

// Patch — структурированное частичное обновление: применяются только присутствующие ключи.
type Patch map[string]any

// Set добавляет значение в patch.
func (p Patch) Set(column string, value any) Patch {
	p[column] = value
	return p
}

// SetString добавляет строку, только если указатель не nil.
func (p Patch) SetString(column string, value *string) Patch {
	if value != nil {
		p[column] = strings.TrimSpace(*value)
	}
	return p
}

// SetInt добавляет число, только если указатель не nil.
func (p Patch) SetInt(column string, value *int) Patch {
	if value != nil {
		p[column] = *value
	}
	return p
}

// Empty сообщает, что обновлять нечего.
func (p Patch) Empty() bool {
	return len(p) == 0
}

// Fields возвращает patch как набор полей.
func (p Patch) Fields() Fields {
	return Fields(p)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case fmt.Stringer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		return strings.TrimSpace(val.String()) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
