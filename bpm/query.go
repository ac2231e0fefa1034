package bpm

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// Param is a single query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of query parameters. Order is preserved on the wire.
type Params []Param

// Add appends a parameter and returns the extended list.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// EncodeQuery renders p as "?k1=v1&k2=v2", escaping each key and value as a URI
// component. An empty list renders as "".
func EncodeQuery(p Params) string {
	if len(p) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteByte('?')
	for i, kv := range p {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(escapeComponent(kv.Key))
		sb.WriteByte('=')
		sb.WriteString(escapeComponent(kv.Value))
	}
	return sb.String()
}

// componentUnescaper undoes the escapes url.QueryEscape applies beyond URI
// component rules: spaces are %20 and !'()* stay literal.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent escapes s for use as a query key or value.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// ParamsOf converts a struct of optional filters into Params, in field declaration
// order. Parameter names come from json tags. Nil pointers and zero non-pointer
// fields are skipped; slices expand into repeated parameters.
func ParamsOf(v any) (Params, error) {
	if v == nil {
		return nil, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("query parameters must come from a struct, got %T", v)
	}

	rt := rv.Type()
	var params Params
	for i := range rt.NumField() {
		field := rt.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if !field.IsExported() || name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		fv := rv.Field(i)
		if fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			fv = fv.Elem()
		}

		styled, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("rendering query parameter %s: %w", name, err)
		}
		values, err := url.ParseQuery(styled)
		if err != nil {
			return nil, fmt.Errorf("rendering query parameter %s: %w", name, err)
		}
		for _, value := range values[name] {
			params = append(params, Param{Key: name, Value: value})
		}
	}

	return params, nil
}
