package edn

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

var valueType = reflect.TypeOf(Value{})

// Marshal renders v as EDN text.
//
// Structs render as maps keyed by keyword, fields in declaration order.
// A field's keyword is its name lowercased, overridden by an `edn:"name"`
// tag; a tag of "-" skips the field. Go maps render sorted by key, nil
// pointers and interfaces render as nil, and byte slices render as
// vectors of integers like any other slice. A Value renders as itself.
func Marshal(v any) ([]byte, error) {
	return appendMarshal(nil, reflect.ValueOf(v))
}

func appendMarshal(dst []byte, rv reflect.Value) ([]byte, error) {
	if !rv.IsValid() {
		return append(dst, "nil"...), nil
	}
	if rv.Type() == valueType {
		return rv.Interface().(Value).Append(dst), nil
	}
	switch rv.Kind() {
	case reflect.Bool:
		return strconv.AppendBool(dst, rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.AppendInt(dst, rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.AppendUint(dst, rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.AppendFloat(dst, rv.Float(), 'f', -1, 64), nil
	case reflect.String:
		dst = append(dst, '"')
		dst = append(dst, rv.String()...)
		return append(dst, '"'), nil
	case reflect.Slice, reflect.Array:
		dst = append(dst, '[')
		for i := range rv.Len() {
			if i > 0 {
				dst = append(dst, ' ')
			}
			var err error
			if dst, err = appendMarshal(dst, rv.Index(i)); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	case reflect.Map:
		return appendMap(dst, rv)
	case reflect.Struct:
		return appendStruct(dst, rv)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return append(dst, "nil"...), nil
		}
		return appendMarshal(dst, rv.Elem())
	}
	return nil, fmt.Errorf("edn: unsupported type %s", rv.Type())
}

func appendMap(dst []byte, rv reflect.Value) ([]byte, error) {
	type entry struct {
		key Value
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := keyValue(iter.Key())
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{k, iter.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int { return a.key.Compare(b.key) })

	dst = append(dst, '{')
	for i, e := range entries {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = e.key.Append(dst)
		dst = append(dst, ' ')
		var err error
		if dst, err = appendMarshal(dst, e.val); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

// keyValue converts a Go map key into a Value so entries can sort.
func keyValue(rv reflect.Value) (Value, error) {
	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, fmt.Errorf("edn: map key %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.String:
		return Str(rv.String()), nil
	}
	return Value{}, fmt.Errorf("edn: unsupported map key type %s", rv.Type())
}

func appendStruct(dst []byte, rv reflect.Value) ([]byte, error) {
	dst = append(dst, '{')
	t := rv.Type()
	first := true
	for i := range t.NumField() {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		name := fieldName(f)
		if name == "" {
			continue
		}
		if !first {
			dst = append(dst, ", "...)
		}
		first = false
		dst = append(dst, ':')
		dst = append(dst, name...)
		dst = append(dst, ' ')
		var err error
		if dst, err = appendMarshal(dst, rv.Field(i)); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("edn"); ok {
		if tag == "-" {
			return ""
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

// Unmarshal parses data and stores the result in the value pointed to
// by v.
//
// Struct fields match map keys written as keywords or as strings; keys
// with no matching field are ignored. Sets decode into slices in sorted
// order, tagged elements decode as their inner value, and rationals
// decode into floats by division. A *Value or empty interface target
// receives the parsed form unchanged.
func Unmarshal(data []byte, v any) error {
	parsed, err := ReadString(string(data))
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("edn: Unmarshal target must be a non-nil pointer, got %T", v)
	}
	return assign(parsed, rv.Elem())
}

func assign(val Value, rv reflect.Value) error {
	if rv.Type() == valueType {
		rv.Set(reflect.ValueOf(val))
		return nil
	}
	switch rv.Kind() {
	case reflect.Pointer:
		if val.kind == KindNil {
			rv.SetZero()
			return nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return assign(val, rv.Elem())
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(val))
			return nil
		}
		return fmt.Errorf("edn: cannot unmarshal into non-empty interface %s", rv.Type())
	}
	if val.kind == KindTagged {
		return assign(*val.inner, rv)
	}
	switch val.kind {
	case KindNil:
		rv.SetZero()
		return nil
	case KindBool:
		if rv.Kind() != reflect.Bool {
			return typeErr(val, rv)
		}
		rv.SetBool(val.i != 0)
		return nil
	case KindInt:
		return assignInt(val, rv)
	case KindChar:
		if rv.Kind() == reflect.String {
			rv.SetString(string(rune(val.i)))
			return nil
		}
		return assignInt(val, rv)
	case KindDouble:
		return assignFloat(val, val.f, rv)
	case KindRational:
		return assignFloat(val, float64(val.i)/float64(val.den), rv)
	case KindString, KindKeyword, KindSymbol:
		if rv.Kind() != reflect.String {
			return typeErr(val, rv)
		}
		rv.SetString(val.text)
		return nil
	case KindVector, KindList, KindSet:
		return assignSeq(val, rv)
	case KindMap:
		return assignMap(val, rv)
	}
	return typeErr(val, rv)
}

func assignInt(val Value, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.OverflowInt(val.i) {
			return fmt.Errorf("edn: %d overflows %s", val.i, rv.Type())
		}
		rv.SetInt(val.i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if val.i < 0 || rv.OverflowUint(uint64(val.i)) {
			return fmt.Errorf("edn: %d overflows %s", val.i, rv.Type())
		}
		rv.SetUint(uint64(val.i))
	case reflect.Float32, reflect.Float64:
		rv.SetFloat(float64(val.i))
	default:
		return typeErr(val, rv)
	}
	return nil
}

func assignFloat(val Value, f float64, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		if rv.OverflowFloat(f) {
			return fmt.Errorf("edn: %v overflows %s", f, rv.Type())
		}
		rv.SetFloat(f)
		return nil
	}
	return typeErr(val, rv)
}

func assignSeq(val Value, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(rv.Type(), len(val.elems), len(val.elems))
		for i, e := range val.elems {
			if err := assign(e, out.Index(i)); err != nil {
				return err
			}
		}
		rv.Set(out)
		return nil
	case reflect.Array:
		if rv.Len() != len(val.elems) {
			return fmt.Errorf("edn: cannot unmarshal %d elements into %s", len(val.elems), rv.Type())
		}
		for i, e := range val.elems {
			if err := assign(e, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	return typeErr(val, rv)
}

func assignMap(val Value, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Struct:
		t := rv.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue
			}
			name := fieldName(f)
			if name == "" {
				continue
			}
			entry, ok := val.Get(Keyword(name))
			if !ok {
				entry, ok = val.Get(Str(name))
			}
			if !ok {
				continue
			}
			if err := assign(entry, rv.Field(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		t := rv.Type()
		out := reflect.MakeMapWithSize(t, val.Len())
		for i := 0; i+1 < len(val.elems); i += 2 {
			k := reflect.New(t.Key()).Elem()
			if err := assign(val.elems[i], k); err != nil {
				return err
			}
			v := reflect.New(t.Elem()).Elem()
			if err := assign(val.elems[i+1], v); err != nil {
				return err
			}
			out.SetMapIndex(k, v)
		}
		rv.Set(out)
		return nil
	}
	return typeErr(val, rv)
}

func typeErr(val Value, rv reflect.Value) error {
	return fmt.Errorf("edn: cannot unmarshal %s into %s", val.kind, rv.Type())
}
