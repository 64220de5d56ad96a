// Package edn reads, renders and navigates EDN (extensible data notation)
// values.
//
// ReadString parses the first form of its input into an immutable Value.
// Sets and maps keep their elements sorted by Compare, so rendering a
// Value with String or Append produces one canonical form regardless of
// source order. Unlike Clojure, escape sequences inside strings are
// validated but not decoded; a string value renders back exactly as it
// was written.
package edn

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies the variant stored in a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindDouble
	KindRational
	KindChar
	KindString
	KindKeyword
	KindSymbol
	KindTagged
	KindVector
	KindList
	KindSet
	KindMap
)

var kindNames = [...]string{
	KindNil:      "nil",
	KindBool:     "bool",
	KindInt:      "int",
	KindDouble:   "double",
	KindRational: "rational",
	KindChar:     "char",
	KindString:   "string",
	KindKeyword:  "keyword",
	KindSymbol:   "symbol",
	KindTagged:   "tagged",
	KindVector:   "vector",
	KindList:     "list",
	KindSet:      "set",
	KindMap:      "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// kindRank orders kinds inside sorted collections: sequences first, then
// identifiers and strings, then numbers and the remaining scalars.
var kindRank = [...]int{
	KindVector:   0,
	KindSet:      1,
	KindMap:      2,
	KindList:     3,
	KindKeyword:  4,
	KindSymbol:   5,
	KindString:   6,
	KindInt:      7,
	KindTagged:   8,
	KindDouble:   9,
	KindRational: 10,
	KindChar:     11,
	KindBool:     12,
	KindNil:      13,
}

// Value is an immutable EDN value. The zero Value is nil.
type Value struct {
	kind  Kind
	text  string  // keyword, symbol and string text; tag text for tagged values
	i     int64   // int value, rational numerator, char code point, bool as 0/1
	den   int64   // rational denominator
	f     float64 // double value
	elems []Value // vector, list and set elements; maps flatten sorted key/value pairs
	inner *Value  // tagged element value
}

// Nil returns the nil value.
func Nil() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Double returns a floating point value.
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

// Rational returns a ratio of two integers, kept as given and never
// simplified.
func Rational(num, den int64) Value { return Value{kind: KindRational, i: num, den: den} }

// Char returns a character value.
func Char(r rune) Value { return Value{kind: KindChar, i: int64(r)} }

// Str returns a string value. The text renders back verbatim, so escape
// sequences must already be in source form.
func Str(s string) Value { return Value{kind: KindString, text: s} }

// Symbol returns a symbol.
func Symbol(name string) Value { return Value{kind: KindSymbol, text: name} }

// Keyword returns a keyword. The name carries no leading colon; rendering
// adds one.
func Keyword(name string) Value { return Value{kind: KindKeyword, text: name} }

// Tagged wraps a value in a reader tag. The tag keeps whatever text it
// was written with, including a leading colon for namespaced map syntax.
func Tagged(tag string, v Value) Value { return Value{kind: KindTagged, text: tag, inner: &v} }

// Vector returns a vector of elems.
func Vector(elems ...Value) Value { return Value{kind: KindVector, elems: elems} }

// List returns a list of elems.
func List(elems ...Value) Value { return Value{kind: KindList, elems: elems} }

// Set returns a set of elems, sorted with duplicates removed.
func Set(elems ...Value) Value {
	v := Value{kind: KindSet}
	for _, e := range elems {
		v.elems, _ = insertSorted(v.elems, e)
	}
	return v
}

// Map returns a map from alternating key, value pairs, sorted by key.
// A duplicate key replaces the earlier entry and a trailing key with no
// value is dropped.
func Map(pairs ...Value) Value {
	v := Value{kind: KindMap}
	for i := 0; i+1 < len(pairs); i += 2 {
		j, found := findKey(v.elems, pairs[i])
		if found {
			v.elems[j+1] = pairs[i+1]
			continue
		}
		v.elems = slices.Insert(v.elems, j, pairs[i], pairs[i+1])
	}
	return v
}

func insertSorted(elems []Value, v Value) (out []Value, dup bool) {
	i, found := slices.BinarySearchFunc(elems, v, Value.Compare)
	if found {
		return elems, true
	}
	return slices.Insert(elems, i, v), false
}

// findKey locates key in flattened map pairs, returning the index of the
// matching pair or the insertion point.
func findKey(pairs []Value, key Value) (int, bool) {
	lo, hi := 0, len(pairs)/2
	for lo < hi {
		mid := (lo + hi) / 2
		if pairs[2*mid].Compare(key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	i := 2 * lo
	return i, i < len(pairs) && pairs[i].Compare(key) == 0
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Bool returns the boolean in v.
func (v Value) Bool() (b, ok bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.i != 0, true
}

// Int64 returns the integer in v.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Float64 returns the floating point number in v.
func (v Value) Float64() (float64, bool) {
	if v.kind != KindDouble {
		return 0, false
	}
	return v.f, true
}

// Rational64 returns the numerator and denominator of a rational.
func (v Value) Rational64() (num, den int64, ok bool) {
	if v.kind != KindRational {
		return 0, 0, false
	}
	return v.i, v.den, true
}

// Rune returns the character in v.
func (v Value) Rune() (rune, bool) {
	if v.kind != KindChar {
		return 0, false
	}
	return rune(v.i), true
}

// Text returns the name of a keyword or symbol, or the raw text of a
// string.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindKeyword, KindSymbol, KindString:
		return v.text, true
	}
	return "", false
}

// Tag returns the tag and inner value of a tagged element.
func (v Value) Tag() (string, Value, bool) {
	if v.kind != KindTagged {
		return "", Value{}, false
	}
	return v.text, *v.inner, true
}

// Len returns the number of elements in a collection, counting a map by
// its pairs. Scalars have length 0.
func (v Value) Len() int {
	if v.kind == KindMap {
		return len(v.elems) / 2
	}
	return len(v.elems)
}

// Get looks key up in a map. On a tagged map it follows namespaced map
// syntax: a value tagged #:ns resolves keyword keys written as :ns/name
// against the inner map's :name, while fully qualified keys from other
// namespaces pass through unchanged.
func (v Value) Get(key Value) (Value, bool) {
	switch v.kind {
	case KindMap:
		if i, found := findKey(v.elems, key); found {
			return v.elems[i+1], true
		}
	case KindTagged:
		if key.kind == KindKeyword {
			ns, ok := namespaceOf(v.text, key.text)
			if !ok {
				return Value{}, false
			}
			return v.inner.Get(Keyword(stripNamespace(ns, key.text)))
		}
		return v.inner.Get(key)
	}
	return Value{}, false
}

// Nth returns element i of a vector or list.
func (v Value) Nth(i int) (Value, bool) {
	if v.kind != KindVector && v.kind != KindList {
		return Value{}, false
	}
	if i < 0 || i >= len(v.elems) {
		return Value{}, false
	}
	return v.elems[i], true
}

// Contains reports whether a map has x as a key, or a vector, list or
// set has x as an element. Tagged maps follow the same namespace rules
// as Get.
func (v Value) Contains(x Value) bool {
	switch v.kind {
	case KindMap:
		_, found := findKey(v.elems, x)
		return found
	case KindTagged:
		if x.kind == KindKeyword {
			ns, ok := namespaceOf(v.text, x.text)
			if !ok {
				return false
			}
			return v.inner.Contains(Keyword(stripNamespace(ns, x.text)))
		}
		return v.inner.Contains(x)
	case KindSet:
		_, found := slices.BinarySearchFunc(v.elems, x, Value.Compare)
		return found
	case KindVector, KindList:
		for _, e := range v.elems {
			if e.Compare(x) == 0 {
				return true
			}
		}
	}
	return false
}

// namespaceOf strips the colon off a namespaced map tag. Only keyword
// keys that carry a namespace and tags written with a leading colon take
// part in namespaced lookup.
func namespaceOf(tag, key string) (string, bool) {
	if !strings.Contains(key, "/") {
		return "", false
	}
	if !strings.HasPrefix(tag, ":") {
		return "", false
	}
	return tag[1:], true
}

// stripNamespace removes a leading ns from key, leaving keys from other
// namespaces untouched.
func stripNamespace(ns, key string) string {
	if strings.HasPrefix(key, ns) {
		rest := key[strings.LastIndex(key, ns)+len(ns):]
		if after, ok := strings.CutPrefix(rest, "/"); ok {
			return after
		}
	}
	return key
}

// Compare orders v against o, first by kind rank and then by value.
// Doubles use a total order with NaN sorting last. Collections compare
// element by element and maps pair by pair.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		return cmp.Compare(kindRank[v.kind], kindRank[o.kind])
	}
	switch v.kind {
	case KindNil:
		return 0
	case KindBool, KindInt, KindChar:
		return cmp.Compare(v.i, o.i)
	case KindDouble:
		return compareDouble(v.f, o.f)
	case KindRational:
		if c := cmp.Compare(v.i, o.i); c != 0 {
			return c
		}
		return cmp.Compare(v.den, o.den)
	case KindString, KindKeyword, KindSymbol:
		return strings.Compare(v.text, o.text)
	case KindTagged:
		if c := strings.Compare(v.text, o.text); c != 0 {
			return c
		}
		return v.inner.Compare(*o.inner)
	default:
		return slices.CompareFunc(v.elems, o.elems, Value.Compare)
	}
}

// Equal reports whether v and o are the same value.
func (v Value) Equal(o Value) bool { return v.Compare(o) == 0 }

func compareDouble(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case a == b:
		return 0
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return 1
	}
	return -1
}

// Append renders v in canonical form and appends the text to dst.
func (v Value) Append(dst []byte) []byte {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(dst, v.i != 0)
	case KindInt:
		return strconv.AppendInt(dst, v.i, 10)
	case KindDouble:
		return strconv.AppendFloat(dst, v.f, 'f', -1, 64)
	case KindRational:
		dst = strconv.AppendInt(dst, v.i, 10)
		dst = append(dst, '/')
		return strconv.AppendInt(dst, v.den, 10)
	case KindChar:
		dst = append(dst, '\\')
		if name := charName(rune(v.i)); name != "" {
			return append(dst, name...)
		}
		return utf8.AppendRune(dst, rune(v.i))
	case KindString:
		dst = append(dst, '"')
		dst = append(dst, v.text...)
		return append(dst, '"')
	case KindKeyword:
		dst = append(dst, ':')
		return append(dst, v.text...)
	case KindSymbol:
		return append(dst, v.text...)
	case KindTagged:
		dst = append(dst, '#')
		dst = append(dst, v.text...)
		dst = append(dst, ' ')
		return v.inner.Append(dst)
	case KindVector:
		return v.appendSeq(dst, '[', ']')
	case KindList:
		return v.appendSeq(dst, '(', ')')
	case KindSet:
		dst = append(dst, '#')
		return v.appendSeq(dst, '{', '}')
	case KindMap:
		dst = append(dst, '{')
		for i := 0; i+1 < len(v.elems); i += 2 {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			dst = v.elems[i].Append(dst)
			dst = append(dst, ' ')
			dst = v.elems[i+1].Append(dst)
		}
		return append(dst, '}')
	}
	return append(dst, "nil"...)
}

func (v Value) appendSeq(dst []byte, open, closing byte) []byte {
	dst = append(dst, open)
	for i, e := range v.elems {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = e.Append(dst)
	}
	return append(dst, closing)
}

// String renders v in canonical form: sorted sets and maps, shortest
// round-trip doubles, raw strings.
func (v Value) String() string { return string(v.Append(nil)) }

func charName(r rune) string {
	switch r {
	case '\n':
		return "newline"
	case '\r':
		return "return"
	case ' ':
		return "space"
	case '\t':
		return "tab"
	}
	return ""
}

// ReadString reads the first form in s. Empty input, or input holding
// only whitespace, comments or discards, reads as nil.
func ReadString(s string) (Value, error) {
	v, _, err := readForm(s)
	return v, err
}

// Read reads the first form in s and returns the rest of the input.
// Reaching the end of input with nothing but nil to show for it is an
// error, matching read's throw-on-EOF behavior.
func Read(s string) (Value, string, error) {
	v, rest, err := readForm(s)
	if err != nil {
		return Value{}, "", err
	}
	if v.kind == KindNil && rest == "" {
		return Value{}, "", &Error{Code: UnexpectedEOF}
	}
	return v, rest, nil
}
