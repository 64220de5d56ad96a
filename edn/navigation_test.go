package edn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	e, err := ReadString("{:foo 4 :bar 2}")
	require.NoError(t, err)

	v, ok := e.Get(Keyword("foo"))
	assert.True(t, ok)
	assert.Equal(t, Int(4), v)

	// Strings and symbols are not keywords.
	_, ok = e.Get(Str("foo"))
	assert.False(t, ok)
	_, ok = e.Get(Symbol(":foo"))
	assert.False(t, ok)

	_, ok = e.Nth(0)
	assert.False(t, ok)
}

func TestNth(t *testing.T) {
	e, err := ReadString("[1 2 3 42 3 2 1]")
	require.NoError(t, err)

	v, ok := e.Nth(3)
	assert.True(t, ok)
	assert.Equal(t, Int(42), v)
	_, ok = e.Nth(42)
	assert.False(t, ok)
	_, ok = e.Get(Str(":foo"))
	assert.False(t, ok)

	e, err = ReadString("(1 2 3 42 3 2 1)")
	require.NoError(t, err)

	v, ok = e.Nth(3)
	assert.True(t, ok)
	assert.Equal(t, Int(42), v)
	_, ok = e.Nth(42)
	assert.False(t, ok)
}

func TestGetChained(t *testing.T) {
	e, err := ReadString("{:foo {猫 {{:foo :bar} [1 2 42 3]}}}")
	require.NoError(t, err)

	v, ok := e.Get(Keyword("foo"))
	require.True(t, ok)
	v, ok = v.Get(Symbol("猫"))
	require.True(t, ok)
	v, ok = v.Get(Map(Keyword("foo"), Keyword("bar")))
	require.True(t, ok)
	v, ok = v.Nth(2)
	require.True(t, ok)
	assert.Equal(t, Int(42), v)
}

func TestNamespacedMapSyntax(t *testing.T) {
	keyworded := []string{
		`{:thingy #:foo{:bar "baz"} :more "stuff"}`,
		`{:thingy #:foo {:bar "baz"} :more "stuff"}`,
		`{:more "stuff" :thingy #:foo{:bar "baz"}}`,
		`{:more "stuff" :thingy # :foo{:bar "baz"}}`,
	}
	for _, input := range keyworded {
		cfg, err := ReadString(input)
		require.NoError(t, err, "input %q", input)

		v, ok := cfg.Get(Keyword("thingy"))
		require.True(t, ok, "input %q", input)
		assert.Equal(t, Tagged(":foo", Map(Keyword("bar"), Str("baz"))), v, "input %q", input)

		v, ok = cfg.Get(Keyword("more"))
		require.True(t, ok, "input %q", input)
		assert.Equal(t, Str("stuff"), v, "input %q", input)
	}

	// The tag parses without the colon too, it just cannot take part in
	// namespaced lookup.
	bare := []string{
		`{:thingy #foo{:bar "baz"} :more "stuff"}`,
		`{:thingy #foo {:bar "baz"} :more "stuff"}`,
		`{:more "stuff" :thingy #foo{:bar "baz"}}`,
		`{:more "stuff" :thingy # foo{:bar "baz"}}`,
	}
	for _, input := range bare {
		cfg, err := ReadString(input)
		require.NoError(t, err, "input %q", input)

		v, ok := cfg.Get(Keyword("thingy"))
		require.True(t, ok, "input %q", input)
		assert.Equal(t, Tagged("foo", Map(Keyword("bar"), Str("baz"))), v, "input %q", input)
	}
}

func TestNamespacedLookup(t *testing.T) {
	e, err := ReadString(`#:thingy {:foo "bar" :baz/bar "qux" 42 24}`)
	require.NoError(t, err)

	v, ok := e.Get(Int(42))
	assert.True(t, ok)
	assert.Equal(t, Int(24), v)

	_, ok = e.Get(Keyword("foo"))
	assert.False(t, ok)

	v, ok = e.Get(Keyword("thingy/foo"))
	assert.True(t, ok)
	assert.Equal(t, Str("bar"), v)

	v, ok = e.Get(Keyword("baz/bar"))
	assert.True(t, ok)
	assert.Equal(t, Str("qux"), v)

	assert.True(t, e.Contains(Int(42)))
	assert.False(t, e.Contains(Str("42")))
	assert.False(t, e.Contains(Keyword("foo")))
	assert.True(t, e.Contains(Keyword("thingy/foo")))
	assert.True(t, e.Contains(Keyword("baz/bar")))
	assert.False(t, e.Contains(Keyword("bar/baz")))
}

func TestNamespacedLookupEdgeCases(t *testing.T) {
	e, err := ReadString(`#:thingy {:f#猫o "bar" :baz/bar "qux" 42 24}`)
	require.NoError(t, err)

	v, ok := e.Get(Keyword("thingy/f#猫o"))
	assert.True(t, ok)
	assert.Equal(t, Str("bar"), v)

	v, ok = e.Get(Keyword("baz/bar"))
	assert.True(t, ok)
	assert.Equal(t, Str("qux"), v)

	for _, key := range []string{"foo", "baz", ":baz/bar", "thingy/", "thingy", "thingything"} {
		_, ok := e.Get(Keyword(key))
		assert.False(t, ok, "key %q", key)
	}

	e, err = ReadString(`#thingy {:f#猫o "bar" :baz/bar "qux" 42 24}`)
	require.NoError(t, err)
	_, ok = e.Get(Keyword("thingy/f#猫o"))
	assert.False(t, ok)
	_, ok = e.Get(Keyword("baz/bar"))
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	e, err := ReadString(`{:f#猫o "bar" :baz/bar "qux" 42 24}`)
	require.NoError(t, err)
	v, ok := e.Get(Keyword("f#猫o"))
	assert.True(t, ok)
	assert.Equal(t, Str("bar"), v)
	assert.True(t, e.Contains(Keyword("f#猫o")))
	_, ok = e.Get(Keyword("foo"))
	assert.False(t, ok)
	assert.False(t, e.Contains(Keyword("foo")))

	e, err = ReadString(`#{:f#猫o "bar" :baz/bar "qux" 42 24}`)
	require.NoError(t, err)
	assert.True(t, e.Contains(Keyword("f#猫o")))
	assert.True(t, e.Contains(Int(42)))
	assert.False(t, e.Contains(Keyword("foo")))

	e, err = ReadString(`[:f#猫o "bar" :baz/bar "qux" 42 24]`)
	require.NoError(t, err)
	assert.True(t, e.Contains(Keyword("f#猫o")))
	assert.True(t, e.Contains(Int(42)))
	assert.False(t, e.Contains(Keyword("foo")))

	e, err = ReadString(`(:f#猫o "bar" :baz/bar "qux" 42 24)`)
	require.NoError(t, err)
	assert.True(t, e.Contains(Keyword("f#猫o")))
	assert.True(t, e.Contains(Int(42)))
	assert.False(t, e.Contains(Keyword("foo")))

	e, err = ReadString("42")
	require.NoError(t, err)
	assert.False(t, e.Contains(Keyword("f#猫o")))
	assert.False(t, e.Contains(Int(42)))
	assert.False(t, e.Contains(Keyword("foo")))
}
