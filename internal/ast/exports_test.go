package ast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractExports_Go(t *testing.T) {
	source := `package sample

func Exported() {}

func unexported() {}

type Widget struct{}
`
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.go", []byte(source))
	require.NoError(t, err)

	exports := ExtractExports(tree, lang, []byte(source))
	assert.ElementsMatch(t, []string{"Exported", "Widget"}, exports)
}

func TestExtractExports_PythonRespectsAll(t *testing.T) {
	source := `__all__ = ["a"]

def a():
	pass

def b():
	pass
`
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.py", []byte(source))
	require.NoError(t, err)

	exports := ExtractExports(tree, lang, []byte(source))
	assert.Equal(t, []string{"a"}, exports)
}

func TestExtractExports_PythonWithoutAllSkipsUnderscorePrefixed(t *testing.T) {
	source := `def public():
	pass

def _private():
	pass
`
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.py", []byte(source))
	require.NoError(t, err)

	exports := ExtractExports(tree, lang, []byte(source))
	assert.Equal(t, []string{"public"}, exports)
}
