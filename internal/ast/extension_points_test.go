package ast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractExtensionPoints_GoInterface(t *testing.T) {
	source := `package sample

type Reader interface {
	Read(p []byte) (int, error)
}

type Handler func(msg string)
`
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.go", []byte(source))
	require.NoError(t, err)

	points := ExtractExtensionPoints(tree, lang, []byte(source))
	require.Len(t, points, 2)

	assert.Equal(t, ExtensionPointInterface, points[0].Kind)
	assert.Equal(t, "Reader", points[0].Name)
	assert.Equal(t, []string{"Read"}, points[0].Methods)

	assert.Equal(t, ExtensionPointFuncType, points[1].Kind)
	assert.Equal(t, "Handler", points[1].Name)
}

func TestExtractExtensionPoints_RustTrait(t *testing.T) {
	source := `trait Shape {
	fn area(&self) -> f64;
}
`
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "shape.rs", []byte(source))
	require.NoError(t, err)

	points := ExtractExtensionPoints(tree, lang, []byte(source))
	require.Len(t, points, 1)
	assert.Equal(t, ExtensionPointTrait, points[0].Kind)
	assert.Equal(t, "Shape", points[0].Name)
	assert.Equal(t, []string{"area"}, points[0].Methods)
}
