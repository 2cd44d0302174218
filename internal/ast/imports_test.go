package ast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractImports_Go(t *testing.T) {
	source := `package sample

import (
	"fmt"
	str "strings"
)

func main() {
	fmt.Println(str.ToUpper("hi"))
}
`
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.go", []byte(source))
	require.NoError(t, err)

	imports := ExtractImports(tree, lang, []byte(source))
	require.Len(t, imports, 2)
	assert.Equal(t, "fmt", imports[0].Source)
	assert.Equal(t, ImportKindGoImport, imports[0].Kind)
	assert.Equal(t, "strings", imports[1].Source)
	assert.Equal(t, []string{"str"}, imports[1].Names)
}

func TestExtractImports_PythonFrom(t *testing.T) {
	source := `import os
from collections import OrderedDict
`
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.py", []byte(source))
	require.NoError(t, err)

	imports := ExtractImports(tree, lang, []byte(source))
	require.Len(t, imports, 2)
	assert.Equal(t, ImportKindPythonImport, imports[0].Kind)
	assert.Equal(t, ImportKindPythonFrom, imports[1].Kind)
	assert.Equal(t, "collections", imports[1].Source)
	assert.Equal(t, []string{"OrderedDict"}, imports[1].Names)
}

func TestExtractImports_RustUseAndExternCrate(t *testing.T) {
	source := `extern crate serde;
use std::collections::HashMap;

fn main() {}
`
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.rs", []byte(source))
	require.NoError(t, err)

	imports := ExtractImports(tree, lang, []byte(source))
	require.Len(t, imports, 2)
	assert.Equal(t, ImportKindRustExternCrate, imports[0].Kind)
	assert.Equal(t, "serde", imports[0].Source)
	assert.Equal(t, ImportKindRustUse, imports[1].Kind)
}
