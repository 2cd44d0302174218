package ast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nestedIfForIfSource = `package sample

func f(x int) {
	if x > 0 {
		for i := 0; i < x; i++ {
			if i == 1 {
				return
			}
		}
	}
}
`

func TestExtractComplexity_NestedIfForIf(t *testing.T) {
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.go", []byte(nestedIfForIfSource))
	require.NoError(t, err)

	metrics := ExtractComplexity(tree, lang, []byte(nestedIfForIfSource))
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, "f", m.Name)
	assert.Equal(t, 4, m.Cyclomatic)
	assert.Equal(t, 6, m.Cognitive)
	assert.Equal(t, 3, m.MaxNestingDepth)
	assert.Equal(t, 1, m.ParamCount)
}

const elseIfChainSource = `package sample

func classify(x int) string {
	if x < 0 {
		return "neg"
	} else if x == 0 {
		return "zero"
	} else {
		return "pos"
	}
}
`

func TestExtractComplexity_ElseIfChainDoesNotDoubleCount(t *testing.T) {
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.go", []byte(elseIfChainSource))
	require.NoError(t, err)

	metrics := ExtractComplexity(tree, lang, []byte(elseIfChainSource))
	require.Len(t, metrics, 1)

	// if (+1) + else-if link (+1) + else link (+1) = 3, no nesting penalty
	// for the else/else-if links themselves.
	assert.Equal(t, 3, metrics[0].Cognitive)
	assert.Equal(t, 3, metrics[0].Cyclomatic)
}

const recursiveSource = `package sample

func fib(n int) int {
	if n < 2 {
		return n
	}
	return fib(n-1) + fib(n-2)
}
`

func TestExtractComplexity_RecursionAddsOne(t *testing.T) {
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.go", []byte(recursiveSource))
	require.NoError(t, err)

	metrics := ExtractComplexity(tree, lang, []byte(recursiveSource))
	require.Len(t, metrics, 1)
	assert.Equal(t, 2, metrics[0].Cognitive) // +1 for if, +1 for recursion
}

const logicalChainSource = `package sample

func check(a, b, c bool) bool {
	if a && b && c {
		return true
	}
	return false
}
`

func TestExtractComplexity_SameOperatorChainCountsOnce(t *testing.T) {
	driver := NewDriver()
	defer driver.Close()

	tree, lang, err := driver.Parse(context.Background(), "sample.go", []byte(logicalChainSource))
	require.NoError(t, err)

	metrics := ExtractComplexity(tree, lang, []byte(logicalChainSource))
	require.Len(t, metrics, 1)
	// if (+1) + chain of same-op && (+1, no switches) = 2
	assert.Equal(t, 2, metrics[0].Cognitive)
}
