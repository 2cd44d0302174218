package ast

import "context"

// FileFacts bundles every static-analysis facet for one file, the shape
// written into a bundle's analysis/FACTS.json.
type FileFacts struct {
	Path             string
	Language         Language
	Imports          []ImportRef
	Exports          []string
	Outline          []*SymbolOutline
	ExtensionPoints  []ExtensionPoint
	Complexity       []ComplexityMetrics
}

// Analyzer is the single entry point a bundle build uses to turn a file's
// normalized bytes into facts and to feed the call-graph index.
type Analyzer struct {
	driver   *Driver
	registry *Registry
	index    *Index
}

// NewAnalyzer creates an analyzer with its own tree-sitter driver and its
// own call-graph Index. An Analyzer is not safe for concurrent use; callers
// processing files concurrently create one Analyzer per goroutine, each
// with a separate Index.
func NewAnalyzer() *Analyzer {
	return &Analyzer{driver: NewDriver(), registry: DefaultRegistry(), index: NewIndex()}
}

// Close releases the analyzer's tree-sitter parser.
func (a *Analyzer) Close() { a.driver.Close() }

// Index returns the call-graph index this analyzer has been accumulating.
func (a *Analyzer) Index() *Index { return a.index }

// Analyze parses one file and extracts every fact the AST core defines. It
// also folds the file's definitions and call references into the
// analyzer's shared Index so a later pass can query the call graph.
func (a *Analyzer) Analyze(ctx context.Context, path string, source []byte) (*FileFacts, error) {
	tree, lang, err := a.driver.Parse(ctx, path, source)
	if err != nil {
		return nil, err
	}

	facts := &FileFacts{
		Path:            path,
		Language:        lang,
		Imports:         ExtractImports(tree, lang, source),
		Exports:         ExtractExports(tree, lang, source),
		Outline:         ExtractOutline(tree, lang, source),
		ExtensionPoints: ExtractExtensionPoints(tree, lang, source),
		Complexity:      ExtractComplexity(tree, lang, source),
	}

	a.index.AddFile(tree, lang, path, source)

	return facts, nil
}

// SupportsPath reports whether path's extension resolves to a registered
// grammar, letting callers skip files the AST core can't analyze without
// treating that as an error.
func (a *Analyzer) SupportsPath(path string) bool {
	_, ok := a.registry.Resolve(path)
	return ok
}
