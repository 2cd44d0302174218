// Package ast implements the static-analysis facts layer: imports, exports,
// outlines, extension points, cognitive complexity and the call graph used by
// the bundle's analysis/FACTS.json artifact. It wraps tree-sitter the same
// way internal/chunk does, but answers structural questions instead of
// producing retrievable text chunks.
package ast

// Language is the set of grammars the driver supports.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
	LanguagePython     Language = "python"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageRust       Language = "rust"
)

// ImportKind distinguishes the syntactic form an import/require took.
type ImportKind string

const (
	ImportKindImport          ImportKind = "import"
	ImportKindExportFrom      ImportKind = "exportFrom"
	ImportKindDynamicImport   ImportKind = "dynamicImport"
	ImportKindRequire         ImportKind = "require"
	ImportKindPythonImport    ImportKind = "pythonImport"
	ImportKindPythonFrom      ImportKind = "pythonFrom"
	ImportKindGoImport        ImportKind = "goImport"
	ImportKindJavaImport      ImportKind = "javaImport"
	ImportKindRustUse         ImportKind = "rustUse"
	ImportKindRustExternCrate ImportKind = "rustExternCrate"
)

// ImportRef is one resolved or unresolved import/require statement.
type ImportRef struct {
	Kind      ImportKind
	Source    string // module specifier / import path as written
	Names     []string
	StartLine int
	EndLine   int
}

// SymbolKind mirrors the outline-symbol kinds from the bundle data model.
type SymbolKind string

const (
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindType      SymbolKind = "type"
	SymbolKindEnum      SymbolKind = "enum"
	SymbolKindVariable  SymbolKind = "variable"
)

// SymbolOutline is a per-file outline entry, optionally nested (methods under
// their enclosing class/struct).
type SymbolOutline struct {
	Kind      SymbolKind
	Name      string
	Signature string
	StartLine int
	EndLine   int
	Exported  bool
	Children  []*SymbolOutline
}

// ExtensionPointKind names the sort of extensibility surface detected.
type ExtensionPointKind string

const (
	ExtensionPointInterface     ExtensionPointKind = "interface"
	ExtensionPointFuncType      ExtensionPointKind = "funcType"
	ExtensionPointTypeConstraint ExtensionPointKind = "typeConstraint"
	ExtensionPointTrait         ExtensionPointKind = "trait"
	ExtensionPointAbstractClass ExtensionPointKind = "abstractClass"
)

// ExtensionPoint marks a place in the source where callers are expected to
// plug in their own implementation (Go interfaces, TS interfaces/generics
// constraints, Rust traits, Java interfaces/abstract classes).
type ExtensionPoint struct {
	Kind      ExtensionPointKind
	Name      string
	StartLine int
	EndLine   int
	Methods   []string
}

// ComplexityMetrics is the per-function complexity facet.
type ComplexityMetrics struct {
	Name             string
	Cyclomatic       int
	Cognitive        int
	MaxNestingDepth   int
	LineCount        int
	ParamCount       int
	StartLine        int
	EndLine          int
}

// Reference is a use-site of a name; Definition is where a name is declared.
// Both are keyed by file path and line range so the call graph can be
// rebuilt deterministically from norm/ without persisting tree-sitter state.
type Reference struct {
	Name      string
	FilePath  string
	StartLine int
	EndLine   int
	// EnclosingFunction is the declared (unqualified) name of the function
	// this reference occurs inside, empty for file-level references.
	EnclosingFunction string
}

type Definition struct {
	Name      string
	FilePath  string
	StartLine int
	EndLine   int
	Kind      SymbolKind
}

// CallHierarchyItem is one node in an incoming/outgoing call query result.
type CallHierarchyItem struct {
	Name      string
	FilePath  string
	StartLine int
	EndLine   int
}
