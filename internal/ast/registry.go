package ast

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Registry resolves file extensions and language names to tree-sitter
// grammars. It mirrors internal/chunk's LanguageRegistry but covers the
// full seven-language AC surface, including java and rust.
type Registry struct {
	mu        sync.RWMutex
	languages map[Language]*sitter.Language
	extToLang map[string]Language
}

// NewRegistry builds a registry with all seven grammars pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		languages: make(map[Language]*sitter.Language),
		extToLang: make(map[string]Language),
	}

	r.register(LanguageGo, golang.GetLanguage(), ".go")
	r.register(LanguageTypeScript, typescript.GetLanguage(), ".ts")
	r.register(LanguageTSX, tsx.GetLanguage(), ".tsx")
	r.register(LanguageJavaScript, javascript.GetLanguage(), ".js", ".mjs", ".jsx")
	r.register(LanguagePython, python.GetLanguage(), ".py")
	r.register(LanguageJava, java.GetLanguage(), ".java")
	r.register(LanguageRust, rust.GetLanguage(), ".rs")

	return r
}

func (r *Registry) register(lang Language, tsLang *sitter.Language, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.languages[lang] = tsLang
	for _, ext := range exts {
		r.extToLang[ext] = lang
	}
}

// Resolve returns the Language for a file path based on its extension.
func (r *Registry) Resolve(path string) (Language, bool) {
	ext := strings.ToLower(path)
	if idx := strings.LastIndex(ext, "."); idx >= 0 {
		ext = ext[idx:]
	} else {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.extToLang[ext]
	return lang, ok
}

// Grammar returns the tree-sitter language for a Language.
func (r *Registry) Grammar(lang Language) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.languages[lang]
	return g, ok
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry instance.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
