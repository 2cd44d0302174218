package ingest

import (
	"strings"

	"github.com/preflightbundle/preflightbundle/internal/scanner"
)

// docExtensions are the extensions the parser subsystem (PDF/Office/HTML
// strategies, markdown/academic chunkers) is responsible for, regardless
// of what scanner.DetectLanguage reports for them.
var docExtensions = map[string]bool{
	".md": true, ".mdx": true, ".rst": true, ".txt": true,
	".html": true, ".htm": true,
	".pdf": true, ".docx": true, ".xlsx": true, ".pptx": true,
}

// Classify buckets a normalized file's relative path into doc, code, or
// asset, driving which of AC/FTS/parser stages consume it.
func Classify(relPath string) Classification {
	ext := strings.ToLower(extension(relPath))
	if docExtensions[ext] {
		return ClassDoc
	}

	language := scanner.DetectLanguage(relPath)
	if language == "" {
		return ClassAsset
	}
	switch scanner.DetectContentType(language) {
	case scanner.ContentTypeCode:
		return ClassCode
	case scanner.ContentTypeMarkdown:
		return ClassDoc
	default:
		return ClassAsset
	}
}

func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
