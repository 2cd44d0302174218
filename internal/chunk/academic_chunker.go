package chunk

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

var (
	// academicSectionPattern recognizes the heading titles that give
	// academic/technical documents their characteristic structure, used to
	// tag chunks with a section_kind beyond the generic header_path.
	academicSectionPattern = regexp.MustCompile(`(?i)^(abstract|introduction|background|related work|methodology|methods|results|discussion|conclusion|conclusions|references|bibliography|acknowledg(e)?ments|appendix)\b`)

	// displayFormulaPattern matches LaTeX-style display equations, which
	// must never be split across a chunk boundary.
	displayFormulaPattern = regexp.MustCompile(`(?s)\$\$.+?\$\$|\\\[.+?\\\]`)
)

// AcademicChunker wraps GenericChunker with formula- and table-aware
// boundary detection and section-kind metadata, for papers, specs, and
// other structured technical documents where splitting a formula or table
// mid-block would destroy its meaning.
type AcademicChunker struct {
	generic *GenericChunker
}

// NewAcademicChunker creates an academic chunker with default options.
func NewAcademicChunker() *AcademicChunker {
	return NewAcademicChunkerWithOptions(GenericChunkerOptions{})
}

// NewAcademicChunkerWithOptions creates an academic chunker with custom
// options, reusing the generic chunker's section/paragraph splitting.
func NewAcademicChunkerWithOptions(opts GenericChunkerOptions) *AcademicChunker {
	return &AcademicChunker{generic: NewGenericChunkerWithOptions(opts)}
}

// Close releases chunker resources. AcademicChunker is stateless.
func (c *AcademicChunker) Close() {}

// SupportedExtensions returns file extensions this chunker handles. It
// overlaps with GenericChunker's list; callers route to AcademicChunker
// explicitly for documents classified as academic (see bridge.go), since
// extension alone can't distinguish a paper from a README.
func (c *AcademicChunker) SupportedExtensions() []string {
	return c.generic.SupportedExtensions()
}

// Chunk splits content the same way GenericChunker does, then protects
// display formulas from mid-block splits and annotates each chunk with the
// academic section it falls under.
func (c *AcademicChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	protected, formulas := protectDisplayFormulas(string(file.Content))
	protectedFile := &FileInput{Path: file.Path, Content: []byte(protected), Language: file.Language}

	chunks, err := c.generic.Chunk(ctx, protectedFile)
	if err != nil {
		return nil, err
	}

	for _, chunk := range chunks {
		chunk.Content = restoreDisplayFormulas(chunk.Content, formulas)
		chunk.RawContent = restoreDisplayFormulas(chunk.RawContent, formulas)
		if chunk.Metadata == nil {
			chunk.Metadata = map[string]string{}
		}
		chunk.Metadata["section_kind"] = sectionKind(chunk.Metadata["section_title"])
		// Chunk IDs are content-addressable (see generateChunkID); restoring
		// the formula text changes Content, so the ID must be recomputed to
		// stay correct for the final, formula-bearing chunk.
		chunk.ID = generateChunkID(chunk.FilePath, chunk.Content)
	}

	return chunks, nil
}

// protectDisplayFormulas replaces every display formula with an opaque,
// atomic placeholder so the paragraph/section splitter in GenericChunker
// never breaks one across a chunk boundary. Returns the substituted text
// and the formulas to restore afterward, indexed by placeholder.
func protectDisplayFormulas(content string) (string, []string) {
	var formulas []string
	replaced := displayFormulaPattern.ReplaceAllStringFunc(content, func(match string) string {
		idx := len(formulas)
		formulas = append(formulas, match)
		return formulaPlaceholder(idx)
	})
	return replaced, formulas
}

func restoreDisplayFormulas(content string, formulas []string) string {
	for i, formula := range formulas {
		content = strings.ReplaceAll(content, formulaPlaceholder(i), formula)
	}
	return content
}

func formulaPlaceholder(idx int) string {
	return "\x00FORMULA" + strconv.Itoa(idx) + "\x00"
}

// sectionKind classifies a section title into the coarse-grained academic
// section taxonomy, or "" when the title doesn't match a recognized one.
func sectionKind(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ""
	}
	match := academicSectionPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return ""
	}
	return strings.ToLower(match[1])
}
