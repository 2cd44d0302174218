package ingest

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/preflightbundle/preflightbundle/internal/manifest"
	"github.com/preflightbundle/preflightbundle/internal/scanner"
	"github.com/preflightbundle/preflightbundle/internal/storage"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// binaryDocFormats are doc-classified extensions that are themselves
// binary containers (parsed later by the parser subsystem); normalization
// copies these through byte-for-byte instead of attempting UTF-8 repair.
var binaryDocFormats = map[string]bool{
	".pdf": true, ".docx": true, ".xlsx": true, ".pptx": true,
}

// Normalizer walks a raw/ directory and writes a normalized copy of every
// file into norm/: UTF-8 decoded (lossy replacement for undecodable
// bytes), BOM stripped, CRLF/CR rewritten to LF, for every text-bearing
// file; binary doc containers and assets are copied through unchanged.
// A file exceeding MaxFileSize is skipped with a Note rather than
// truncated; parallelism is bounded by Workers.
type Normalizer struct {
	Workers     int
	MaxFileSize int64
}

// NewNormalizer creates a Normalizer from Options, applying package
// defaults for zero values.
func NewNormalizer(opts Options) *Normalizer {
	opts = opts.withDefaults()
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Normalizer{Workers: workers, MaxFileSize: opts.MaxFileSize}
}

// Run normalizes every regular file under rawDir into normDir.
func (n *Normalizer) Run(ctx context.Context, rawDir, normDir string) ([]NormalizedFile, []manifest.Note, error) {
	var rels []string
	walkErr := filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(rawDir, path)
		if relErr != nil {
			return nil
		}
		rels = append(rels, rel)
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}

	var (
		mu    sync.Mutex
		files []NormalizedFile
		notes []manifest.Note
	)

	workers := n.Workers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	for _, rel := range rels {
		rel := rel
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			nf, note, err := n.normalizeOne(rawDir, normDir, rel)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if note != nil {
				notes = append(notes, *note)
			}
			if nf != nil {
				files = append(files, *nf)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return files, notes, err
	}
	return files, notes, nil
}

func (n *Normalizer) normalizeOne(rawDir, normDir, rel string) (*NormalizedFile, *manifest.Note, error) {
	srcPath := filepath.Join(rawDir, rel)
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, &manifest.Note{Code: "skip_unreadable", Message: err.Error(), Path: rel}, nil
	}
	if info.Size() > n.MaxFileSize {
		return nil, &manifest.Note{Code: "skip_too_large", Message: "exceeds maxFileBytes", Path: rel}, nil
	}

	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, &manifest.Note{Code: "skip_unreadable", Message: err.Error(), Path: rel}, nil
	}

	relSlash := filepath.ToSlash(rel)
	class := Classify(relSlash)

	content := raw
	if class != ClassAsset && !binaryDocFormats[strings.ToLower(extension(relSlash))] {
		content = normalizeBytes(raw)
	}

	targetPath, jErr := storage.SafeJoin(normDir, rel)
	if jErr != nil {
		return nil, &manifest.Note{Code: "skip_invalid_path", Message: jErr.Error(), Path: rel}, nil
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(targetPath, content, 0o644); err != nil {
		return nil, nil, err
	}

	return &NormalizedFile{
		RelPath:        relSlash,
		AbsPath:        targetPath,
		Size:           int64(len(content)),
		Classification: class,
		Language:       scanner.DetectLanguage(relSlash),
	}, nil, nil
}

// normalizeBytes strips a UTF-8 BOM, lossily repairs invalid UTF-8 with
// the replacement character, and rewrites CRLF/CR line endings to LF.
func normalizeBytes(raw []byte) []byte {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		raw = []byte(strings.ToValidUTF8(string(raw), "�"))
	}

	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	raw = bytes.ReplaceAll(raw, []byte("\r"), []byte("\n"))
	return raw
}
