package ingest

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/preflightbundle/preflightbundle/internal/gitignore"
	"github.com/preflightbundle/preflightbundle/internal/manifest"
	"github.com/preflightbundle/preflightbundle/internal/scanner"
	"github.com/preflightbundle/preflightbundle/internal/storage"
)

// DefaultLocalIgnoreDirs are skipped during a local copy even when the
// source tree carries no .gitignore of its own.
var DefaultLocalIgnoreDirs = []string{
	".git", "node_modules", ".venv", "__pycache__", "dist", "build", "vendor", "target",
}

// LocalCopier copies a local project directory into a bundle's raw/
// directory, honoring the source's own .gitignore plus the default
// ignore set.
type LocalCopier struct{}

// NewLocalCopier creates a LocalCopier.
func NewLocalCopier() *LocalCopier { return &LocalCopier{} }

// Copy walks srcDir and reproduces every non-ignored file under rawDir,
// preserving relative paths. A single unreadable file is skipped rather
// than aborting the whole copy. Any git submodules declared in the
// source tree's .gitmodules are reported as notes rather than ingested,
// since an uninitialized submodule directory holds no content to copy.
func (c *LocalCopier) Copy(ctx context.Context, srcDir, rawDir string) ([]manifest.Note, error) {
	matcher := gitignore.New()
	for _, d := range DefaultLocalIgnoreDirs {
		matcher.AddPattern(d + "/")
	}
	if giPath := filepath.Join(srcDir, ".gitignore"); fileExists(giPath) {
		_ = matcher.AddFromFile(giPath, "")
	}

	notes := submoduleNotes(srcDir)

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}

		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil || rel == "." {
			return nil
		}

		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		target, jErr := storage.SafeJoin(rawDir, rel)
		if jErr != nil {
			return nil
		}
		return copyFile(path, target)
	})
	return notes, err
}

// submoduleNotes parses srcDir's .gitmodules, if any, and records one
// note per declared submodule so the manifest discloses content that
// was deliberately left out of the bundle.
func submoduleNotes(srcDir string) []manifest.Note {
	content, err := os.ReadFile(filepath.Join(srcDir, ".gitmodules"))
	if err != nil {
		return nil
	}
	subs, err := scanner.ParseGitmodules(content)
	if err != nil {
		return nil
	}
	notes := make([]manifest.Note, 0, len(subs))
	for _, s := range subs {
		notes = append(notes, manifest.Note{
			Code:    "submodule_excluded",
			Message: "git submodule is not recursively ingested",
			Path:    s.Path,
		})
	}
	return notes
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// copyFile reproduces src's bytes and mode at dst, creating parent
// directories as needed. Errors opening or stating src are treated as a
// skip, matching the scanner's graceful-degradation behavior on
// unreadable files rather than aborting the batch.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return nil
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}
