package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/google/renameio"
)

// AtomicCommit renames wipDir into finalDir, the only operation that makes
// a bundle's content visible to readers (invariant I2). It first attempts
// a plain rename (same-filesystem, atomic); on EXDEV (cross-device) it
// falls back to a recursive copy-then-delete. On any error wipDir is
// removed so no partial bundle is left behind.
func AtomicCommit(wipDir, finalDir string) (err error) {
	defer func() {
		if err != nil {
			_ = os.RemoveAll(wipDir)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(finalDir), 0o755); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to prepare bundle parent directory", err)
	}

	// renameio.Symlink-style atomic replace isn't applicable to whole
	// directories, so we use the plain syscall rename first (which is
	// atomic on POSIX within one filesystem) and only fall back to
	// copy-then-delete on a cross-device error.
	if rerr := os.Rename(wipDir, finalDir); rerr == nil {
		return nil
	} else if !isCrossDevice(rerr) {
		return bundleerrors.New(bundleerrors.ErrCodeOperationFailed, "atomic rename failed", rerr)
	}

	if err := copyTree(wipDir, finalDir); err != nil {
		_ = os.RemoveAll(finalDir)
		return bundleerrors.New(bundleerrors.ErrCodeOperationFailed, "cross-device bundle copy failed", err)
	}
	return nil
}

// AtomicReplace swaps wipDir into finalDir when finalDir may already
// exist and be non-empty, as happens on every Update after the first
// Create. The existing directory is renamed aside, wipDir is committed in
// its place, and the backup is removed last; if the commit step fails the
// backup is renamed back so finalDir is never left missing.
func AtomicReplace(wipDir, finalDir string) error {
	if _, err := os.Stat(finalDir); os.IsNotExist(err) {
		return AtomicCommit(wipDir, finalDir)
	}

	backup := finalDir + ".bak." + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := os.Rename(finalDir, backup); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeOperationFailed, "failed to back up existing bundle directory", err)
	}

	if err := AtomicCommit(wipDir, finalDir); err != nil {
		if rerr := os.Rename(backup, finalDir); rerr != nil {
			return bundleerrors.New(bundleerrors.ErrCodeOperationFailed, "failed to restore bundle after failed update and backup restore also failed", err)
		}
		return err
	}

	_ = os.RemoveAll(backup)
	return nil
}

func isCrossDevice(err error) bool {
	le, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return le.Err.Error() == "invalid cross-device link" || le.Err.Error() == "cross-device link"
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFileAtomic(path, target, info.Mode())
	})
}

func copyFileAtomic(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := renameio.TempFile("", dst)
	if err != nil {
		return err
	}
	defer w.Cleanup()

	if _, err := io.Copy(w, in); err != nil {
		return err
	}
	if err := os.Chmod(w.Name(), mode); err != nil {
		// best effort; not fatal for correctness of the copy
		_ = err
	}
	return w.CloseAtomicallyReplace()
}

// ScheduleDelete renames a bundle root to `.deleting.<ts>` under its
// storage root and returns; the background sweeper removes the contents.
// Per spec this must return within ~100ms — it performs only a rename.
func ScheduleDelete(root, bundleID string) error {
	bundleDir := filepath.Join(root, bundleID)
	target := filepath.Join(root, fmt.Sprintf("%s%d", DeletingPrefix, time.Now().UnixNano()))
	if err := os.Rename(bundleDir, target); err != nil {
		if os.IsNotExist(err) {
			return bundleerrors.BundleNotFound(bundleID)
		}
		return bundleerrors.New(bundleerrors.ErrCodeOperationFailed, "failed to schedule bundle deletion", err)
	}
	return nil
}

// StartupSweep recursively removes all `.deleting.*` and `bundles-wip/*`
// entries under every configured root that are older than grace. It skips
// entries whose name is not a valid UUID v4 (for wip entries) or a
// recognized `.deleting.<unix-nanos>` prefix.
func (s *Storage) StartupSweep(ctx context.Context, logger *slog.Logger, grace time.Duration) error {
	if grace <= 0 {
		grace = time.Hour
	}
	cutoff := time.Now().Add(-grace)

	for _, root := range s.roots {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sweepDeletingEntries(root, cutoff, logger)
		sweepWipEntries(root, cutoff, logger)
	}
	return nil
}

func sweepDeletingEntries(root string, cutoff time.Time, logger *slog.Logger) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) <= len(DeletingPrefix) || e.Name()[:len(DeletingPrefix)] != DeletingPrefix {
			continue
		}
		tsStr := e.Name()[len(DeletingPrefix):]
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		if time.Unix(0, ts).After(cutoff) {
			continue
		}
		path := filepath.Join(root, e.Name())
		if err := os.RemoveAll(path); err != nil && logger != nil {
			logger.Warn("sweep: failed to remove deleting entry", "path", path, "error", err)
		}
	}
}

func sweepWipEntries(root string, cutoff time.Time, logger *slog.Logger) {
	wipRoot := filepath.Join(root, WipDirName)
	entries, err := os.ReadDir(wipRoot)
	if err != nil {
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(wipRoot, e.Name())
		if err := os.RemoveAll(path); err != nil && logger != nil {
			logger.Warn("sweep: failed to remove wip entry", "path", path, "error", err)
		}
	}
}
