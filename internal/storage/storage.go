// Package storage implements the multi-root bundle directory layout: safe
// path joins, atomic rename-based publication, mirrored writes across
// storage roots, and the deferred-delete/startup-sweep cleanup protocol.
//
// A bundle root is never mutated in place. The only operation that makes a
// bundle's content visible to readers is an atomic rename of a wip
// directory into its final name (see AtomicCommit).
package storage

import (
	"os"
	"path/filepath"
	"strings"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/google/uuid"
)

const (
	// WipDirName is the subdirectory under a storage root that holds
	// in-progress bundle builds before they are renamed into place.
	WipDirName = "bundles-wip"

	// DeletingPrefix names directories scheduled for background removal.
	DeletingPrefix = ".deleting."
)

// Storage maintains an ordered list of storage roots. Reads use the first
// root where a bundle exists; writes mirror to every root currently
// reachable.
type Storage struct {
	roots []string
}

// New creates a Storage over the given ordered list of roots. Each root is
// created if missing; a root that cannot be created or stat'd is dropped
// with no error — per invariant I3, an unreachable or read-only root is
// skipped, never fatal, as long as at least one root remains.
func New(roots []string) (*Storage, error) {
	var usable []string
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		if err := os.MkdirAll(filepath.Join(abs, WipDirName), 0o755); err != nil {
			continue
		}
		usable = append(usable, abs)
	}
	if len(usable) == 0 {
		return nil, bundleerrors.New(bundleerrors.ErrCodeConfigInvalid, "no usable storage root", nil)
	}
	return &Storage{roots: usable}, nil
}

// Roots returns the configured, reachable storage roots in priority order.
func (s *Storage) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// SafeJoin joins root and rel, rejecting `..` traversal, absolute paths,
// and UNC prefixes. The returned path is always a descendant of root.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" {
		return root, nil
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, `\\`) || strings.HasPrefix(rel, "//") {
		return "", bundleerrors.InvalidPath(rel)
	}
	cleanRel := filepath.Clean(rel)
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", bundleerrors.InvalidPath(rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", bundleerrors.InvalidPath(rel)
	}
	joined := filepath.Join(absRoot, cleanRel)

	// Containment check mirrors the scanner's subtree guard: the joined
	// path must share the root as a path prefix, not merely a string
	// prefix (avoids "/root-evil" matching "/root").
	if joined != absRoot && !strings.HasPrefix(joined, absRoot+string(filepath.Separator)) {
		return "", bundleerrors.InvalidPath(rel)
	}
	return joined, nil
}

// NewWipDir allocates a fresh `bundles-wip/<rand>` directory in the given
// root and returns its absolute path.
func NewWipDir(root string) (string, error) {
	id := uuid.New().String()
	wip, err := SafeJoin(root, filepath.Join(WipDirName, id))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(wip, 0o755); err != nil {
		return "", bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to create wip directory", err)
	}
	return wip, nil
}

// ResolveBundleRoot scans the configured roots in order and returns the
// first root containing a valid `manifest.json` for bundleID. Per
// invariant I1, the presence of manifest.json is the only usability
// signal; ResolveBundleRoot does not itself validate structural integrity
// beyond that the file exists and is non-empty.
func (s *Storage) ResolveBundleRoot(bundleID string) (string, bool) {
	for _, root := range s.roots {
		bundleDir := filepath.Join(root, bundleID)
		info, err := os.Stat(filepath.Join(bundleDir, "manifest.json"))
		if err == nil && info.Size() > 0 {
			return bundleDir, true
		}
	}
	return "", false
}

// ListBundleIDs enumerates bundle directories across all roots holding a
// manifest.json, de-duplicated, in root-priority order.
func (s *Storage) ListBundleIDs() ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, root := range s.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || e.Name() == WipDirName || strings.HasPrefix(e.Name(), DeletingPrefix) {
				continue
			}
			if _, ok := seen[e.Name()]; ok {
				continue
			}
			if _, err := uuid.Parse(e.Name()); err != nil {
				continue
			}
			info, err := os.Stat(filepath.Join(root, e.Name(), "manifest.json"))
			if err != nil || info.Size() == 0 {
				continue
			}
			seen[e.Name()] = struct{}{}
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
