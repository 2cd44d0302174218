package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/gofrs/flock"
)

// IndexFileName is the process-local de-duplication index persisted at the
// storage root. It is best-effort: the source of truth is the set of
// manifests on disk, so a missing or stale index is rebuilt by scanning.
const IndexFileName = ".preflight-dedup-index.json"

// DedupIndex maps fingerprint → bundleId, guarded by a gofrs/flock file
// lock across process boundaries (shared lock for readers, exclusive for
// writers), the same pattern the embedding cache uses for model downloads.
type DedupIndex struct {
	path  string
	flock *flock.Flock
}

type dedupFile struct {
	Entries map[string]string `json:"entries"`
}

// NewDedupIndex opens (but does not yet load) the dedup index file under
// storageRoot.
func NewDedupIndex(storageRoot string) *DedupIndex {
	path := filepath.Join(storageRoot, IndexFileName)
	return &DedupIndex{path: path, flock: flock.New(path + ".lock")}
}

// Lookup returns the bundleId for fingerprint, if present, under a shared
// lock.
func (d *DedupIndex) Lookup(fingerprint string) (string, bool, error) {
	if err := d.flock.RLock(); err != nil {
		return "", false, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to acquire dedup index read lock", err)
	}
	defer d.flock.Unlock()

	entries, err := d.readLocked()
	if err != nil {
		return "", false, err
	}
	id, ok := entries[fingerprint]
	return id, ok, nil
}

// Put records fingerprint → bundleId under an exclusive lock.
func (d *DedupIndex) Put(fingerprint, bundleID string) error {
	if err := d.flock.Lock(); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to acquire dedup index write lock", err)
	}
	defer d.flock.Unlock()

	entries, err := d.readLocked()
	if err != nil {
		entries = map[string]string{}
	}
	entries[fingerprint] = bundleID
	return d.writeLocked(entries)
}

// Remove deletes fingerprint's entry, if present, under an exclusive lock.
func (d *DedupIndex) Remove(fingerprint string) error {
	if err := d.flock.Lock(); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to acquire dedup index write lock", err)
	}
	defer d.flock.Unlock()

	entries, err := d.readLocked()
	if err != nil {
		return nil
	}
	delete(entries, fingerprint)
	return d.writeLocked(entries)
}

// Rebuild scans every manifest.json reachable under bundleDirs (typically
// one entry per bundle root's top-level bundle directories) and replaces
// the index wholesale. This is the recovery path for a missing or corrupt
// index file, since manifests on disk are always the source of truth.
func (d *DedupIndex) Rebuild(bundleDirs []string) error {
	entries := make(map[string]string, len(bundleDirs))
	for _, dir := range bundleDirs {
		raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.Fingerprint == "" || m.BundleID == "" {
			continue
		}
		entries[m.Fingerprint] = m.BundleID
	}

	if err := d.flock.Lock(); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to acquire dedup index write lock", err)
	}
	defer d.flock.Unlock()
	return d.writeLocked(entries)
}

func (d *DedupIndex) readLocked() (map[string]string, error) {
	raw, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, bundleerrors.New(bundleerrors.ErrCodeFileCorrupt, "failed to read dedup index", err)
	}
	var f dedupFile
	if err := json.Unmarshal(raw, &f); err != nil {
		// A corrupt index is not fatal; the caller rebuilds from
		// manifests on disk.
		return map[string]string{}, nil
	}
	if f.Entries == nil {
		f.Entries = map[string]string{}
	}
	return f.Entries, nil
}

func (d *DedupIndex) writeLocked(entries map[string]string) error {
	raw, err := json.MarshalIndent(dedupFile{Entries: entries}, "", "  ")
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeInternal, "failed to marshal dedup index", err)
	}
	tmp := d.path + ".tmp." + time.Now().Format("20060102150405.000000000")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to write dedup index", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		_ = os.Remove(tmp)
		return bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to publish dedup index", err)
	}
	return nil
}
