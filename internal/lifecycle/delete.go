package lifecycle

import (
	stderrors "errors"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/storage"
)

// Delete schedules a bundle for removal on every storage root it exists
// on and returns as soon as each root's rename completes — per spec this
// must acknowledge within ~100ms, so the actual content removal is left
// to the background sweeper (Storage.StartupSweep) rather than done
// inline here.
func (m *Manager) Delete(bundleID string) error {
	release := m.lockForDelete(bundleID)
	defer release()

	var lastErr error
	found := false
	for _, root := range m.storage.Roots() {
		err := storage.ScheduleDelete(root, bundleID)
		var bundleErr *bundleerrors.BundleError
		switch {
		case err == nil:
			found = true
		case stderrors.As(err, &bundleErr) && bundleErr.Code == bundleerrors.ErrCodeBundleNotFound:
			// Not every mirror necessarily has this bundle; keep going.
		default:
			lastErr = err
		}
	}
	if !found && lastErr == nil {
		return bundleerrors.BundleNotFound(bundleID)
	}
	return lastErr
}

// lockForDelete locks on the bundle's fingerprint when its manifest is
// still readable, falling back to locking on the bare bundleID for a
// bundle whose manifest is already missing or corrupt — still better
// than no serialization at all against a concurrent create/update.
func (m *Manager) lockForDelete(bundleID string) func() {
	if bundleDir, ok := m.storage.ResolveBundleRoot(bundleID); ok {
		if mf, err := readManifest(bundleDir); err == nil {
			return m.locks.Lock(mf.Fingerprint)
		}
	}
	return m.locks.Lock(bundleID)
}
