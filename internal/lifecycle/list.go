package lifecycle

import (
	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/manifest"
)

// BundleSummary is one entry in List's result: the manifest plus the
// storage root it currently resolves under.
type BundleSummary struct {
	Root     string
	Manifest *manifest.Manifest
}

// List returns every usable bundle across all storage roots, in
// ListBundleIDs order. A bundle whose manifest.json cannot be read is
// skipped rather than failing the whole listing.
func (m *Manager) List() ([]BundleSummary, error) {
	ids, err := m.storage.ListBundleIDs()
	if err != nil {
		return nil, err
	}

	summaries := make([]BundleSummary, 0, len(ids))
	for _, id := range ids {
		root, ok := m.storage.ResolveBundleRoot(id)
		if !ok {
			continue
		}
		mf, err := readManifest(root)
		if err != nil {
			continue
		}
		summaries = append(summaries, BundleSummary{Root: root, Manifest: mf})
	}
	return summaries, nil
}

// Get returns a single bundle's manifest and resolved root directory.
func (m *Manager) Get(bundleID string) (*BundleSummary, error) {
	root, ok := m.storage.ResolveBundleRoot(bundleID)
	if !ok {
		return nil, bundleerrors.BundleNotFound(bundleID)
	}
	mf, err := readManifest(root)
	if err != nil {
		return nil, err
	}
	return &BundleSummary{Root: root, Manifest: mf}, nil
}
