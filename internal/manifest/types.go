// Package manifest implements the canonical bundle manifest, its
// content-addressed fingerprint, and the best-effort fingerprint→bundleId
// de-duplication index.
package manifest

import "time"

// SchemaVersion is the current manifest schema version. Bumping it is a
// breaking change to manifest.json's shape.
const SchemaVersion = 1

// RepoKind enumerates the source a repo entry was ingested from.
type RepoKind string

const (
	RepoKindGitHub RepoKind = "github"
	RepoKindLocal  RepoKind = "local"
	RepoKindDocs   RepoKind = "docs"
)

// RepoSource enumerates how a repo's bytes were actually fetched.
type RepoSource string

const (
	SourceGit     RepoSource = "git"
	SourceArchive RepoSource = "archive"
	SourceLocal   RepoSource = "local"
)

// Repo is one entry of Manifest.Repos.
type Repo struct {
	Kind      RepoKind   `json:"kind"`
	ID        string     `json:"id"`
	Source    RepoSource `json:"source"`
	HeadSHA   string     `json:"headSha,omitempty"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	Notes     []Note     `json:"notes,omitempty"`
}

// Note is a structured, non-fatal observation attached to a repo entry,
// e.g. a skipped over-cap file or a fallback-strategy warning.
type Note struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// Input is one normalized element of the request that produced a bundle's
// fingerprint: a repo reference, a library name, or a topic.
type Input struct {
	Kind  string `json:"kind"` // "repo" | "library" | "topic"
	Value string `json:"value"`
}

// Manifest is the canonical, on-disk description of a bundle. It is
// written last during Create/Update, and its presence (invariant I1) is
// the sole signal that a bundle is usable.
type Manifest struct {
	SchemaVersion   int       `json:"schemaVersion"`
	BundleID        string    `json:"bundleId"`
	Fingerprint     string    `json:"fingerprint"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Inputs          []Input   `json:"inputs"`
	Repos           []Repo    `json:"repos"`
	Tags            []string  `json:"tags,omitempty"`
	DisplayName     string    `json:"displayName,omitempty"`
	PrimaryLanguage string    `json:"primaryLanguage,omitempty"`
}

// Validate checks the manifest's own invariants (not disk-level
// integrity, which is the Storage Layer's concern): updatedAt must never
// precede createdAt, and schemaVersion/bundleId/fingerprint must be set.
func (m *Manifest) Validate() error {
	if m.SchemaVersion == 0 || m.BundleID == "" || m.Fingerprint == "" {
		return errManifestField
	}
	if m.UpdatedAt.Before(m.CreatedAt) {
		return errManifestOrdering
	}
	return nil
}
