package lifecycle

import (
	"time"

	"github.com/preflightbundle/preflightbundle/internal/manifest"
)

// IfExists controls Create's behavior when a bundle with the same
// fingerprint already exists.
type IfExists string

const (
	IfExistsError          IfExists = "error"
	IfExistsReturnExisting IfExists = "returnExisting"
	IfExistsUpdateExisting IfExists = "updateExisting"
	IfExistsCreateNew      IfExists = "createNew"
)

// CreateOptions describes the inputs of a create transaction. Repos are
// GitHub identifiers (owner/repo or a full URL); LocalPaths are local
// directories copied in as repo-kind entries; DocPaths are loose files
// upserted under the synthetic docs repo; Libraries/Topics are descriptive
// inputs that participate in the fingerprint but fetch nothing.
type CreateOptions struct {
	Repos       []string
	LocalPaths  []string
	DocPaths    []string
	Libraries   []string
	Topics      []string
	Tags        []string
	DisplayName string
	IfExists    IfExists
	AllowVLM    bool
	AllowOCR    bool
	AllowCloud  bool
}

func (o CreateOptions) withDefaults() CreateOptions {
	if o.IfExists == "" {
		o.IfExists = IfExistsError
	}
	return o
}

// TransactionResult is the outcome of a Create or Update transaction.
type TransactionResult struct {
	BundleID    string
	Fingerprint string
	TaskID      string
	Manifest    *manifest.Manifest
	Created     bool // false when returnExisting/updateExisting short-circuited
}

// UpdateOptions describes an update transaction's behavior.
type UpdateOptions struct {
	CheckOnly bool
	Force     bool
}

// UpdateCheckResult is what CheckOnly=true returns: per-repo deltas without
// mutating the bundle.
type UpdateCheckResult struct {
	BundleID   string
	HasChanges bool
	RepoDeltas []RepoDelta
}

// RepoDelta reports one repo's remote-HEAD delta for an update check.
type RepoDelta struct {
	RepoID     string
	OldHeadSHA string
	NewHeadSHA string
	Changed    bool
	Note       string
}

// RepairMode selects whether Repair only reports missing artifacts or
// regenerates them.
type RepairMode string

const (
	RepairValidate RepairMode = "validate"
	RepairFix      RepairMode = "repair"
)

// RepairResult reports which required artifacts were missing/empty, and
// (in RepairFix mode) which of those were regenerated.
type RepairResult struct {
	BundleID    string
	Missing     []string
	Regenerated []string
}

// requiredArtifacts are the files Repair checks for presence and
// non-emptiness, per spec.md's repair invariant.
var requiredArtifacts = []string{
	"indexes/search.sqlite3",
	"START_HERE.md",
	"AGENTS.md",
	"OVERVIEW.md",
}

// now is overridable in tests.
var now = time.Now
