package ingest

import (
	"time"

	"github.com/preflightbundle/preflightbundle/internal/manifest"
)

// DefaultMaxFileBytes caps a single normalized file's size. Files larger
// than this are skipped with a Note rather than truncated silently.
const DefaultMaxFileBytes = 10 * 1024 * 1024

// DefaultCloneTimeout bounds the shallow git clone attempt before falling
// back to the archive strategy.
const DefaultCloneTimeout = 60 * time.Second

// Classification is the doc/code/asset bucket a normalized file falls
// into, driving which downstream stages (FTS, AST, parser) see it.
type Classification string

const (
	ClassDoc   Classification = "doc"
	ClassCode  Classification = "code"
	ClassAsset Classification = "asset"
)

// Options configures one ingestion run. RawDir and NormDir are the
// `repos/<id>/raw` and `repos/<id>/norm` directories for this repo entry;
// callers (internal/lifecycle) are responsible for allocating them under
// the bundle's wip directory.
type Options struct {
	RawDir      string
	NormDir     string
	MaxFileSize int64
	Workers     int
	CloneRef    string // branch/tag/sha to check out, empty = default branch
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileBytes
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultCloneTimeout
	}
	return o
}

// NormalizedFile describes one file that survived normalization and
// classification, ready for the parser/chunker/AST stages.
type NormalizedFile struct {
	RelPath        string
	AbsPath        string // under NormDir
	Size           int64
	Classification Classification
	Language       string
}

// Result is the outcome of ingesting one repo entry: the manifest fragment
// to merge into Manifest.Repos, the surviving normalized files, and any
// skip/fallback notes accumulated along the way.
type Result struct {
	Repo  manifest.Repo
	Files []NormalizedFile
	Notes []manifest.Note
}
