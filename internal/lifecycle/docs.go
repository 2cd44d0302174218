package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/manifest"
)

const manifestFileName = "manifest.json"

// writeManifest marshals mf as canonical JSON and writes it to
// <wipDir>/manifest.json. This is always the last file written by a
// transaction before the atomic rename, per invariant I1.
func writeManifest(wipDir string, mf *manifest.Manifest) error {
	raw, err := manifest.MarshalCanonical(mf)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(wipDir, manifestFileName), raw, 0o644)
}

// readManifest loads and decodes manifest.json from a bundle directory.
func readManifest(bundleDir string) (*manifest.Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(bundleDir, manifestFileName))
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeIndexMissing, "manifest.json not found", err)
	}
	var mf manifest.Manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeManifestInvalid, "manifest.json could not be decoded", err)
	}
	return &mf, nil
}

// writeDocs generates the three orientation documents every bundle ships
// with: START_HERE.md (a one-screen entry point), AGENTS.md (per-repo
// guidance an assistant reads before editing), and OVERVIEW.md (the repo
// inventory and file counts by classification). None of these existed as
// a generator before the knowledge-base engine shipped; they are produced
// directly from the files and repos staged by this transaction.
func (m *Manager) writeDocs(build *buildState) error {
	if err := writeStartHere(build); err != nil {
		return err
	}
	if err := writeAgents(build); err != nil {
		return err
	}
	if err := writeOverview(build); err != nil {
		return err
	}
	return nil
}

func writeStartHere(build *buildState) error {
	var sb strings.Builder
	sb.WriteString("# Start Here\n\n")
	sb.WriteString("This bundle indexes the following repositories:\n\n")
	for _, r := range build.repos {
		fmt.Fprintf(&sb, "- **%s** (%s, via %s)\n", r.ID, r.Kind, r.Source)
	}
	sb.WriteString("\nUse the search tools to find relevant code and docs before making changes. ")
	sb.WriteString("Every claim returned by search is traceable back to a specific file and line; cite it rather than paraphrasing from memory.\n")
	return os.WriteFile(filepath.Join(build.wipDir, "START_HERE.md"), []byte(sb.String()), 0o644)
}

func writeAgents(build *buildState) error {
	var sb strings.Builder
	sb.WriteString("# Agent Guidance\n\n")
	if len(build.repos) == 0 {
		sb.WriteString("No repositories are indexed yet.\n")
		return os.WriteFile(filepath.Join(build.wipDir, "AGENTS.md"), []byte(sb.String()), 0o644)
	}
	for _, r := range build.repos {
		fmt.Fprintf(&sb, "## %s\n\n", r.ID)
		fmt.Fprintf(&sb, "- kind: %s\n", r.Kind)
		if r.HeadSHA != "" {
			fmt.Fprintf(&sb, "- head: %s\n", r.HeadSHA)
		}
		for _, n := range r.Notes {
			fmt.Fprintf(&sb, "- note: %s (%s)\n", n.Message, n.Code)
		}
		sb.WriteString("\n")
	}
	return os.WriteFile(filepath.Join(build.wipDir, "AGENTS.md"), []byte(sb.String()), 0o644)
}

func writeOverview(build *buildState) error {
	counts := map[string]int{}
	langCounts := map[string]int{}
	for _, f := range build.files {
		counts[string(f.Classification)]++
		if f.Language != "" {
			langCounts[f.Language]++
		}
	}

	var sb strings.Builder
	sb.WriteString("# Overview\n\n")
	fmt.Fprintf(&sb, "- repositories: %d\n", len(build.repos))
	fmt.Fprintf(&sb, "- files: %d\n", len(build.files))
	fmt.Fprintf(&sb, "- chunks: %d\n", len(build.chunks))
	sb.WriteString("\n## Files by classification\n\n")
	for _, k := range sortedKeys(counts) {
		fmt.Fprintf(&sb, "- %s: %d\n", k, counts[k])
	}
	if len(langCounts) > 0 {
		sb.WriteString("\n## Files by language\n\n")
		for _, k := range sortedKeys(langCounts) {
			fmt.Fprintf(&sb, "- %s: %d\n", k, langCounts[k])
		}
	}
	return os.WriteFile(filepath.Join(build.wipDir, "OVERVIEW.md"), []byte(sb.String()), 0o644)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
