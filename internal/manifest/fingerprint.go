package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// githubURLPattern reduces a GitHub URL (with or without scheme, trailing
// slash, .git suffix, or www) to its bare owner/repo form.
var githubURLPattern = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)

// CanonicalizeRepoID reduces any accepted spelling of a repo identifier
// (bare "owner/repo", a full GitHub URL, or an SSH-style remote) to a
// single lower-cased "owner/repo" form, so equivalent spellings produce
// the same fingerprint.
func CanonicalizeRepoID(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git@github.com:")
	if m := githubURLPattern.FindStringSubmatch(s); m != nil {
		s = m[1] + "/" + m[2]
	}
	s = strings.TrimSuffix(s, ".git")
	s = strings.TrimSuffix(s, "/")
	return strings.ToLower(s)
}

// CanonicalInputs produces the sorted, lower-cased, de-duplicated set of
// Input values that Fingerprint hashes. Repos are canonicalized via
// CanonicalizeRepoID; library and topic values are merely trimmed and
// lower-cased. The result is deterministic regardless of input order.
func CanonicalInputs(repos, libraries, topics []string) []Input {
	inputs := make([]Input, 0, len(repos)+len(libraries)+len(topics))
	seen := make(map[string]struct{})

	add := func(kind, value string) {
		key := kind + ":" + value
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		inputs = append(inputs, Input{Kind: kind, Value: value})
	}

	for _, r := range repos {
		add("repo", CanonicalizeRepoID(r))
	}
	for _, l := range libraries {
		add("library", strings.ToLower(strings.TrimSpace(l)))
	}
	for _, t := range topics {
		add("topic", strings.ToLower(strings.TrimSpace(t)))
	}

	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].Kind != inputs[j].Kind {
			return inputs[i].Kind < inputs[j].Kind
		}
		return inputs[i].Value < inputs[j].Value
	})
	return inputs
}

// Fingerprint computes the SHA-256 hex digest over the canonicalized
// input set. Per invariant: canonicalize(A) = canonicalize(B) implies
// fingerprint(A) = fingerprint(B).
func Fingerprint(inputs []Input) string {
	var sb strings.Builder
	for _, in := range inputs {
		sb.WriteString(in.Kind)
		sb.WriteByte('\x1f')
		sb.WriteString(in.Value)
		sb.WriteByte('\x1e')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
