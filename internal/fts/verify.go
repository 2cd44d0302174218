package fts

import (
	"context"
	"fmt"
	"strings"
)

// Confidence is the qualitative strength label for a claim verification
// result.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// negationTerms are appended to the claim query to surface hits that
// plausibly contradict it.
var negationTerms = []string{"does not", "not", "except"}

// neutralTerms are appended to the claim query to surface hits that
// merely mention the claim's subject without asserting or denying it.
var neutralTerms = []string{"mentions", "about", "regarding"}

// VerifyResult is the classified outcome of ClaimVerification.
type VerifyResult struct {
	Supporting   []Hit
	Contradicting []Hit
	Related      []Hit
	Confidence   Confidence
	Summary      string
}

// VerifyClaim performs claim verification per spec.md §4.6: the same
// tokenization as Search, three sub-queries (claim terms; claim plus
// negation terms; claim plus neutral terms), classified into
// supporting/contradicting/related buckets with a qualitative confidence.
func VerifyClaim(ctx context.Context, idx *Index, claim string, scope Scope, limit int) (VerifyResult, error) {
	baseExpr, _, _ := BuildQuery(claim, DefaultMaxQueryTokens)

	supporting, err := idx.Search(ctx, baseExpr, scope, limit)
	if err != nil {
		return VerifyResult{}, err
	}

	negExpr, _, _ := BuildQuery(claim+" "+joinTerms(negationTerms), DefaultMaxQueryTokens)
	contradicting, err := idx.Search(ctx, negExpr, scope, limit)
	if err != nil {
		return VerifyResult{}, err
	}

	neutralExpr, _, _ := BuildQuery(claim+" "+joinTerms(neutralTerms), DefaultMaxQueryTokens)
	related, err := idx.Search(ctx, neutralExpr, scope, limit)
	if err != nil {
		return VerifyResult{}, err
	}

	// A claim-term hit contradicts the claim when its line carries a
	// negation word; the remaining claim-term hits support it.
	negated := make([]Hit, 0, len(contradicting))
	for _, h := range contradicting {
		for _, w := range wordPattern.FindAllString(strings.ToLower(h.Snippet), -1) {
			if w == "not" || w == "except" {
				negated = append(negated, h)
				break
			}
		}
	}
	contradicting = negated
	supporting = excludeByPath(supporting, contradicting)
	related = excludeByPath(excludeByPath(related, supporting), contradicting)

	result := VerifyResult{
		Supporting:    supporting,
		Contradicting: contradicting,
		Related:       related,
		Confidence:    classifyConfidence(supporting, contradicting),
	}
	result.Summary = summarize(claim, result)
	return result, nil
}

func joinTerms(terms []string) string {
	out := ""
	for i, t := range terms {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}

func excludeByPath(hits, exclude []Hit) []Hit {
	excluded := make(map[string]struct{}, len(exclude))
	for _, h := range exclude {
		excluded[fmt.Sprintf("%s:%d", h.Path, h.LineNo)] = struct{}{}
	}
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		key := fmt.Sprintf("%s:%d", h.Path, h.LineNo)
		if _, ok := excluded[key]; ok {
			continue
		}
		out = append(out, h)
	}
	return out
}

// classifyConfidence derives a qualitative label from the counts and
// relative strength of supporting vs. contradicting evidence.
func classifyConfidence(supporting, contradicting []Hit) Confidence {
	switch {
	case len(supporting) == 0 && len(contradicting) == 0:
		return ConfidenceNone
	case len(supporting) > 0 && len(contradicting) > 0:
		return ConfidenceLow
	case len(supporting) >= 3 || len(contradicting) >= 3:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

func summarize(claim string, r VerifyResult) string {
	switch {
	case len(r.Supporting) > 0 && len(r.Contradicting) > 0:
		return fmt.Sprintf("found %d supporting and %d contradicting mention(s) of %q; manual review recommended",
			len(r.Supporting), len(r.Contradicting), claim)
	case len(r.Supporting) > 0:
		return fmt.Sprintf("found %d supporting mention(s) of %q and no contradictions", len(r.Supporting), claim)
	case len(r.Contradicting) > 0:
		return fmt.Sprintf("found %d mention(s) contradicting %q", len(r.Contradicting), claim)
	default:
		return fmt.Sprintf("no direct evidence found for %q (%d related mention(s))", claim, len(r.Related))
	}
}
