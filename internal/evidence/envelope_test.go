package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type searchData struct {
	Hits int `json:"hits"`
}

func TestSuccess_BuildsOKEnvelope(t *testing.T) {
	env := Success("preflight_search_bundle", "req-1", time.Now(), searchData{Hits: 3})

	assert.True(t, env.OK)
	assert.Equal(t, "preflight_search_bundle", env.Meta.Tool)
	assert.Equal(t, SchemaVersion, env.Meta.SchemaVersion)
	if assert.NotNil(t, env.Data) {
		assert.Equal(t, 3, env.Data.Hits)
	}
	assert.Nil(t, env.Error)
}

func TestFailure_BuildsErrorEnvelope(t *testing.T) {
	env := Failure[searchData]("preflight_search_bundle", "req-2", time.Now(), ErrorInfo{
		Code: "index_missing", Message: "search index missing", Hint: "call repair_bundle",
	})

	assert.False(t, env.OK)
	assert.Nil(t, env.Data)
	if assert.NotNil(t, env.Error) {
		assert.Equal(t, "index_missing", env.Error.Code)
	}
}

func TestEnvelope_ChainingBuildsUpFields(t *testing.T) {
	env := Success("preflight_search_bundle", "req-3", time.Now(), searchData{Hits: 1}).
		WithBundleID("bundle-1").
		WithEvidence(EvidencePointer{Path: "a.go", StartLine: 1, EndLine: 2}).
		WithWarning(Warning{Code: "partial_timeout", Message: "one repo timed out", Recoverable: true}).
		WithNextAction(NextAction{Tool: "preflight_repair_bundle", Reason: "index missing"}).
		WithTruncation(Truncation{Truncated: true, ReturnedCount: 1, TotalCount: 10})

	assert.Equal(t, "bundle-1", env.Meta.BundleID)
	assert.Len(t, env.Evidence, 1)
	assert.Len(t, env.Warnings, 1)
	assert.Len(t, env.NextAction, 1)
	if assert.NotNil(t, env.Truncation) {
		assert.True(t, env.Truncation.Truncated)
	}
}
