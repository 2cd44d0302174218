package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_StartSetStageStep_ComputesPercent(t *testing.T) {
	tr := NewTracker()
	handle := tr.Start("fp-1", "task-1")

	handle.SetStage(StageFetching, 4)
	handle.Step()
	handle.Step()

	p, ok := tr.ByFingerprint("fp-1")
	require.True(t, ok)
	assert.Equal(t, StageFetching, p.Stage)
	assert.Equal(t, 50.0, p.Percent)
	assert.Equal(t, "task-1", p.TaskID)
}

func TestTracker_ByTaskID_ResolvesSameEntry(t *testing.T) {
	tr := NewTracker()
	tr.Start("fp-1", "task-1")

	p, ok := tr.ByTaskID("task-1")
	require.True(t, ok)
	assert.Equal(t, "fp-1", p.Fingerprint)
}

func TestTracker_Fail_RecordsErrorAndStage(t *testing.T) {
	tr := NewTracker()
	handle := tr.Start("fp-1", "task-1")

	handle.Fail(errors.New("boom"))

	p, ok := tr.ByFingerprint("fp-1")
	require.True(t, ok)
	assert.Equal(t, StageError, p.Stage)
	assert.Equal(t, "boom", p.Error)
}

func TestTracker_Complete_SetsFullPercent(t *testing.T) {
	tr := NewTracker()
	handle := tr.Start("fp-1", "task-1")
	handle.SetStage(StageFetching, 10)

	handle.Complete()

	p, ok := tr.ByFingerprint("fp-1")
	require.True(t, ok)
	assert.Equal(t, StageDone, p.Stage)
	assert.Equal(t, 100.0, p.Percent)
}

func TestTracker_Forget_RemovesBothIndices(t *testing.T) {
	tr := NewTracker()
	tr.Start("fp-1", "task-1")

	tr.Forget("fp-1")

	_, ok := tr.ByFingerprint("fp-1")
	assert.False(t, ok)
	_, ok = tr.ByTaskID("task-1")
	assert.False(t, ok)
}
