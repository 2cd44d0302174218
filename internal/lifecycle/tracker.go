package lifecycle

import (
	"sync"
	"time"
)

// Stage names a step of a bundle transaction's progress. Unlike
// async.IndexingStage (four fixed code-index stages), a bundle transaction
// has more steps and they differ between create/update/repair/delete, so
// Stage is a plain string rather than a closed enum.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageParsing    Stage = "parsing"
	StageIndexing   Stage = "indexing"
	StageEmbedding  Stage = "embedding"
	StageAnalyzing  Stage = "analyzing"
	StagePublishing Stage = "publishing"
	StageValidating Stage = "validating"
	StageRepairing  Stage = "repairing"
	StageDeleting   Stage = "deleting"
	StageDone       Stage = "done"
	StageError      Stage = "error"
	StageCancelled  Stage = "cancelled"
)

// Progress is an immutable snapshot of one in-flight transaction's state,
// the shape spec.md's progress tracker polls: { stage, percent, message,
// startedAt, taskId }.
type Progress struct {
	TaskID      string    `json:"taskId"`
	Fingerprint string    `json:"fingerprint"`
	Stage       Stage     `json:"stage"`
	Percent     float64   `json:"percent"`
	Message     string    `json:"message"`
	StartedAt   time.Time `json:"startedAt"`
	Error       string    `json:"error,omitempty"`
}

type trackerEntry struct {
	mu        sync.Mutex
	taskID    string
	startedAt time.Time
	stage     Stage
	total     int
	done      int
	message   string
	err       string
}

func (e *trackerEntry) snapshot(fingerprint string) Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	var pct float64
	if e.total > 0 {
		pct = float64(e.done) / float64(e.total) * 100.0
		if pct > 100 {
			pct = 100
		}
	}
	return Progress{
		TaskID:      e.taskID,
		Fingerprint: fingerprint,
		Stage:       e.stage,
		Percent:     pct,
		Message:     e.message,
		StartedAt:   e.startedAt,
		Error:       e.err,
	}
}

// Tracker is the in-memory progress map keyed by fingerprint, safe to poll
// concurrently from any number of preflight_get_task_status callers while a
// transaction updates it from its own goroutine.
type Tracker struct {
	mu       sync.RWMutex
	byFP     map[string]*trackerEntry
	byTaskID map[string]string
}

// NewTracker creates an empty progress tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byFP:     make(map[string]*trackerEntry),
		byTaskID: make(map[string]string),
	}
}

// Handle is the write side of one transaction's progress entry, held by the
// goroutine running the transaction.
type Handle struct {
	t           *Tracker
	fingerprint string
	entry       *trackerEntry
}

// Start registers a new in-flight transaction for fingerprint under taskID
// and returns a Handle for updating it. A fingerprint can only have one
// live handle at a time in practice, since FingerprintLocks serializes
// transactions per fingerprint.
func (t *Tracker) Start(fingerprint, taskID string) *Handle {
	e := &trackerEntry{taskID: taskID, startedAt: time.Now(), stage: StageFetching}

	t.mu.Lock()
	t.byFP[fingerprint] = e
	t.byTaskID[taskID] = fingerprint
	t.mu.Unlock()

	return &Handle{t: t, fingerprint: fingerprint, entry: e}
}

// SetStage begins a new stage with total units of work (zero if unknown).
func (h *Handle) SetStage(stage Stage, total int) {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	h.entry.stage = stage
	h.entry.total = total
	h.entry.done = 0
}

// Step advances the current stage's completed-unit count by one.
func (h *Handle) Step() {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	h.entry.done++
}

// Message attaches a human-readable status line to the current stage.
func (h *Handle) Message(msg string) {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	h.entry.message = msg
}

// Complete marks the transaction done.
func (h *Handle) Complete() {
	h.SetStage(StageDone, 1)
	h.entry.mu.Lock()
	h.entry.done = 1
	h.entry.mu.Unlock()
}

// Fail marks the transaction as having errored out.
func (h *Handle) Fail(err error) {
	h.entry.mu.Lock()
	h.entry.stage = StageError
	if err != nil {
		h.entry.err = err.Error()
	}
	h.entry.mu.Unlock()
}

// Snapshot returns the handle's current progress.
func (h *Handle) Snapshot() Progress {
	return h.entry.snapshot(h.fingerprint)
}

// ByFingerprint returns the progress of the transaction (if any) currently
// tracked for fingerprint.
func (t *Tracker) ByFingerprint(fingerprint string) (Progress, bool) {
	t.mu.RLock()
	e, ok := t.byFP[fingerprint]
	t.mu.RUnlock()
	if !ok {
		return Progress{}, false
	}
	return e.snapshot(fingerprint), true
}

// ByTaskID returns the progress of the transaction (if any) tracked under
// taskID.
func (t *Tracker) ByTaskID(taskID string) (Progress, bool) {
	t.mu.RLock()
	fp, ok := t.byTaskID[taskID]
	t.mu.RUnlock()
	if !ok {
		return Progress{}, false
	}
	return t.ByFingerprint(fp)
}

// Forget removes a transaction's entry from both indices at once; callers
// call this from a deferred cleanup, so once a transaction has returned a
// poll for its fingerprint or taskID finds no entry.
func (t *Tracker) Forget(fingerprint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byFP[fingerprint]; ok {
		delete(t.byTaskID, e.taskID)
	}
	delete(t.byFP, fingerprint)
}
