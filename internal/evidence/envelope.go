package evidence

import "time"

// Meta carries per-response bookkeeping every envelope includes regardless
// of outcome.
type Meta struct {
	Tool          string `json:"tool"`
	SchemaVersion string `json:"schemaVersion"`
	RequestID     string `json:"requestId"`
	TimeMs        int64  `json:"timeMs"`
	BundleID      string `json:"bundleId,omitempty"`
}

// ErrorInfo is the error half of an envelope, populated when Ok is false.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Hint    string            `json:"hint,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Warning is a non-fatal note attached to an otherwise-successful response
// (e.g. one repo in a multi-repo search timed out).
type Warning struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// NextAction suggests a follow-up tool call a caller might make, e.g.
// "call repair_bundle" after an index_missing error.
type NextAction struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
	Reason string         `json:"reason"`
}

// Truncation reports whether a paginated or capped result was cut short,
// and how to resume it.
type Truncation struct {
	Truncated     bool   `json:"truncated"`
	NextCursor    string `json:"nextCursor,omitempty"`
	Reason        string `json:"reason,omitempty"`
	ReturnedCount int    `json:"returnedCount,omitempty"`
	TotalCount    int    `json:"totalCount,omitempty"`
}

// Envelope is the uniform shape every MCP tool returns, generalized from
// the teacher's ad hoc markdown-formatting helpers into one typed
// structure so every tool result carries the same success/error/warning/
// evidence shape instead of each tool inventing its own.
type Envelope[T any] struct {
	OK         bool              `json:"ok"`
	Meta       Meta              `json:"meta"`
	Data       *T                `json:"data,omitempty"`
	Error      *ErrorInfo        `json:"error,omitempty"`
	Warnings   []Warning         `json:"warnings,omitempty"`
	NextAction []NextAction      `json:"nextActions,omitempty"`
	Truncation *Truncation       `json:"truncation,omitempty"`
	Evidence   []EvidencePointer `json:"evidence,omitempty"`
}

// Success builds an ok=true envelope around data, stamping meta.timeMs
// from the given start time.
func Success[T any](tool, requestID string, start time.Time, data T) Envelope[T] {
	return Envelope[T]{
		OK: true,
		Meta: Meta{
			Tool:          tool,
			SchemaVersion: SchemaVersion,
			RequestID:     requestID,
			TimeMs:        time.Since(start).Milliseconds(),
		},
		Data: &data,
	}
}

// Failure builds an ok=false envelope carrying the given error.
func Failure[T any](tool, requestID string, start time.Time, errInfo ErrorInfo) Envelope[T] {
	return Envelope[T]{
		OK: false,
		Meta: Meta{
			Tool:          tool,
			SchemaVersion: SchemaVersion,
			RequestID:     requestID,
			TimeMs:        time.Since(start).Milliseconds(),
		},
		Error: &errInfo,
	}
}

// WithBundleID sets meta.bundleId and returns the envelope for chaining.
func (e Envelope[T]) WithBundleID(bundleID string) Envelope[T] {
	e.Meta.BundleID = bundleID
	return e
}

// WithEvidence attaches evidence pointers and returns the envelope for
// chaining.
func (e Envelope[T]) WithEvidence(pointers ...EvidencePointer) Envelope[T] {
	e.Evidence = append(e.Evidence, pointers...)
	return e
}

// WithWarning appends a warning and returns the envelope for chaining.
func (e Envelope[T]) WithWarning(w Warning) Envelope[T] {
	e.Warnings = append(e.Warnings, w)
	return e
}

// WithNextAction appends a suggested follow-up and returns the envelope
// for chaining.
func (e Envelope[T]) WithNextAction(a NextAction) Envelope[T] {
	e.NextAction = append(e.NextAction, a)
	return e
}

// WithTruncation sets the truncation block and returns the envelope for
// chaining.
func (e Envelope[T]) WithTruncation(t Truncation) Envelope[T] {
	e.Truncation = &t
	return e
}

// SchemaVersion is the envelope's own schema version, independent of
// manifest.SchemaVersion.
const SchemaVersion = "1"
