// Package mcp implements the Model Context Protocol server exposing the
// preflight_* tool surface.
package mcp

import (
	"context"
	"errors"
	"time"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/evidence"
)

// errorInfo builds the envelope's error object from any error. A
// *bundleerrors.BundleError carries its own canonical taxonomy code and
// recovery hint, derived from its internal code; anything else is reported
// under the catch-all "unknown" code.
func errorInfo(err error) evidence.ErrorInfo {
	var be *bundleerrors.BundleError
	if errors.As(err, &be) {
		return evidence.ErrorInfo{
			Code:    be.Canonical,
			Message: be.Message,
			Hint:    be.Suggestion,
			Details: be.Details,
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return evidence.ErrorInfo{Code: "timeout", Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return evidence.ErrorInfo{Code: "timeout", Message: "request was canceled"}
	default:
		return evidence.ErrorInfo{Code: "unknown", Message: err.Error()}
	}
}

// failure builds a full envelope failure response for a tool call, stamping
// the envelope's meta.timeMs from start.
func failure[T any](tool, requestID string, start time.Time, err error) evidence.Envelope[T] {
	return evidence.Failure[T](tool, requestID, start, errorInfo(err))
}
