// Package pipeline defines the shared vocabulary of the asset processing
// chain: stage names, failure categories, and the typed error that stages use
// to report categorized failures.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Stage identifies one unit of work in the processing chain.
type Stage string

// Processing stages, in chain order.
const (
	StageClassify         Stage = "classify"
	StageExtractMetadata  Stage = "extract-metadata"
	StageGeneratePreviews Stage = "generate-previews"
	StageComputedMetadata Stage = "populate-computed-metadata"
	StageAITag            Stage = "ai-tag"
	StageAIMetadata       Stage = "ai-generate-metadata"
	StageAIAutoApply      Stage = "ai-auto-apply-tags"
	StageAISuggest        Stage = "ai-suggest-metadata"
	StageFinalize         Stage = "finalize"
	StagePromote          Stage = "promote"
)

// FailureCategory classifies a stage failure for retry policy selection and
// for bulk recovery tooling. It never affects asset visibility.
type FailureCategory string

const (
	// FailureTransientIO covers network/storage blips worth retrying.
	FailureTransientIO FailureCategory = "transient-io"
	// FailureDecode covers corrupt or unrecognized payloads.
	FailureDecode FailureCategory = "decode"
	// FailureUnsupportedFormat marks inputs that can never be processed.
	FailureUnsupportedFormat FailureCategory = "unsupported-format"
	// FailureOversized marks inputs too large even for degraded mode.
	FailureOversized FailureCategory = "oversized"
	// FailureTimeout is assigned by the watchdog to abandoned work.
	FailureTimeout FailureCategory = "timeout"
	// FailureMissingCapability marks a required decoder/tool being
	// unavailable; kept distinct so these can be bulk-retried once the
	// capability is restored.
	FailureMissingCapability FailureCategory = "missing-capability"
	// FailureInternal is the fallback for uncategorized errors.
	FailureInternal FailureCategory = "internal"
)

// Retryable reports whether failures of this category are worth retrying
// automatically.
func (c FailureCategory) Retryable() bool {
	return c == FailureTransientIO
}

// StageError is a categorized stage failure. It wraps the cause so callers
// can still inspect the chain with errors.Is/As.
type StageError struct {
	Stage    Stage
	Category FailureCategory
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Category, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError builds a categorized stage failure.
func NewStageError(stage Stage, category FailureCategory, err error) *StageError {
	return &StageError{Stage: stage, Category: category, Err: err}
}

// Categorize maps an arbitrary error to a failure category. A *StageError in
// the chain wins; otherwise well-known I/O errors map to transient-io and
// everything else falls back to internal.
func Categorize(err error) FailureCategory {
	var se *StageError
	if errors.As(err, &se) {
		return se.Category
	}
	if isTransient(err) {
		return FailureTransientIO
	}
	return FailureInternal
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
