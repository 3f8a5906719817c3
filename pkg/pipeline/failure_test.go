package pipeline

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCategorize_StageErrorWins(t *testing.T) {
	c := qt.New(t)

	err := NewStageError(StageGeneratePreviews, FailureDecode, errors.New("bad header"))
	wrapped := fmt.Errorf("preview: %w", err)

	c.Check(Categorize(wrapped), qt.Equals, FailureDecode)
}

func TestCategorize_Transient(t *testing.T) {
	c := qt.New(t)

	c.Check(Categorize(io.ErrUnexpectedEOF), qt.Equals, FailureTransientIO)
	c.Check(Categorize(fmt.Errorf("read: %w", syscall.ECONNRESET)), qt.Equals, FailureTransientIO)
}

func TestCategorize_Fallback(t *testing.T) {
	c := qt.New(t)

	c.Check(Categorize(errors.New("something odd")), qt.Equals, FailureInternal)
}

func TestFailureCategory_Retryable(t *testing.T) {
	c := qt.New(t)

	c.Check(FailureTransientIO.Retryable(), qt.IsTrue)
	c.Check(FailureDecode.Retryable(), qt.IsFalse)
	c.Check(FailureTimeout.Retryable(), qt.IsFalse)
	c.Check(FailureMissingCapability.Retryable(), qt.IsFalse)
}

func TestStageError_Unwrap(t *testing.T) {
	c := qt.New(t)

	cause := errors.New("cause")
	err := NewStageError(StageAITag, FailureTransientIO, cause)

	c.Check(errors.Is(err, cause), qt.IsTrue)
	c.Check(err.Error(), qt.Contains, "ai-tag")
	c.Check(err.Error(), qt.Contains, "transient-io")
}
