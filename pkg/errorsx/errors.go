// Package errorsx contains domain errors that different layers can use to add
// meaning to an error, plus helpers to attach end-user messages to errors so
// entrypoints can surface something more helpful than an internal error chain.
package errorsx

import (
	"errors"
	"fmt"
)

// The following errors serve as domain errors that the different layers can
// wrap and inspect.
var (
	// ErrInvalidArgument is used when the provided argument is incorrect.
	ErrInvalidArgument = fmt.Errorf("invalid")
	// ErrNotFound is used when a resource doesn't exist.
	ErrNotFound = fmt.Errorf("not found")
	// ErrAlreadyExists is used when a resource can't be created because it
	// already exists.
	ErrAlreadyExists = fmt.Errorf("already exists")
)

// messageErr wraps an error with an end-user message. The message is carried
// out of band: Error() still returns the internal chain.
type messageErr struct {
	err     error
	message string
}

func (e *messageErr) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.message
}

func (e *messageErr) Unwrap() error { return e.err }

// AddMessage attaches an end-user message to an error. If the error already
// carries a message, the new one is prepended.
func AddMessage(err error, msg string) error {
	if existing := Message(err); existing != "" {
		msg = msg + " " + existing
	}
	return &messageErr{err: err, message: msg}
}

// Message extracts the first end-user message in the error chain, or "" if
// none is present.
func Message(err error) string {
	for err != nil {
		if me, ok := err.(*messageErr); ok {
			return me.message
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// MessageOrErr returns the end-user message in the chain, falling back to the
// error string.
func MessageOrErr(err error) string {
	if msg := Message(err); msg != "" {
		return msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
