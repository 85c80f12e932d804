package ingest

import "fmt"

// ValidationError reports a manuscript field the caller must fix. Retrying
// the same input will not help.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RenderError wraps a markdown renderer failure. Malformed input is the
// usual cause, so callers treat it like a validation failure.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render markdown: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
