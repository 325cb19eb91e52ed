// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrStateViolation    = errors.New("StateViolation")
	ErrInvalidQuery      = errors.New("InvalidQuery")
	ErrInvalidSelection  = errors.New("InvalidSelection")
	ErrInvalidParameters = errors.New("InvalidParameters")
	ErrSearchFailed      = errors.New("SearchFailed")
	ErrExtractionFailed  = errors.New("ExtractionFailed")
	ErrGenerationFailed  = errors.New("GenerationFailed")
	ErrSynthesisFailed   = errors.New("SynthesisFailed")
)

var kinds = []error{
	ErrStateViolation, ErrInvalidQuery, ErrInvalidSelection, ErrInvalidParameters,
	ErrSearchFailed, ErrExtractionFailed, ErrGenerationFailed, ErrSynthesisFailed, ErrCancelled,
}

// Error is a typed pipeline failure.
type Error struct {
	// Kind is one of the Err* sentinels.
	Kind error

	// Stage is the stage in which the failure happened.
	Stage Stage

	// Field names the offending input for validation kinds.
	Field string

	// Retried is set when the automatic retry was spent.
	Retried bool

	// Err is the first cause; RetryErr the cause of the retry, if any.
	Err      error
	RetryErr error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	if e.Stage != "" {
		fmt.Fprintf(&b, " in %s", e.Stage)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.RetryErr != nil {
		fmt.Fprintf(&b, "; retry: %v", e.RetryErr)
	}
	return b.String()
}

// Is matches the error kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Unwrap exposes the causes.
func (e *Error) Unwrap() []error {
	var out []error
	for _, err := range []error{e.Err, e.RetryErr} {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Validation reports whether the error is a user-input problem that leaves
// the pipeline where it was.
func (e *Error) Validation() bool {
	switch e.Kind {
	case ErrInvalidQuery, ErrInvalidSelection, ErrInvalidParameters:
		return true
	}
	return false
}

// Record converts the error into its persisted form.
func (e *Error) Record() *ErrorRecord {
	r := &ErrorRecord{
		Kind:    e.Kind.Error(),
		Stage:   e.Stage,
		Field:   e.Field,
		Retried: e.Retried,
		Message: e.Error(),
	}
	if e.Err != nil {
		r.Cause = e.Err.Error()
	}
	if e.RetryErr != nil {
		r.RetryCause = e.RetryErr.Error()
	}
	return r
}

// ErrorRecord is the serializable form of an Error kept in PipelineState.
type ErrorRecord struct {
	Kind       string `json:"kind"`
	Stage      Stage  `json:"stage"`
	Field      string `json:"field,omitempty"`
	Retried    bool   `json:"retried"`
	Message    string `json:"message"`
	Cause      string `json:"cause,omitempty"`
	RetryCause string `json:"retry_cause,omitempty"`
}

// AsError rebuilds the typed error. Causes come back as plain messages.
func (r *ErrorRecord) AsError() error {
	pe := &Error{Kind: errors.New(r.Kind), Stage: r.Stage, Field: r.Field, Retried: r.Retried}
	for _, k := range kinds {
		if k.Error() == r.Kind {
			pe.Kind = k
		}
	}
	if r.Cause != "" {
		pe.Err = errors.New(r.Cause)
	}
	if r.RetryCause != "" {
		pe.RetryErr = errors.New(r.RetryCause)
	}
	return pe
}

func violation(stage Stage, format string, args ...any) *Error {
	return &Error{Kind: ErrStateViolation, Stage: stage, Err: fmt.Errorf(format, args...)}
}

func invalid(kind error, stage Stage, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Field: field, Err: fmt.Errorf(format, args...)}
}

// userMessage is the human-readable text shown for a failure.
func userMessage(e *Error) string {
	var b strings.Builder
	switch {
	case errors.Is(e, ErrInvalidQuery):
		b.WriteString("Please enter a search query or an arXiv identifier.")
	case errors.Is(e, ErrInvalidSelection):
		fmt.Fprintf(&b, "That selection does not match a candidate: %v.", e.Err)
	case errors.Is(e, ErrInvalidParameters):
		fmt.Fprintf(&b, "Invalid podcast parameter %s: %v.", e.Field, e.Err)
	case errors.Is(e, ErrSearchFailed):
		fmt.Fprintf(&b, "Search failed: %v.", e.Err)
	case errors.Is(e, ErrExtractionFailed):
		fmt.Fprintf(&b, "Could not extract text from the paper: %v. Restart and pick another paper.", e.Err)
	case errors.Is(e, ErrGenerationFailed):
		fmt.Fprintf(&b, "Script generation failed: %v.", e.Err)
	case errors.Is(e, ErrSynthesisFailed):
		fmt.Fprintf(&b, "Audio synthesis failed: %v.", e.Err)
	default:
		b.WriteString(e.Error())
	}
	if e.RetryErr != nil {
		fmt.Fprintf(&b, " Retry also failed: %v.", e.RetryErr)
	}
	if !e.Validation() && e.Stage != "" {
		fmt.Fprintf(&b, " (stage: %s, retried: %t)", e.Stage, e.Retried)
	}
	return b.String()
}

// ErrCancelled is returned to the caller whose Advance was interrupted by a
// cancel event.
var ErrCancelled = errors.New("Cancelled")
