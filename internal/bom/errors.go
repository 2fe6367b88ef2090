package bom

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures by how they propagate.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindInput covers unreadable or missing documents and templates.
	ErrorKindInput
	// ErrorKindRecognition covers rasterization, preprocessing and OCR failures.
	ErrorKindRecognition
	// ErrorKindReviewGate is returned when generation is attempted with pending items.
	ErrorKindReviewGate
	// ErrorKindRendering covers overlay and compositing failures.
	ErrorKindRendering
)

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInput:
		return "INPUT"
	case ErrorKindRecognition:
		return "RECOGNITION"
	case ErrorKindReviewGate:
		return "REVIEW_GATE"
	case ErrorKindRendering:
		return "RENDERING"
	default:
		return "UNKNOWN"
	}
}

// Surfaced reports whether errors of this kind must reach the caller. The
// others degrade locally (empty item list, blank template).
func (k ErrorKind) Surfaced() bool {
	switch k {
	case ErrorKindInput, ErrorKindReviewGate:
		return true
	default:
		return false
	}
}

// Error is a categorized pipeline error.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"operation"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewInputError reports a problem with a caller-supplied document or parameter.
func NewInputError(op, message string, cause error) *Error {
	return &Error{Kind: ErrorKindInput, Op: op, Message: message, Cause: cause}
}

// NewRecognitionError wraps a rasterization or OCR failure.
func NewRecognitionError(op, message string, cause error) *Error {
	return &Error{Kind: ErrorKindRecognition, Op: op, Message: message, Cause: cause}
}

// NewRenderingError wraps a compositing failure.
func NewRenderingError(op, message string, cause error) *Error {
	return &Error{Kind: ErrorKindRendering, Op: op, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from err, or ErrorKindUnknown.
func KindOf(err error) ErrorKind {
	var gate *GateError
	if errors.As(err, &gate) {
		return ErrorKindReviewGate
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindUnknown
}

// GateError is returned when form generation is attempted while items are
// still pending review.
type GateError struct {
	Pending int
	Total   int
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%d items still need review. Please verify all items before generating DD1750.", e.Pending)
}

// RequireVerified enforces the review gate: every item must have been
// verified before a form may be generated.
func RequireVerified(items Items) error {
	if pending := items.PendingCount(); pending > 0 {
		return &GateError{Pending: pending, Total: len(items)}
	}
	return nil
}
