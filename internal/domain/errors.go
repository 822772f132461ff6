package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the HTTP layer can map it to a status code
// without inspecting collaborator-specific error shapes.
type Kind string

const (
	// KindDocument: the uploaded PDF was unreadable or produced no text.
	KindDocument Kind = "document"
	// KindNotFound: unknown, ended, or expired session id.
	KindNotFound Kind = "not_found"
	// KindValidation: malformed input (bad session id, empty question).
	KindValidation Kind = "validation"
	// KindGateway: the LLM backend failed after retries.
	KindGateway Kind = "gateway"
	// KindExhausted: the store cannot allocate another session.
	KindExhausted Kind = "exhausted"
)

// Error is the service-wide failure shape. Message is safe to show to
// callers; Err carries the wrapped cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two domain errors by kind, so errors.Is(err, domain.ErrSessionNotFound)
// style checks work regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrSessionNotFound = &Error{Kind: KindNotFound, Message: "session not found"}
	ErrDocument        = &Error{Kind: KindDocument, Message: "document processing failed"}
	ErrValidation      = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrGateway         = &Error{Kind: KindGateway, Message: "llm gateway failed"}
	ErrExhausted       = &Error{Kind: KindExhausted, Message: "session store exhausted"}
)

// NewNotFound builds a not-found error for the given session id.
func NewNotFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: "session not found or expired: " + id}
}

// NewDocument builds a document processing error.
func NewDocument(msg string, err error) *Error {
	return &Error{Kind: KindDocument, Message: msg, Err: err}
}

// NewValidation builds a validation error.
func NewValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewGateway builds a gateway error wrapping the provider failure.
func NewGateway(err error) *Error {
	return &Error{Kind: KindGateway, Message: "language model request failed", Err: err}
}

// NewExhausted builds a resource exhaustion error.
func NewExhausted(msg string) *Error {
	return &Error{Kind: KindExhausted, Message: msg}
}

// KindOf returns the kind of err if it is a domain error, or KindGateway
// as the conservative default for unclassified internal failures.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindGateway
}
