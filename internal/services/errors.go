package services

import (
	"errors"
)

// Kind is the closed set of failure categories surfaced to API clients.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindProcessingFailed   Kind = "processing_failed"
	KindNoPriorReport      Kind = "no_prior_report"
	KindNotFound           Kind = "not_found"
	KindAlreadyConfirmed   Kind = "already_confirmed"
	KindUnauthenticated    Kind = "unauthenticated"
	KindVerificationFailed Kind = "verification_failed"
	KindInternal           Kind = "internal"
)

// Error is a classified service failure. Message is safe to show to users;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the client may resubmit the same request.
func (k Kind) Retryable() bool {
	return k == KindVerificationFailed || k == KindInternal
}
