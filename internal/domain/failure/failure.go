// Package failure models the error surface of the consistency core.
package failure

import (
	"errors"
	"strings"
)

// Kind classifies a failure
type Kind string

const (
	// KindValidation is detected locally before any network call
	KindValidation Kind = "validation"
	// KindRejection is a structured refusal by the remote service
	KindRejection Kind = "rejection"
	// KindNetwork is a remote failure without a structured payload
	KindNetwork Kind = "network"
	// KindRead is a failed query fetch
	KindRead Kind = "read"
)

// GenericNetworkMessage is shown for failures without a structured payload
const GenericNetworkMessage = "The server could not be reached or failed unexpectedly. Please try again."

// Failure is the structured error value returned to callers of the core
type Failure struct {
	Kind       Kind
	Fields     *FieldErrors
	Message    string
	StatusCode int
	Cause      error
}

// Error implements error
func (f *Failure) Error() string {
	if f.Message != "" {
		return string(f.Kind) + ": " + f.Message
	}
	if msgs := f.Fields.Messages(); len(msgs) > 0 {
		return string(f.Kind) + ": " + strings.Join(msgs, "; ")
	}
	return string(f.Kind) + " failure"
}

// Unwrap returns the underlying cause
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Messages returns the human readable lines to display
func (f *Failure) Messages() []string {
	if msgs := f.Fields.Messages(); len(msgs) > 0 {
		return msgs
	}
	if f.Message != "" {
		return []string{f.Message}
	}
	return nil
}

// Validation builds a local validation failure
func Validation(fields *FieldErrors) *Failure {
	return &Failure{Kind: KindValidation, Fields: fields}
}

// Rejection builds a remote rejection carrying the field errors verbatim
func Rejection(statusCode int, fields *FieldErrors) *Failure {
	return &Failure{Kind: KindRejection, Fields: fields, StatusCode: statusCode}
}

// Network builds a remote failure with the generic message
func Network(cause error) *Failure {
	return &Failure{Kind: KindNetwork, Message: GenericNetworkMessage, Cause: cause}
}

// Read builds a query fetch failure
func Read(cause error) *Failure {
	msg := "failed to load data"
	if cause != nil {
		msg = cause.Error()
	}
	return &Failure{Kind: KindRead, Message: msg, Cause: cause}
}

// Classify turns any error of a remote call into a Failure. Errors that are
// already failures pass through; everything else is a network failure.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return Network(err)
}

// IsKind reports whether err is a Failure of the given kind
func IsKind(err error, kind Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
