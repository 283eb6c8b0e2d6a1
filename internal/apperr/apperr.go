// Package apperr defines the error taxonomy shared by the report lifecycle core.
// Every error that crosses a package boundary is either an *Error or wraps one,
// so the HTTP layer can map it to a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for propagation and presentation.
type Kind string

const (
	// KindValidation marks missing or malformed caller input.
	KindValidation Kind = "VALIDATION_ERROR"
	// KindNotFound marks a reference to an entity that does not exist.
	KindNotFound Kind = "NOT_FOUND"
	// KindUpstream marks a failed call to an external collaborator
	// (object storage, messaging provider).
	KindUpstream Kind = "UPSTREAM_FAILURE"
	// KindInternal marks anything else, usually persistence failures.
	KindInternal Kind = "INTERNAL_ERROR"
)

// Error is a classified error with optional field-level detail.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation returns a KindValidation error naming the offending fields.
func Validation(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NotFound returns a KindNotFound error for the given resource and id.
func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// Upstream wraps a failure of an external collaborator.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Cause: cause}
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to the status code the API layer should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON renders err as a response body. Internal causes are not exposed.
func ToJSON(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return map[string]interface{}{
			"code":    string(KindInternal),
			"message": "internal server error",
		}
	}
	body := map[string]interface{}{
		"code":    string(appErr.Kind),
		"message": appErr.Message,
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	return body
}
