// Package errors defines common error types used throughout the Cupid API wrapper.
package errors

import (
	"fmt"
	"strings"
)

// APIError holds the error body returned by the Cupid API. It is embedded in
// the status-specific error types below; check for those with errors.As rather
// than matching on APIError directly.
type APIError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// Description is the machine-readable description of the error class.
	Description string
	// Message is the human-readable message for this specific failure.
	Message string
}

func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cupid API error (status %d)", e.StatusCode)
	if e.Description != "" {
		fmt.Fprintf(&sb, ": %s", e.Description)
	}
	if e.Message != "" {
		fmt.Fprintf(&sb, " (%s)", e.Message)
	}
	return sb.String()
}

// AuthenticationError indicates missing, invalid or unrefreshable credentials.
// Once a credential fails to refresh, every subsequent operation on it returns
// this error without further network calls.
type AuthenticationError struct {
	APIError
	// Err contains the underlying error if available.
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return fmt.Sprintf("authentication error: %v", e.Err)
	}
	return "authentication error: " + e.APIError.Error()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ForbiddenError indicates the credential is valid but not permitted to
// perform the operation.
type ForbiddenError struct {
	APIError
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.APIError.Error()
}

// NotFoundError indicates the requested resource does not exist or was
// already deleted.
type NotFoundError struct {
	APIError
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.APIError.Error()
}

// ConflictError indicates the operation conflicts with current server state,
// e.g. proposing a relationship that already exists.
type ConflictError struct {
	APIError
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.APIError.Error()
}

// ValidationProblem describes a single invalid field within a request body.
type ValidationProblem struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// ValidationError indicates the request body or parameters were rejected by
// the server. Non-retryable.
type ValidationError struct {
	APIError
	// Problems lists the individual field errors, when the server provides them.
	Problems []ValidationProblem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) > 0 {
		return fmt.Sprintf("validation error: %s (%d problems)", e.APIError.Error(), len(e.Problems))
	}
	return "validation error: " + e.APIError.Error()
}

// ClientError indicates a 4xx response that does not map to a more specific
// error type.
type ClientError struct {
	APIError
}

func (e *ClientError) Error() string {
	return "client error: " + e.APIError.Error()
}

// ServerError indicates a 5xx response. Potentially transient, but the client
// never retries it automatically.
type ServerError struct {
	APIError
}

func (e *ServerError) Error() string {
	return "server error: " + e.APIError.Error()
}

// NetworkError indicates a transport-level failure before any response was
// received.
type NetworkError struct {
	// Operation is the name of the API operation that failed.
	Operation string
	// Err contains the underlying error.
	Err error
}

func (e *NetworkError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DataIntegrityError indicates a response violated an invariant the client
// relies on, such as a relationship referencing an unknown user or a page
// shorter than its declared size.
type DataIntegrityError struct {
	// Message contains the detailed error message.
	Message string
}

func (e *DataIntegrityError) Error() string {
	return "data integrity error: " + e.Message
}

// StateError indicates an operation was attempted on an object that is no
// longer usable, e.g. a deleted resource view or a closed session.
type StateError struct {
	// Operation is the name of the operation that was attempted.
	Operation string
	// Message contains the detailed error message.
	Message string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// PageOutOfRangeError indicates a page index outside the known bounds of a
// paginated list. It is raised before any network call is made.
type PageOutOfRangeError struct {
	// Page is the requested page index.
	Page int
	// TotalPages is the known number of pages.
	TotalPages int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("page %d out of range: list has %d pages", e.Page, e.TotalPages)
}
