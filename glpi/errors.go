package glpi

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid glpi configuration")
	// ErrCommunication indicates a transport failure (connection, TLS, timeout)
	ErrCommunication = errors.New("communication error")
	// ErrInvalidInput indicates structurally invalid criteria or search text
	ErrInvalidInput = errors.New("invalid input")
	// ErrFieldNotFound indicates a field uid or id unknown for an item type
	ErrFieldNotFound = errors.New("field not found")
	// ErrSessionClosed is returned when the client is used after Close
	ErrSessionClosed = errors.New("session closed")
)

// CommunicationError wraps a transport-level failure.
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("communication error: %s: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// Is reports ErrCommunication as a match so callers can test the category.
func (e *CommunicationError) Is(target error) bool {
	return target == ErrCommunication
}

// APIError is a GLPI error payload, sent as a two element array
// [code, message] alongside a non success status.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("(%s) %s", e.Code, e.Message)
}

// IsNotFound checks if the error indicates a not found response
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsSessionInvalid checks if GLPI rejected the session token
func (e *APIError) IsSessionInvalid() bool {
	return e.Code == "ERROR_SESSION_TOKEN_INVALID" || e.Code == "ERROR_SESSION_TOKEN_MISSING"
}

// UnexpectedResponseError is returned for status codes an operation does not
// handle, or error bodies that are not a [code, message] pair.
type UnexpectedResponseError struct {
	StatusCode int
	Reason     string
	Body       string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unknown error: [%d/%s] %s", e.StatusCode, e.Reason, e.Body)
}

// ValidationError reports caller supplied input with the wrong shape. It is
// raised before any request is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// LookupError reports a field uid or id with no counterpart in the search
// options of an item type.
type LookupError struct {
	ItemType string
	Key      string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("field %q not found for itemtype %s", e.Key, e.ItemType)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// UploadError reports a document the server created but whose file it
// rejected.
type UploadError struct {
	DocumentID int
	FileName   string
	Reason     string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed: %s", e.FileName, e.Reason)
}
