package export

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an export failure for reporting and exit handling.
type ErrorClass string

const (
	// ErrorClassConfig indicates missing or invalid configuration.
	// Detected before any network call is made.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassAuth indicates the controller rejected the credential
	// exchange or returned no usable credential.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassTransport indicates an HTTP call failed or returned a body
	// that could not be decoded. Fatal for the run; flushed rows are kept.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassParse indicates a backend name that does not match the
	// expected grammar. Non-fatal; the raw name is carried through.
	ErrorClassParse ErrorClass = "parse"
)

// ExportError is a classified error with controller context.
type ExportError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Application is the application being processed, if applicable.
	Application string `json:"application,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	if e.Application != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (application=%s, operation=%s): %s",
			e.Class, e.Message, e.Application, e.Operation, e.unwrapMessage())
	}
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation=%s): %s",
			e.Class, e.Message, e.Operation, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ExportError) Unwrap() error {
	return e.Err
}

func (e *ExportError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *ExportError) Is(target error) bool {
	t, ok := target.(*ExportError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, err error) *ExportError {
	return &ExportError{Class: ErrorClassConfig, Message: message, Err: err}
}

// NewAuthError creates a new authentication error.
func NewAuthError(message string, err error) *ExportError {
	return &ExportError{Class: ErrorClassAuth, Message: message, Err: err}
}

// NewTransportError creates a new transport error.
func NewTransportError(message string, err error) *ExportError {
	return &ExportError{Class: ErrorClassTransport, Message: message, Err: err}
}

// NewParseError creates a new parse anomaly error.
func NewParseError(message string, err error) *ExportError {
	return &ExportError{Class: ErrorClassParse, Message: message, Err: err}
}

// WithApplication adds application context to an error.
func (e *ExportError) WithApplication(name string) *ExportError {
	e.Application = name
	return e
}

// WithOperation adds operation context to an error.
func (e *ExportError) WithOperation(operation string) *ExportError {
	e.Operation = operation
	return e
}

// IsConfig returns true if the error is classified as a configuration error.
func IsConfig(err error) bool {
	return hasClass(err, ErrorClassConfig)
}

// IsAuth returns true if the error is classified as an authentication error.
func IsAuth(err error) bool {
	return hasClass(err, ErrorClassAuth)
}

// IsTransport returns true if the error is classified as a transport error.
func IsTransport(err error) bool {
	return hasClass(err, ErrorClassTransport)
}

func hasClass(err error, class ErrorClass) bool {
	var e *ExportError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
