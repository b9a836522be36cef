package form

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures of the form pipeline
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeParse
	ErrorTypeEmptyForm
	ErrorTypeWrite
)

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeParse:
		return "PARSE"
	case ErrorTypeEmptyForm:
		return "EMPTY_FORM"
	case ErrorTypeWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// IsFatal reports whether a session can continue after an error of this type.
// An empty form degrades to an already completed session.
func (et ErrorType) IsFatal() bool {
	return et != ErrorTypeEmptyForm
}

// Error is returned by the extractor and the writer
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// WithPath records the document path on the error
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func newError(errorType ErrorType, message string, err error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// ErrorTypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func ErrorTypeOf(err error) ErrorType {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}

// IsParseError reports whether err means the source is not a readable PDF
func IsParseError(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeParse
}

// IsEmptyFormError reports whether err means the document has no text fields
func IsEmptyFormError(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeEmptyForm
}

// IsWriteError reports whether err means the filled document could not be produced
func IsWriteError(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeWrite
}
