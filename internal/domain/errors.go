package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
)

type Code string

const (
	CodeValidation Code = "VALIDATION_ERROR"
	CodeNotFound   Code = "NOT_FOUND"
	CodeConflict   Code = "CONFLICT"
	CodeDependency Code = "DEPENDENCY_ERROR"
	CodeTimeout    Code = "TIMEOUT"
	CodeInternal   Code = "INTERNAL_ERROR"
)

// Metadata describes how a code surfaces to API callers.
type Metadata struct {
	HTTPStatus int
	Retryable  bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {HTTPStatus: http.StatusBadRequest},
	CodeNotFound:   {HTTPStatus: http.StatusNotFound},
	CodeConflict:   {HTTPStatus: http.StatusConflict},
	CodeDependency: {HTTPStatus: http.StatusBadGateway, Retryable: true},
	CodeTimeout:    {HTTPStatus: http.StatusGatewayTimeout, Retryable: true},
	CodeInternal:   {HTTPStatus: http.StatusInternalServerError},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error whose message is safe to show to the shopper.
type Error struct {
	code    Code
	message string
	cause   error
}

func NewError(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func WrapError(code Code, err error, message string) *Error {
	if err == nil {
		return NewError(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// AsError extracts a coded error from the chain, or nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	typed := AsError(err)
	return typed != nil && typed.code == code
}
