package utils

import (
	"errors"
	"net/http"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindValidation
	KindNotFound
	KindConflict
	KindConfiguration
	KindCredential
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindConfiguration:
		return "ConfigurationError"
	case KindCredential:
		return "CredentialError"
	case KindPersistence:
		return "PersistenceError"
	default:
		return "InternalError"
	}
}

// HTTPStatus maps an error kind to its response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// AppError carries a taxonomy kind, a client-safe message and the cause.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Message
	}
	return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewUnauthenticatedError(message string, err error) *AppError {
	return &AppError{Kind: KindUnauthenticated, Message: message, Err: err}
}

func NewValidationError(message string, err error) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Err: err}
}

func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Kind: KindNotFound, Message: message, Err: err}
}

func NewConflictError(message string, err error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: err}
}

func NewConfigurationError(message string, err error) *AppError {
	return &AppError{Kind: KindConfiguration, Message: message, Err: err}
}

func NewCredentialError(message string, err error) *AppError {
	return &AppError{Kind: KindCredential, Message: message, Err: err}
}

func NewPersistenceError(message string, err error) *AppError {
	return &AppError{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage is what may be shown to the caller. Server-side kinds
// never leak their details.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind.HTTPStatus() < http.StatusInternalServerError {
		return appErr.Message
	}
	return "internal server error"
}
