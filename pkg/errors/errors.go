// Package errors defines the error taxonomy shared by the engine, its
// persistence collaborators and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotInitialized is returned by queries issued before any index
	// has been built or loaded. It is distinct from "no matches".
	ErrNotInitialized = errors.New("retriever not initialized")
	// ErrNotFound covers unknown document ids and missing persisted
	// resources.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCorpus is returned when saving or building from zero
	// documents.
	ErrEmptyCorpus = errors.New("no documents to save")
	// ErrBusy is returned when a concurrent mutation is rejected.
	ErrBusy = errors.New("index rebuild in progress")

	ErrInvalidInput     = errors.New("invalid input")
	ErrSnapshotMismatch = errors.New("snapshot does not match corpus")
	ErrCorruptSnapshot  = errors.New("corrupt index snapshot")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is reports whether any error in err's chain matches target. It saves
// callers importing both this package and the standard errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// HTTPStatusCode maps an error to the status code the API should answer
// with.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrEmptyCorpus):
		return http.StatusBadRequest
	case errors.Is(err, ErrBusy), errors.Is(err, ErrSnapshotMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrNotInitialized), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
