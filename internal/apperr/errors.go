// Package apperr defines the error taxonomy shared by the store, the HTTP
// layer and the client-side cache.
package apperr

import "errors"

var (
	// ErrNotFound marks an absent entity. It is surfaced, never retried.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks a failed write on the remote store. The client rolls
	// back its optimistic change and notifies; it does not retry.
	ErrTransient = errors.New("server error")
	// ErrValidation marks input rejected locally or by the store.
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// Kind returns a short label for err's category, used in logs and notifications.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "internal"
}
