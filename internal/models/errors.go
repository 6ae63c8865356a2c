package models

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrForbidden indicates the record exists but the credential or token is wrong.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest indicates malformed or incomplete input.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInternal indicates a backend or transport failure.
	ErrInternal = errors.New("internal error")
)

// IsKnown reports whether err belongs to the closed set of error kinds.
func IsKnown(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrForbidden, ErrBadRequest, ErrUnauthorized, ErrInternal} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
