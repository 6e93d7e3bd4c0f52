// Package errors defines the sentinel errors shared across the service
// layer and their mapping to HTTP statuses.
package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrLoginFailed covers both unknown member ids and wrong passwords,
	// deliberately indistinguishable to the caller.
	ErrLoginFailed = errors.New("invalid member id or password")

	// ErrMemberLocked means the account is temporarily locked after
	// repeated failures. Distinct from ErrLoginFailed so clients can
	// tell "wrong credentials" from "come back later".
	ErrMemberLocked = errors.New("account is temporarily locked")

	// ErrTokenForged means a well-signed token had no matching session
	// record: it was revoked, superseded by a newer login, or forged.
	ErrTokenForged = errors.New("token does not match any active session")

	// ErrTokenMisuse means a token was presented from an IP other than
	// the one it was issued to. The session record is destroyed as a
	// side effect before this is returned.
	ErrTokenMisuse = errors.New("token presented from a different ip")

	// ErrTokenInvalid is a decode or signature failure on a presented
	// token where the flow needs a hard error rather than anonymity.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrRetryRequired surfaces an optimistic locking conflict. The
	// request did not apply and can simply be retried.
	ErrRetryRequired = errors.New("conflicting concurrent update, retry the request")

	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrSessionNotFound  = errors.New("session not found")

	ErrInvalidUsageTime = errors.New("usage window must end in the future and after its start")
	ErrUsageConflict    = errors.New("usage window overlaps an existing reservation")
)

// HTTPStatus maps a service error to the response status. Unrecognized
// errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrLoginFailed), errors.Is(err, ErrTokenForged),
		errors.Is(err, ErrTokenMisuse), errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMemberLocked), errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrUsageConflict),
		errors.Is(err, ErrRetryRequired):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidUsageTime):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
