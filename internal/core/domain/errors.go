package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the operator lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrSyncInProgress indicates a sync is already running
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRemoteUnavailable indicates the remote store could not be reached
	// (network failure, timeout, connection refused).
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrForeignKeyViolation indicates a write referenced a parent row that
	// does not exist in the target store.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrConstraintViolation indicates any other integrity constraint failure
	// (unique, not null, check).
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrIDConflict indicates an insert whose id already belongs to a
	// different row in the target store.
	ErrIDConflict = errors.New("id taken by another row")

	// ErrEmptyPayload indicates nothing was left to write after adaptation
	ErrEmptyPayload = errors.New("payload has no writable columns")

	// ErrInvalidPayload indicates a queued payload could not be decoded
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrLocalStore indicates the local embedded store failed
	ErrLocalStore = errors.New("local store failure")
)

// ForeignKeyError describes a foreign-key rejection from a store.
// It matches ErrForeignKeyViolation with errors.Is.
type ForeignKeyError struct {
	Table      string
	Constraint string
	Detail     string
}

func (e *ForeignKeyError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("foreign key violation on %s (%s): %s", e.Table, e.Constraint, e.Detail)
	}
	return fmt.Sprintf("foreign key violation on %s (%s)", e.Table, e.Constraint)
}

// Is reports whether target is ErrForeignKeyViolation.
func (e *ForeignKeyError) Is(target error) bool {
	return target == ErrForeignKeyViolation
}

// IDConflictError reports an insert whose id is held by a different row.
// It matches ErrIDConflict and ErrConstraintViolation with errors.Is.
type IDConflictError struct {
	Table string
	ID    Value
}

func (e *IDConflictError) Error() string {
	return fmt.Sprintf("id %s of %s is taken by another row", e.ID.Key(), e.Table)
}

func (e *IDConflictError) Is(target error) bool {
	return target == ErrIDConflict || target == ErrConstraintViolation
}

// IsConnectivity reports whether err means the remote store is unreachable.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
