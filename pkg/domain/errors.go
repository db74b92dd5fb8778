package domain

import (
	"errors"
	"fmt"
)

// NotFoundError reports an absent graph entity or spatial record.
type NotFoundError struct {
	Collection Collection
	ID         int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Collection, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// ValidationError reports malformed or referentially invalid input. It is
// raised before any store is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports that a graph transaction commit observed a
// concurrent modification of an overlapping key or collection. The whole
// coordinator operation may be retried from scratch, id allocation included.
type ConflictError struct {
	Collection Collection
	Reason     string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("commit conflict on %s: %s", e.Collection, e.Reason)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}

// StorageUnavailableError reports an unreachable underlying repository.
// It is fatal to the current request; the store performs no retries.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e StorageUnavailableError) Unwrap() error { return e.Err }

// CompensationError annotates a failed multi-step mutation with the outcome
// of its compensating cleanup, so callers can tell whether manual cleanup is
// needed. Unwrap yields the original failure, keeping errors.Is/As matching
// intact.
type CompensationError struct {
	// Err is the original failure that triggered compensation.
	Err error
	// CleanupErr is non-nil when the compensating action itself failed and
	// an orphan was leaked.
	CleanupErr error
	Collection Collection
	SpatialID  int64
}

func (e CompensationError) Error() string {
	if e.CleanupErr != nil {
		return fmt.Sprintf("%v (orphan leaked: compensating delete of %s spatial record %d failed: %v)",
			e.Err, e.Collection, e.SpatialID, e.CleanupErr)
	}
	return fmt.Sprintf("%v (compensating delete of %s spatial record %d succeeded)",
		e.Err, e.Collection, e.SpatialID)
}

func (e CompensationError) Unwrap() error { return e.Err }
