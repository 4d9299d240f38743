package attendance

import (
	"errors"
	"fmt"

	"qr-attendance-backend/internal/model"
)

// ErrInvalidRequest marks a request whose period or action is not recognised.
var ErrInvalidRequest = errors.New("invalid attendance request")

// UnknownStudentError means a scanned code matched no student, neither in the
// session roster nor in the store.
type UnknownStudentError struct {
	Code string
}

func (e *UnknownStudentError) Error() string {
	return fmt.Sprintf("no student is registered for code %q", e.Code)
}

// NoOpenSessionError means a time-out found nothing to close.
type NoOpenSessionError struct {
	StudentID int64
	EventID   int64
	Period    model.Period
}

func (e *NoOpenSessionError) Error() string {
	return fmt.Sprintf("student %d has no open %s session for event %d; time in for %s first",
		e.StudentID, e.Period.Label(), e.EventID, e.Period.Label())
}

// SessionAlreadyOpenError is returned for a second time-in while a session is
// still open, when the resolver is configured to reject that.
type SessionAlreadyOpenError struct {
	RecordID int64
	Period   model.Period
}

func (e *SessionAlreadyOpenError) Error() string {
	return fmt.Sprintf("the %s session is already open (record %d); time out first", e.Period.Label(), e.RecordID)
}

// MissingEventSelectionError means an action arrived with no event selected.
type MissingEventSelectionError struct{}

func (e *MissingEventSelectionError) Error() string {
	return "no event is selected"
}

// StorageError wraps any failure of the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsUnknownStudent reports whether err is, or wraps, an UnknownStudentError.
func IsUnknownStudent(err error) bool {
	var target *UnknownStudentError
	return errors.As(err, &target)
}

// IsNoOpenSession reports whether err is, or wraps, a NoOpenSessionError.
func IsNoOpenSession(err error) bool {
	var target *NoOpenSessionError
	return errors.As(err, &target)
}

// IsStorage reports whether err is, or wraps, a StorageError.
func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
