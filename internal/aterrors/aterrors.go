package aterrors

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrRecordIsNil      = errors.New("change record is nil")
	ErrRecordNotFound   = errors.New("change record not found")
	ErrNoActor          = errors.New("no actor resolved for mutation")
	ErrSnapshotMiss     = errors.New("no pre-image snapshot captured for mutation")
	ErrUntrackedEntity  = errors.New("entity type is not configured for tracking")
	ErrEntityIDMissing  = errors.New("entity has no identifier")
	ErrDuplicateRecord  = errors.New("a change record with this id already exists")
	ErrCacheStopped     = errors.New("snapshot cache has been stopped")
	ErrInvalidOperation = errors.New("unknown change operation")
)

// Severity tags an AuditError with its effect on the surrounding unit of work.
type Severity int

const (
	// SeverityRecoverable errors are contained: logged and swallowed, the
	// business mutation proceeds.
	SeverityRecoverable Severity = iota
	// SeverityFatal errors must abort the enclosing transaction.
	SeverityFatal
)

func (s Severity) String() string {
	if s == SeverityFatal {
		return "fatal"
	}
	return "recoverable"
}

// AuditError wraps an audit-subsystem failure with an explicit severity tag,
// so that the transaction wrapper can decide between abort and log-and-continue
// without inspecting where the error was raised.
type AuditError struct {
	Severity Severity
	Err      error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("audit (%s): %v", e.Severity, e.Err)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}

func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &AuditError{Severity: SeverityFatal, Err: err}
}

func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &AuditError{Severity: SeverityRecoverable, Err: err}
}

// IsFatal reports whether err carries a fatal audit severity. Errors that are
// not AuditErrors are considered fatal: an untagged error escaping the audit
// pipeline means someone forgot to classify it, and aborting is the safe side.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return true
}

func ErrorFromGormError(err error) error {
	switch err {
	case nil:
		return nil
	case gorm.ErrRecordNotFound:
		return ErrRecordNotFound
	case gorm.ErrDuplicatedKey:
		return ErrDuplicateRecord
	default:
		return err
	}
}
