// Package storeerr defines the stable error taxonomy shared by every
// component of the storage-engine core.
package storeerr

import "fmt"

// Code is a stable integer error code, propagated unchanged from the
// component that detected the condition up through the transaction layer
// to the caller.
type Code int

const (
	OK Code = 0

	// Malformed input. Never retried by the component that returns it.
	BadParameter  Code = 1000
	CorruptedJson Code = 1001

	// Entity missing.
	NotFound       Code = 1100
	CursorNotFound Code = 1101

	// Concurrent use of a replication context. Caller may retry after TTL.
	CursorBusy Code = 1102

	// Index/name collisions.
	DuplicateName            Code = 1200
	UniqueConstraintViolated Code = 1201

	// Revision mismatch, propagated unchanged to the caller.
	Conflict Code = 1300

	// System collections refuse drop; sharding strict-mode refusals.
	Forbidden                 Code = 1400
	ShardingAttributesMissing Code = 1401

	// Forwarded from the cluster trampoline.
	ClusterTimeout Code = 1500
	ConnectionLost Code = 1501

	// Fatal for the operation, not the process.
	Internal        Code = 1600
	NotYetImplemented Code = 1601
)

// String returns a short machine-stable name for the code, used in logs.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case BadParameter:
		return "BadParameter"
	case CorruptedJson:
		return "CorruptedJson"
	case NotFound:
		return "NotFound"
	case CursorNotFound:
		return "CursorNotFound"
	case CursorBusy:
		return "CursorBusy"
	case DuplicateName:
		return "DuplicateName"
	case UniqueConstraintViolated:
		return "UniqueConstraintViolated"
	case Conflict:
		return "Conflict"
	case Forbidden:
		return "Forbidden"
	case ShardingAttributesMissing:
		return "ShardingAttributesMissing"
	case ClusterTimeout:
		return "ClusterTimeout"
	case ConnectionLost:
		return "ConnectionLost"
	case Internal:
		return "Internal"
	case NotYetImplemented:
		return "NotYetImplemented"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// StorageError is the structured error type every component returns. It
// carries a stable Code, a free-text Message, optional structured Details
// and an optional wrapped Cause.
type StorageError struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// WithDetail attaches a key/value pair of diagnostic context and returns
// the same error for chaining.
func (e *StorageError) WithDetail(key string, value interface{}) *StorageError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New constructs a StorageError with the given code, message and cause.
func New(code Code, message string, cause error) *StorageError {
	return &StorageError{Code: code, Message: message, Cause: cause}
}

// Convenience constructors, one per taxonomy entry.

func NewBadParameter(message string) *StorageError {
	return New(BadParameter, message, nil)
}

func NewCorruptedJson(message string, cause error) *StorageError {
	return New(CorruptedJson, message, cause)
}

func NewNotFound(message string) *StorageError {
	return New(NotFound, message, nil)
}

func NewCursorNotFound(batchID uint64) *StorageError {
	return New(CursorNotFound, fmt.Sprintf("replication context %d not found", batchID), nil).
		WithDetail("batch_id", batchID)
}

func NewCursorBusy(batchID uint64) *StorageError {
	return New(CursorBusy, fmt.Sprintf("replication context %d is in use", batchID), nil).
		WithDetail("batch_id", batchID)
}

func NewDuplicateName(name string) *StorageError {
	return New(DuplicateName, fmt.Sprintf("duplicate name: %s", name), nil).
		WithDetail("name", name)
}

func NewUniqueConstraintViolated(indexName, key string) *StorageError {
	return New(UniqueConstraintViolated, fmt.Sprintf("unique constraint violated in index %q for key %q", indexName, key), nil).
		WithDetail("index", indexName).
		WithDetail("key", key)
}

func NewConflict(message string) *StorageError {
	return New(Conflict, message, nil)
}

func NewForbidden(message string) *StorageError {
	return New(Forbidden, message, nil)
}

func NewShardingAttributesMissing(message string) *StorageError {
	return New(ShardingAttributesMissing, message, nil)
}

func NewClusterTimeout(message string, cause error) *StorageError {
	return New(ClusterTimeout, message, cause)
}

func NewConnectionLost(message string, cause error) *StorageError {
	return New(ConnectionLost, message, cause)
}

func NewInternal(message string, cause error) *StorageError {
	return New(Internal, message, cause)
}

func NewNotYetImplemented(message string) *StorageError {
	return New(NotYetImplemented, message, nil)
}

// Is reports whether err is a *StorageError with the given code.
func Is(err error, code Code) bool {
	se, ok := err.(*StorageError)
	if !ok {
		return false
	}
	return se.Code == code
}

// GetCode extracts the taxonomy code from err, defaulting to Internal for
// errors that were never wrapped in a StorageError.
func GetCode(err error) Code {
	if se, ok := err.(*StorageError); ok {
		return se.Code
	}
	if err == nil {
		return OK
	}
	return Internal
}
