package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound is returned when a referenced node, edge, session or
	// job does not exist
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConstraintViolation is returned when a write would violate the
	// data model, e.g. a relation type outside the allowed domain
	ErrorTypeConstraintViolation ErrorType = "constraint_violation"
	// ErrorTypeUpstreamUnavailable is returned when the graph store, extractor
	// or embedding provider is transiently unreachable
	ErrorTypeUpstreamUnavailable ErrorType = "upstream_unavailable"
	// ErrorTypeInvalidArgument is returned for malformed requests, e.g. a merge
	// survivor that is neither of the two candidates
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Category returns the error's taxonomy type. It is promoted to every error
// that embeds *BaseError, so IsErrorType works on all of them.
func (e *BaseError) Category() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Not-found errors

// ErrNodeNotFound is returned when a node referenced by id does not exist
type ErrNodeNotFound struct {
	*BaseError
	NodeID string
}

func NewNodeNotFound(nodeID string) *ErrNodeNotFound {
	return &ErrNodeNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("node not found: %s", nodeID), nil),
		NodeID:    nodeID,
	}
}

// ErrEdgeNotFound is returned when an edge referenced by id does not exist
type ErrEdgeNotFound struct {
	*BaseError
	EdgeID string
}

func NewEdgeNotFound(edgeID string) *ErrEdgeNotFound {
	return &ErrEdgeNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("edge not found: %s", edgeID), nil),
		EdgeID:    edgeID,
	}
}

// ErrJobNotFound is returned when a scheduler job name is unknown
type ErrJobNotFound struct {
	*BaseError
	JobName string
}

func NewJobNotFound(name string) *ErrJobNotFound {
	return &ErrJobNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("job not found: %s", name), nil),
		JobName:   name,
	}
}

// Constraint violations

// ErrInvalidRelationType is returned when an edge type is outside the allowed
// domain and does not look like a manual link type
type ErrInvalidRelationType struct {
	*BaseError
	RelationType string
}

func NewInvalidRelationType(relType string) *ErrInvalidRelationType {
	return &ErrInvalidRelationType{
		BaseError:    NewBaseError(ErrorTypeConstraintViolation, fmt.Sprintf("invalid relation type: %s", relType), nil),
		RelationType: relType,
	}
}

// ErrUnknownVariant is returned when a node variant is not part of the model
type ErrUnknownVariant struct {
	*BaseError
	Variant string
}

func NewUnknownVariant(variant string) *ErrUnknownVariant {
	return &ErrUnknownVariant{
		BaseError: NewBaseError(ErrorTypeConstraintViolation, fmt.Sprintf("unknown node variant: %s", variant), nil),
		Variant:   variant,
	}
}

// Invalid arguments

// ErrInvalidMergeSurvivor is returned when the designated merge survivor is
// neither of the two entities being merged
type ErrInvalidMergeSurvivor struct {
	*BaseError
	Survivor string
}

func NewInvalidMergeSurvivor(survivor string) *ErrInvalidMergeSurvivor {
	return &ErrInvalidMergeSurvivor{
		BaseError: NewBaseError(ErrorTypeInvalidArgument, fmt.Sprintf("merge survivor must be one of the merged entities: %s", survivor), nil),
		Survivor:  survivor,
	}
}

// NewInvalidArgument creates a generic invalid-argument error
func NewInvalidArgument(message string) *BaseError {
	return NewBaseError(ErrorTypeInvalidArgument, message, nil)
}

// Upstream errors

// ErrStoreUnavailable is returned when the graph store cannot be reached
type ErrStoreUnavailable struct {
	*BaseError
	Operation string
}

func NewStoreUnavailable(operation string, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeUpstreamUnavailable, fmt.Sprintf("graph store unavailable during %s", operation), err),
		Operation: operation,
	}
}

// ErrUpstreamFailed is returned when an external capability (extractor,
// embedder, query analyzer) fails after its retries are exhausted
type ErrUpstreamFailed struct {
	*BaseError
	Upstream string
	Attempts int
}

func NewUpstreamFailed(upstream string, attempts int, err error) *ErrUpstreamFailed {
	return &ErrUpstreamFailed{
		BaseError: NewBaseError(ErrorTypeUpstreamUnavailable, fmt.Sprintf("%s failed after %d attempts", upstream, attempts), err),
		Upstream:  upstream,
		Attempts:  attempts,
	}
}

// Helper functions

// IsErrorType checks if an error (or any error it wraps) is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if typed, ok := err.(interface{ Category() ErrorType }); ok {
			return typed.Category() == errType
		}
		if wrapped, ok := err.(interface{ Unwrap() error }); ok {
			err = wrapped.Unwrap()
			continue
		}
		return false
	}
	return false
}

// IsNotFound checks for the not-found category
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsConstraintViolation checks for the constraint-violation category
func IsConstraintViolation(err error) bool {
	return IsErrorType(err, ErrorTypeConstraintViolation)
}

// IsInvalidArgument checks for the invalid-argument category
func IsInvalidArgument(err error) bool {
	return IsErrorType(err, ErrorTypeInvalidArgument)
}

// IsRetryable checks if an operation may be safely retried after this error.
// Only transient upstream failures qualify; not-found and constraint errors
// are deterministic, and destructive operations are never retried at all.
func IsRetryable(err error) bool {
	return IsErrorType(err, ErrorTypeUpstreamUnavailable)
}
