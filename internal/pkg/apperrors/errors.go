package apperrors

import "errors"

// Error categories. Every domain error below wraps exactly one of these so
// callers can branch on either the specific error or its category.
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	// Authentication errors
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("invalid token")
	ErrInvalidFormat = errors.New("invalid token format")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// State errors
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Identity errors
var (
	ErrInvalidUser    = NewValidationError("invalid user identifier")
	ErrInvalidCourse  = NewValidationError("invalid course identifier")
	ErrCourseNotFound = NewResourceNotFoundError("course not found")
	ErrUserNotFound   = NewResourceNotFoundError("user not found")
)

// Enrollment errors
var (
	ErrAlreadyEnrolled    = NewConflictError("user is already enrolled in this course")
	ErrNotEnrolled        = NewResourceNotFoundError("user is not enrolled in this course")
	ErrEnrollmentNotFound = NewResourceNotFoundError("enrollment not found")
	ErrInvalidProgress    = NewValidationError("progress percentage must be between 0 and 100")
	ErrInvalidModule      = NewValidationError("invalid module identifier")
)

// Rating errors
var (
	ErrInvalidRating    = NewValidationError("rating must be between 1 and 5")
	ErrInvalidStatus    = NewValidationError("invalid moderation status")
	ErrReviewTooLong    = NewValidationError("review text is too long")
	ErrRatingNotFound   = NewResourceNotFoundError("rating not found")
	ErrInvalidSortOrder = NewValidationError("invalid sort order")
)

// Certificate errors
var (
	ErrCertificateNotFound    = NewResourceNotFoundError("certificate not found")
	ErrCertificateExists      = NewConflictError("certificate already issued for this enrollment")
	ErrDuplicateCertificateID = NewConflictError("certificate identifier collision")
	ErrNotCompleted           = NewPreconditionError("course has not been completed")
)

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewValidationError creates a new custom error for rejected input with a message
func NewValidationError(message string) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
	}
}

// NewPreconditionError creates a new custom error for operations attempted in the wrong state
func NewPreconditionError(message string) error {
	return &CustomError{
		Err:     ErrPreconditionFailed,
		Message: message,
	}
}

// Is returns whether err matches target or any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}
