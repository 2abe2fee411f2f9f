package apperrors

import "errors"

// Kind classifies an error for callers. Every structured result carries one.
type Kind string

const (
	KindInvalidArgument  Kind = "invalid_argument"
	KindNotFound         Kind = "not_found"
	KindNoRecords        Kind = "no_records"
	KindStoreUnavailable Kind = "store_unavailable"
	KindUnauthenticated  Kind = "unauthenticated"
	KindPermissionDenied Kind = "permission_denied"
	KindNotApplicable    Kind = "not_applicable"
	KindInternal         Kind = "internal"

	// KindServiceUnavailable is an outside dependency (the language model)
	// failing, as opposed to the grade store.
	KindServiceUnavailable Kind = "service_unavailable"
)

// Common errors
var (
	// Argument errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrScoreOutOfRange = errors.New("score must be between 0.0 and 10.0")
	ErrNegativeCount   = errors.New("absence count cannot be negative")
	ErrWrongCategory   = errors.New("course category does not accept this operation")
	ErrUnknownPartial  = errors.New("unknown partial, use partial1 or partial2")

	// Resource errors
	ErrNotFound        = errors.New("resource not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrRecordNotFound  = errors.New("student/course pair not found")
	ErrNoRecords       = errors.New("student has no academic records")

	// Recalculation errors
	ErrNotApplicable = errors.New("course category has no computed average")

	// Store errors
	ErrStoreUnavailable = errors.New("grade store unavailable")

	// External service errors
	ErrServiceUnavailable = errors.New("external service unavailable")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInvalidFormat      = errors.New("invalid token format")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")
)

// sentinelKinds maps sentinel errors to their kind. Order matters: the first
// match wins, so more specific sentinels come before the generic ones.
var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrNoRecords, KindNoRecords},
	{ErrStudentNotFound, KindNotFound},
	{ErrRecordNotFound, KindNotFound},
	{ErrNotFound, KindNotFound},
	{ErrScoreOutOfRange, KindInvalidArgument},
	{ErrNegativeCount, KindInvalidArgument},
	{ErrWrongCategory, KindInvalidArgument},
	{ErrUnknownPartial, KindInvalidArgument},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrNotApplicable, KindNotApplicable},
	{ErrStoreUnavailable, KindStoreUnavailable},
	{ErrServiceUnavailable, KindServiceUnavailable},
	{ErrInvalidCredentials, KindUnauthenticated},
	{ErrTokenExpired, KindUnauthenticated},
	{ErrTokenInvalid, KindUnauthenticated},
	{ErrInvalidFormat, KindUnauthenticated},
	{ErrPermissionDenied, KindPermissionDenied},
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Kind    Kind
	Message string
	Details map[string]interface{}
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

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Kind:    KindOf(err),
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// InvalidArgument wraps err (usually one of the argument sentinels) with a
// caller-facing message.
func InvalidArgument(err error, message string) error {
	if err == nil {
		err = ErrInvalidArgument
	}
	return &CustomError{Err: err, Kind: KindInvalidArgument, Message: message}
}

// NotFound creates a not_found error with a caller-facing message.
func NotFound(err error, message string) error {
	if err == nil {
		err = ErrNotFound
	}
	return &CustomError{Err: err, Kind: KindNotFound, Message: message}
}

// NoRecords creates a no_records error with a caller-facing message.
func NoRecords(message string) error {
	return &CustomError{Err: ErrNoRecords, Kind: KindNoRecords, Message: message}
}

// StoreUnavailable hides the cause behind a generic message. The cause stays
// reachable through errors.Is/As for logging only.
func StoreUnavailable(cause error) error {
	return &CustomError{
		Err:     errors.Join(ErrStoreUnavailable, cause),
		Kind:    KindStoreUnavailable,
		Message: "The grade store is temporarily unavailable, please try again later",
	}
}

// ServiceUnavailable wraps a failure of an outside service with a
// caller-facing message.
func ServiceUnavailable(cause error, message string) error {
	return &CustomError{
		Err:     errors.Join(ErrServiceUnavailable, cause),
		Kind:    KindServiceUnavailable,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Kind:    KindPermissionDenied,
		Message: message,
	}
}

// KindOf reports the kind of err. Errors without a known kind are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var custom *CustomError
	if errors.As(err, &custom) && custom.Kind != "" {
		return custom.Kind
	}
	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindInternal
}

// Message returns the caller-facing message for err. Internal and store
// errors never expose their cause.
func Message(err error) string {
	switch KindOf(err) {
	case KindStoreUnavailable:
		return "The grade store is temporarily unavailable, please try again later"
	case KindInternal:
		return "An unexpected error occurred"
	}
	var custom *CustomError
	if errors.As(err, &custom) {
		return custom.Error()
	}
	return err.Error()
}
