package common

// Error represents capture, device, and storage errors
type Error struct {
	Component string `json:"component"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error codes
const (
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeKindMismatch      = "KIND_MISMATCH"
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeUnsupported       = "UNSUPPORTED"
	ErrCodeStorage           = "STORAGE_FAILED"
)

// Sentinels for errors.Is checks.
var (
	ErrAlreadyExists     = &Error{Code: ErrCodeAlreadyExists, Message: "already exists"}
	ErrDeviceUnreachable = &Error{Code: ErrCodeDeviceUnreachable, Message: "device unreachable"}
	ErrKindMismatch      = &Error{Code: ErrCodeKindMismatch, Message: "kind mismatch"}
	ErrInvalidArgument   = &Error{Code: ErrCodeInvalidArgument, Message: "invalid argument"}
	ErrUnsupported       = &Error{Code: ErrCodeUnsupported, Message: "unsupported"}
	ErrStorage           = &Error{Code: ErrCodeStorage, Message: "storage failed"}
)

// NewError creates a new error
func NewError(component, code, message string, cause error) *Error {
	return &Error{
		Component: component,
		Code:      code,
		Message:   message,
		Cause:     cause,
	}
}
