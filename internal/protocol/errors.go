package protocol

// ErrorType names an error reported to client inside Error event.
type ErrorType string

const (
	ErrorTypeLabelMe               ErrorType = "LabelMe"
	ErrorTypeInternal              ErrorType = "InternalError"
	ErrorTypeInvalidSession        ErrorType = "InvalidSession"
	ErrorTypeOnboardingNotFinished ErrorType = "OnboardingNotFinished"
	ErrorTypeAlreadyAuthenticated  ErrorType = "AlreadyAuthenticated"
)

// Error is an error which can be sent to client.
type Error struct {
	Type ErrorType `json:"type"`
}

func (e *Error) Error() string {
	return string(e.Type)
}

// Is makes errors.Is match by error type so that decoded errors compare
// equal to sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

var (
	ErrLabelMe               = &Error{Type: ErrorTypeLabelMe}
	ErrInternal              = &Error{Type: ErrorTypeInternal}
	ErrInvalidSession        = &Error{Type: ErrorTypeInvalidSession}
	ErrOnboardingNotFinished = &Error{Type: ErrorTypeOnboardingNotFinished}
	ErrAlreadyAuthenticated  = &Error{Type: ErrorTypeAlreadyAuthenticated}
)
