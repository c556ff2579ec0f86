package errors

import stderrors "errors"

// ErrorDetails is a user facing error tied to an ErrorCode and optionally to the input
// field that caused it.
type ErrorDetails struct {
	Message string
	Code    string
	Field   string
}

// NewErrorDetails returns an ErrorDetails.
func NewErrorDetails(message, code, field string) *ErrorDetails {
	return &ErrorDetails{Message: message, Code: code, Field: field}
}

func (e *ErrorDetails) Error() string {
	return e.Message
}

// ErrorCodeEquals reports whether err, or any error in its chain, carries code. Tracers
// match on their message, BaseErrors on any of their details.
func ErrorCodeEquals(err error, code ErrorCode) bool {
	for ; err != nil; err = stderrors.Unwrap(err) {
		switch e := err.(type) {
		case *ErrorDetails:
			if e.Code == string(code) {
				return true
			}
		case *ErrorTracer:
			if e.Message == string(code) {
				return true
			}
		case *BaseError:
			if e.IsAnyCodeEqual(string(code)) {
				return true
			}
		}
	}
	return false
}
