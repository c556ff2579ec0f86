package errors

import "github.com/pkg/errors"

// StackTracer is implemented by errors created or wrapped by github.com/pkg/errors.
type StackTracer interface {
	StackTrace() errors.StackTrace
}

// ErrorTracer annotates a cause with a message, usually an ErrorCode, and makes sure the
// cause carries a stack trace.
type ErrorTracer struct {
	Message string
	Err     error
}

// NewTracer returns a tracer with the given message and no cause yet.
func NewTracer(message string) *ErrorTracer {
	return &ErrorTracer{Message: message}
}

// NewCodeTracer returns a tracer whose message is code.
func NewCodeTracer(code ErrorCode) *ErrorTracer {
	return NewTracer(string(code))
}

// TracerFromError returns err as a tracer. Tracers are returned unchanged; any other error
// becomes the cause of a tracer without a message of its own.
func TracerFromError(err error) *ErrorTracer {
	if tracer, ok := err.(*ErrorTracer); ok {
		return tracer
	}
	return (&ErrorTracer{}).Wrap(err)
}

// Wrap sets err as the cause, adding a stack trace when err has none.
func (e *ErrorTracer) Wrap(err error) *ErrorTracer {
	if _, ok := err.(StackTracer); !ok && err != nil {
		err = errors.WithStack(err)
	}
	e.Err = err
	return e
}

func (e *ErrorTracer) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *ErrorTracer) Unwrap() error {
	return e.Err
}

// StackTrace returns the stack recorded on the cause, or nil.
func (e *ErrorTracer) StackTrace() errors.StackTrace {
	if st, ok := e.Err.(StackTracer); ok {
		return st.StackTrace()
	}
	return nil
}
