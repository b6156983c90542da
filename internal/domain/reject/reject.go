// Package reject defines the error type for expected business-rule outcomes.
//
// A rejection is data, not a fault: callers return it to the client with its
// message, never log it as an error and never retry it. Anything that is not
// a rejection is an infrastructure failure.
package reject

import "github.com/go-faster/errors"

// Error is a business-rule failure with a stable machine code and a message
// suitable for direct display.
type Error struct {
	Code    string
	Message string
}

// New creates a rejection. Packages declare their rejections as sentinels so
// callers can match them with errors.Is.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// As reports whether err is (or wraps) a rejection and returns it.
func As(err error) (*Error, bool) {
	var rej *Error
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
