package automation

import "fmt"

type ErrorCode string

const (
	ErrorInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorTransport      ErrorCode = "TRANSPORT"
	ErrorUpstreamStatus ErrorCode = "UPSTREAM_STATUS"
	ErrorEmptyResponse  ErrorCode = "EMPTY_RESPONSE"
)

// Error is returned by every webhook call that did not complete.
type Error struct {
	Code   ErrorCode
	Action string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("automation %s: %s", e.Action, e.Code)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, action string, status int, err error) *Error {
	return &Error{Code: code, Action: action, Status: status, Err: err}
}
