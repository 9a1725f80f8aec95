package types

import "fmt"

// Provider error codes. Every error crossing the relay boundary carries one
// of these; raw internal errors never reach page code.
const (
	ErrCodeUpstream          = 4000
	ErrCodeInvalidRequest    = 4001
	ErrCodeUnsupported       = 4200
	ErrCodeUserRejected      = 4200
	ErrCodeMisconfigured     = 4900
	ErrCodeUnrecognizedChain = 4902
)

// Error is the structured provider error delivered to page callers.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func NewError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) WithData(data interface{}) *Error {
	e.Data = data
	return e
}

// AsError converts any error into the structured shape. Errors that already
// carry a code pass through unchanged, everything else is wrapped as an
// upstream failure with the original message attached as data.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if perr, ok := err.(*Error); ok {
		return perr
	}
	return &Error{Code: ErrCodeUpstream, Message: "upstream failure", Data: err.Error()}
}

func ErrInvalidRequest(format string, args ...interface{}) *Error {
	return NewError(ErrCodeInvalidRequest, format, args...)
}

func ErrUnsupportedChain(chain string) *Error {
	return NewError(ErrCodeUnrecognizedChain, "no handler registered for chain %q", chain)
}

func ErrUnsupportedMethod(chain, method string) *Error {
	return NewError(ErrCodeUnsupported, "chain %s does not support method %q", chain, method)
}

func ErrUserRejected() *Error {
	return NewError(ErrCodeUserRejected, "user rejected the request")
}
