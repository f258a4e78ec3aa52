package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

type AppError struct {
	Code    int    // Application error code, also used as websocket error code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

const (
	ErrInvalidToken       = 1001
	ErrAuctionNotFound    = 1002
	ErrBidTooLow          = 1003
	ErrAuctionNotActive   = 1004
	ErrWebSocketUpgrade   = 1005
	ErrBadMessageFormat   = 1006
	ErrUnknownMessageType = 1007
	ErrRateLimited        = 1008
	ErrStoreUnavailable   = 1010
	ErrCacheUnavailable   = 1011

	ErrInternalServer = 500
)

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code, so callers can compare against a
// sentinel like errors.Is(err, errs.New(errs.ErrBidTooLow, "")).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Retryable reports whether the caller may usefully retry the operation.
// Infrastructure failures are transient; validation failures are not,
// except for a too-low bid which can be retried with a higher amount.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case ErrStoreUnavailable, ErrCacheUnavailable, ErrBidTooLow:
		return true
	}
	return false
}

// ToJSON renders the error in the websocket wire format.
func (e *AppError) ToJSON() []byte {
	payload := struct {
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{Type: "error", Code: e.Code, Message: e.Message}

	data, err := json.Marshal(payload)
	if err != nil {
		return []byte(`{"type":"error","code":500,"message":"internal server error"}`)
	}
	return data
}

// Code extracts the application code from any error chain, or
// ErrInternalServer when the chain carries no AppError.
func Code(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

// Wrapping utility
func Wrap(err error, message string) *AppError {
	return &AppError{Code: ErrInternalServer, Message: message, Err: err}
}

// WrapCode wraps an underlying error under a specific code.
func WrapCode(code int, err error, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Error creation utility
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(code int, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}
