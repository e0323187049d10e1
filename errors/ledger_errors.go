package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/mezonai/starledger/jsonx"
)

// LedgerErrorCode represents standardized error codes surfaced by the chain,
// the validation mempool and the transports.
type LedgerErrorCode string

const (
	ErrCodeInternal LedgerErrorCode = "internal_error"
	ErrCodeIO       LedgerErrorCode = "io_error"
	ErrCodeNotReady LedgerErrorCode = "not_ready"

	ErrCodeInvalidRequest LedgerErrorCode = "invalid_request"
	ErrCodeNotFound       LedgerErrorCode = "not_found"
	ErrCodeAppendRace     LedgerErrorCode = "append_race"

	ErrCodeNoPendingRequest  LedgerErrorCode = "no_pending_request"
	ErrCodeInvalidSignature  LedgerErrorCode = "invalid_signature"
	ErrCodeValidationExpired LedgerErrorCode = "validation_expired"
	ErrCodeUnauthorized      LedgerErrorCode = "unauthorized"
	ErrCodeRateLimited       LedgerErrorCode = "rate_limited"
)

// Error message constants
const (
	ErrMsgNotReady          = "Chain is still initializing, please try again"
	ErrMsgNotFound          = "Block could not be found"
	ErrMsgAppendRace        = "Another block was appended concurrently, please retry"
	ErrMsgIO                = "Storage failure, please try again"
	ErrMsgNoPendingRequest  = "No pending validation request for this address"
	ErrMsgInvalidSignature  = "Message signature is invalid"
	ErrMsgValidationExpired = "Validation window has expired, request a new one"
	ErrMsgUnauthorized      = "Address has not been validated, go through the validation process first"
	ErrMsgInvalidRequest    = "Request format is invalid"
	ErrMsgInternal          = "Server error, please try again"
	ErrMsgRateLimited       = "Too many requests, please slow down"
	ErrMsgFieldMissing      = "Field '%s' is missing"
	ErrMsgFieldTooLong      = "Field '%s' exceeds maximum length (%d)"
	ErrMsgInvalidCharacters = "Field '%s' contains invalid characters"
)

// LedgerError carries a stable code, a user facing message and an optional cause.
type LedgerError struct {
	Code    LedgerErrorCode `json:"code"`
	Message string          `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	out, _ := jsonx.Marshal(struct {
		Code    LedgerErrorCode `json:"code"`
		Message string          `json:"message"`
	}{e.Code, e.Message})
	if e.cause != nil {
		return string(out) + ": " + e.cause.Error()
	}
	return string(out)
}

func (e *LedgerError) Unwrap() error {
	return e.cause
}

// Is matches on code so sentinels work with errors.Is regardless of message.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotReady          = &LedgerError{Code: ErrCodeNotReady, Message: ErrMsgNotReady}
	ErrNotFound          = &LedgerError{Code: ErrCodeNotFound, Message: ErrMsgNotFound}
	ErrAppendRace        = &LedgerError{Code: ErrCodeAppendRace, Message: ErrMsgAppendRace}
	ErrIO                = &LedgerError{Code: ErrCodeIO, Message: ErrMsgIO}
	ErrNoPendingRequest  = &LedgerError{Code: ErrCodeNoPendingRequest, Message: ErrMsgNoPendingRequest}
	ErrInvalidSignature  = &LedgerError{Code: ErrCodeInvalidSignature, Message: ErrMsgInvalidSignature}
	ErrValidationExpired = &LedgerError{Code: ErrCodeValidationExpired, Message: ErrMsgValidationExpired}
	ErrUnauthorized      = &LedgerError{Code: ErrCodeUnauthorized, Message: ErrMsgUnauthorized}
	ErrInvalidRequest    = &LedgerError{Code: ErrCodeInvalidRequest, Message: ErrMsgInvalidRequest}
	ErrRateLimited       = &LedgerError{Code: ErrCodeRateLimited, Message: ErrMsgRateLimited}
)

// NewError creates a new LedgerError and returns it as error interface
func NewError(code LedgerErrorCode, message string) error {
	return &LedgerError{
		Code:    code,
		Message: message,
	}
}

// Wrap attaches a cause to a code with a formatted message.
func Wrap(code LedgerErrorCode, cause error, format string, args ...interface{}) error {
	return &LedgerError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// IOError wraps a storage failure.
func IOError(cause error, op string) error {
	return Wrap(ErrCodeIO, cause, "%s: %s", ErrMsgIO, op)
}

// NotFoundf builds a not-found error with a specific message.
func NotFoundf(format string, args ...interface{}) error {
	return &LedgerError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidRequestf builds an invalid-request error with a specific message.
func InvalidRequestf(format string, args ...interface{}) error {
	return &LedgerError{Code: ErrCodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first LedgerError in the chain, or internal_error.
func CodeOf(err error) LedgerErrorCode {
	var le *LedgerError
	if stderrors.As(err, &le) {
		return le.Code
	}
	return ErrCodeInternal
}

// MessageOf returns the user facing message of err.
func MessageOf(err error) string {
	var le *LedgerError
	if stderrors.As(err, &le) {
		return le.Message
	}
	return ErrMsgInternal
}

// IsClientError reports whether err was caused by the caller rather than the node.
func IsClientError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeInvalidRequest, ErrCodeNotFound, ErrCodeAppendRace, ErrCodeNoPendingRequest,
		ErrCodeInvalidSignature, ErrCodeValidationExpired, ErrCodeUnauthorized, ErrCodeRateLimited:
		return true
	}
	return false
}

// Is and As mirror the standard library helpers.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
