// Package errors provides unified error handling with structured codes.
// Codes follow the pipeline failure taxonomy so callers can tell transient
// failures from configuration problems that need the user.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies an AppError.
type Code int

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	Unavailable
	Timeout
	Cancelled
	CaptureFailed
	OCRFailed
	OCRInvalidImage
	NoTextDetected
	ProviderFailed
	ProviderRateLimited
	ProviderAuthFailed
	KeysExhausted
	ProvidersUnavailable
	ConfigInvalid
	ConfigMissing
)

var codeNames = [...]string{
	Unknown:              "UNKNOWN",
	Internal:             "INTERNAL",
	InvalidArgument:      "INVALID_ARGUMENT",
	Unavailable:          "UNAVAILABLE",
	Timeout:              "TIMEOUT",
	Cancelled:            "CANCELLED",
	CaptureFailed:        "CAPTURE_FAILED",
	OCRFailed:            "OCR_FAILED",
	OCRInvalidImage:      "OCR_INVALID_IMAGE",
	NoTextDetected:       "NO_TEXT_DETECTED",
	ProviderFailed:       "PROVIDER_FAILED",
	ProviderRateLimited:  "PROVIDER_RATE_LIMITED",
	ProviderAuthFailed:   "PROVIDER_AUTH_FAILED",
	KeysExhausted:        "KEYS_EXHAUSTED",
	ProvidersUnavailable: "PROVIDERS_UNAVAILABLE",
	ConfigInvalid:        "CONFIG_INVALID",
	ConfigMissing:        "CONFIG_MISSING",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return codeNames[Unknown]
	}
	return codeNames[c]
}

// grpcCodeMap maps error codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:              codes.Unknown,
	Internal:             codes.Internal,
	InvalidArgument:      codes.InvalidArgument,
	Unavailable:          codes.Unavailable,
	Timeout:              codes.DeadlineExceeded,
	Cancelled:            codes.Canceled,
	CaptureFailed:        codes.Internal,
	OCRFailed:            codes.Internal,
	OCRInvalidImage:      codes.InvalidArgument,
	NoTextDetected:       codes.NotFound,
	ProviderFailed:       codes.Internal,
	ProviderRateLimited:  codes.ResourceExhausted,
	ProviderAuthFailed:   codes.PermissionDenied,
	KeysExhausted:        codes.ResourceExhausted,
	ProvidersUnavailable: codes.Unavailable,
	ConfigInvalid:        codes.InvalidArgument,
	ConfigMissing:        codes.FailedPrecondition,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus lets status.FromError recognise an AppError.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError converts an error returned by a gRPC call.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}
	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

// grpcToCode maps gRPC codes back to our error codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.NotFound:
		return NoTextDetected
	case codes.Unavailable:
		return Unavailable
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Canceled:
		return Cancelled
	case codes.Internal:
		return Internal
	case codes.FailedPrecondition:
		return ConfigMissing
	case codes.ResourceExhausted:
		return ProviderRateLimited
	case codes.PermissionDenied, codes.Unauthenticated:
		return ProviderAuthFailed
	default:
		return Unknown
	}
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if any AppError in err's chain has the given code.
func IsCode(err error, code Code) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case Unavailable, Timeout, ProviderRateLimited, ProviderFailed:
		return true
	default:
		return false
	}
}
