package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents a category of failure
type Kind string

const (
	KindInvalidParameter Kind = "invalid_parameter"
	KindDecode           Kind = "decode"
	KindInvalidImage     Kind = "invalid_image"
	KindDetect           Kind = "detect"
	KindEncode           Kind = "encode"
	KindTimeout          Kind = "timeout"
	KindCanceled         Kind = "canceled"
	KindSetup            Kind = "setup"
	KindInternal         Kind = "internal"
)

// AppError is a categorized error, optionally bound to the input file it concerns
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Reason is the short, human-readable form used in batch reports
func (e *AppError) Reason() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// New creates an AppError of the given kind
func New(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

// WithPath returns a copy of the error bound to path
func (e *AppError) WithPath(path string) *AppError {
	cp := *e
	cp.Path = path
	return &cp
}

func NewInvalidParameter(message string) *AppError {
	return New(KindInvalidParameter, message, nil)
}

func NewDecodeError(path string, cause error) *AppError {
	return &AppError{Kind: KindDecode, Message: "decode error", Path: path, Cause: cause}
}

func NewInvalidImage(width, height int) *AppError {
	return New(KindInvalidImage, fmt.Sprintf("invalid image dimensions %dx%d", width, height), nil)
}

func NewEncodeError(path string, cause error) *AppError {
	return &AppError{Kind: KindEncode, Message: "encode error", Path: path, Cause: cause}
}

func NewSetupError(message string, cause error) *AppError {
	return New(KindSetup, message, cause)
}

// KindOf extracts the Kind of err, or KindInternal if err is not an AppError
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind checks whether any error in err's chain is an AppError of kind
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Reason returns a short description of err suitable for a failure list
func Reason(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Reason()
	}
	return err.Error()
}
