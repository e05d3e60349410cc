// Package errors provides structured error types for httparchivedeps.
//
// Every failure raised while generating a manifest carries a [Code] so callers
// can tell a recoverable per-archive problem (a missing http_archive entry, a
// clone that failed, a BUILD file that does not parse) from one that must stop
// the whole run.
//
// # Error Codes
//
// Codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *_NOT_FOUND: Resource lookup failures
//   - *_FAILED: Failures of an external collaborator (git, parser, analyzer)
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeArchiveNotFound, "can't find http_archive with name %q", name)
//	if errors.Is(err, errors.ErrCodeArchiveNotFound) {
//	    // Skip the archive
//	}
//
//	err := errors.Wrap(errors.ErrCodeMaterialization, origErr, "clone %s", url)
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidFormat    Code = "INVALID_FORMAT"
	ErrCodeInvalidPath      Code = "INVALID_PATH"
	ErrCodeInvalidWorkspace Code = "INVALID_WORKSPACE"
	ErrCodeInvalidArchive   Code = "INVALID_ARCHIVE"
	ErrCodeInvalidLabel     Code = "INVALID_LABEL"

	// Lookup errors
	ErrCodeArchiveNotFound Code = "ARCHIVE_NOT_FOUND"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"

	// Collaborator failures
	ErrCodeMaterialization Code = "MATERIALIZATION_FAILED"
	ErrCodeBuildFileParse  Code = "BUILD_FILE_PARSE"
	ErrCodeSourceAnalysis  Code = "SOURCE_ANALYSIS_FAILED"
	ErrCodeReconciliation  Code = "RECONCILIATION_FAILED"
	ErrCodeTimeout         Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Recoverable reports whether err only invalidates the archive it was raised
// for. Cancellation, an expired caller deadline and internal errors abort the
// run. Per-command git timeouts carry ErrCodeTimeout and stay recoverable.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return GetCode(err) != ErrCodeInternal
}
