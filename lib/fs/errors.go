// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code classifies a failed operation. The string values are stable and
// are what the surrounding API layer reports to clients.
type Code string

const (
	CodeFileTooLarge    Code = "FILE_TOO_LARGE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeNotADirectory   Code = "NOT_A_DIRECTORY"
	CodeNotAFile        Code = "NOT_A_FILE"
	CodeInvalidPath     Code = "INVALID_PATH"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
	CodeDirectoryFull   Code = "DIRECTORY_FULL"

	// CodeCorruptNode means stored bytes failed to decode or violate
	// the tree's structure. Retrying cannot help.
	CodeCorruptNode Code = "CORRUPT_NODE"

	// CodeStorage wraps a failure of the storage provider. The
	// operation may succeed if retried.
	CodeStorage Code = "STORAGE_ERROR"
)

// Status returns the HTTP status conventionally used for the code.
func (c Code) Status() int {
	switch c {
	case CodeFileTooLarge, CodeDirectoryFull:
		return http.StatusRequestEntityTooLarge
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotADirectory, CodeNotAFile, CodeInvalidPath, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type returned by every [Service] method.
type Error struct {
	Code Code

	// Op is the service operation ("write", "mv", ...).
	Op string

	// Path is the path argument the operation failed on, as given by
	// the caller.
	Path string

	Err error
}

func (e *Error) Error() string {
	var builder strings.Builder
	if e.Op != "" {
		builder.WriteString(e.Op)
		if e.Path != "" {
			builder.WriteString(" ")
			builder.WriteString(e.Path)
		}
		builder.WriteString(": ")
	}
	builder.WriteString(string(e.Code))
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the code-only sentinels below, so callers can write
// errors.Is(err, fs.ErrNotFound).
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	if !ok || sentinel.Op != "" || sentinel.Path != "" || sentinel.Err != nil {
		return false
	}
	return sentinel.Code == e.Code
}

var (
	ErrFileTooLarge    = &Error{Code: CodeFileTooLarge}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrNotADirectory   = &Error{Code: CodeNotADirectory}
	ErrNotAFile        = &Error{Code: CodeNotAFile}
	ErrInvalidPath     = &Error{Code: CodeInvalidPath}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	ErrAlreadyExists   = &Error{Code: CodeAlreadyExists}
	ErrDirectoryFull   = &Error{Code: CodeDirectoryFull}
	ErrCorruptNode     = &Error{Code: CodeCorruptNode}
	ErrStorage         = &Error{Code: CodeStorage}
)

// CodeOf returns the code of the first *Error in err's chain, or the
// empty string.
func CodeOf(err error) Code {
	var fsErr *Error
	if errors.As(err, &fsErr) {
		return fsErr.Code
	}
	return ""
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// withOp attaches the operation and path to err. Errors that are not
// already classified are reported as storage failures: everything the
// engine does besides pure computation is a storage call.
func withOp(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fsErr *Error
	if errors.As(err, &fsErr) {
		annotated := *fsErr
		if annotated.Op == "" {
			annotated.Op = op
			annotated.Path = path
		}
		return &annotated
	}
	return &Error{Code: CodeStorage, Op: op, Path: path, Err: err}
}
