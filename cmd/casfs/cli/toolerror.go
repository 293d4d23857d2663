// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/casfs/lib/fs"
)

// ErrorCategory classifies command errors so scripts can react to the
// exit code without parsing messages.
type ErrorCategory string

const (
	// CategoryValidation: the input was wrong. Fix it and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: a referenced path, root or node does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryConflict: the operation collides with existing state.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryTransient: storage was unavailable. Retrying may help,
	// and a retried write regenerates identical nodes.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: corrupt data or a bug. Do not retry.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized command error. It wraps the underlying
// error so errors.Is and errors.As still see the engine's codes.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// FromEngine categorizes an error returned by the fs engine. Errors
// that are already categorized, and nil, pass through unchanged.
func FromEngine(err error) error {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return err
	}

	category := CategoryInternal
	switch fs.CodeOf(err) {
	case fs.CodeNotFound:
		category = CategoryNotFound
	case fs.CodeNotADirectory, fs.CodeNotAFile, fs.CodeInvalidPath,
		fs.CodeInvalidArgument, fs.CodeFileTooLarge, fs.CodeDirectoryFull:
		category = CategoryValidation
	case fs.CodeAlreadyExists:
		category = CategoryConflict
	case fs.CodeStorage:
		category = CategoryTransient
	}
	return &ToolError{Category: category, Err: err}
}
