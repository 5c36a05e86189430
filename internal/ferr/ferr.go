// SPDX-License-Identifier: MPL-2.0

// Package ferr defines Fragmenter's closed error taxonomy and the single
// classifier boundary where platform errors (filesystem, transport, ZIP
// codec) are turned into typed Error values.
package ferr

import (
	"errors"
	"fmt"
)

// Code identifies one of Fragmenter's closed set of error kinds. Every
// error the engine returns to a caller carries exactly one Code.
type Code int

const (
	Unknown Code = iota
	PermissionsError
	ResourcesBusy
	NoSpaceOnDevice
	MaxModuleRetries
	FileNotFound
	DirectoryNotEmpty
	NotADirectory
	ModuleJsonInvalid
	ModuleCrcMismatch
	UserAborted
	NetworkError
	CorruptedZipFile
	InvalidOptions
	InvalidParameters
	InvalidDistributionManifest
	DownloadStreamClosed
)

// String returns the taxonomy name used in Error's message and in logs.
func (c Code) String() string {
	switch c {
	case PermissionsError:
		return "PermissionsError"
	case ResourcesBusy:
		return "ResourcesBusy"
	case NoSpaceOnDevice:
		return "NoSpaceOnDevice"
	case MaxModuleRetries:
		return "MaxModuleRetries"
	case FileNotFound:
		return "FileNotFound"
	case DirectoryNotEmpty:
		return "DirectoryNotEmpty"
	case NotADirectory:
		return "NotADirectory"
	case ModuleJsonInvalid:
		return "ModuleJsonInvalid"
	case ModuleCrcMismatch:
		return "ModuleCrcMismatch"
	case UserAborted:
		return "UserAborted"
	case NetworkError:
		return "NetworkError"
	case CorruptedZipFile:
		return "CorruptedZipFile"
	case InvalidOptions:
		return "InvalidOptions"
	case InvalidParameters:
		return "InvalidParameters"
	case InvalidDistributionManifest:
		return "InvalidDistributionManifest"
	case DownloadStreamClosed:
		return "DownloadStreamClosed"
	default:
		return "Unknown"
	}
}

// Unrecoverable reports whether errors of this kind must abort a retry loop
// immediately rather than being retried with backoff.
func (c Code) Unrecoverable() bool {
	switch c {
	case PermissionsError, NoSpaceOnDevice, MaxModuleRetries, FileNotFound,
		DirectoryNotEmpty, NotADirectory, UserAborted:
		return true
	default:
		return false
	}
}

// Error is the typed error every Fragmenter public operation returns.
// Operation and Resource mirror this codebase's ActionableError shape,
// narrowed to a closed Code instead of free-form suggestions.
type Error struct {
	Code      Code
	Operation string // what was being attempted, e.g. "download module"
	Resource  string // file, URL, or module name involved (optional)
	Cause     error  // underlying error, if any
}

// New constructs an Error with no resource or cause.
func New(code Code, operation string) *Error {
	return &Error{Code: code, Operation: operation}
}

// Wrap constructs an Error around an existing cause.
func Wrap(code Code, operation string, cause error) *Error {
	return &Error{Code: code, Operation: operation, Cause: cause}
}

// WithResource returns a copy of e with Resource set.
func (e *Error) WithResource(resource string) *Error {
	cp := *e
	cp.Resource = resource
	return &cp
}

// Error implements the error interface, formatted as
// "FragmenterError(<Code>): <detail>" per the taxonomy's wire format.
func (e *Error) Error() string {
	detail := e.Operation
	if e.Resource != "" {
		detail = fmt.Sprintf("%s: %s", detail, e.Resource)
	}
	if e.Cause != nil {
		detail = fmt.Sprintf("%s: %s", detail, e.Cause.Error())
	}
	return fmt.Sprintf("FragmenterError(%s): %s", e.Code, detail)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code, so callers can
// write errors.Is(err, ferr.New(ferr.UserAborted, "")) style checks, and so
// two independently constructed errors of the same kind compare equal.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the Code carried by err, returning Unknown if err is not
// (or does not wrap) a Fragmenter *Error.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return Unknown
}

// Recoverable reports whether err should be retried with backoff rather
// than aborting the enclosing loop immediately.
func Recoverable(err error) bool {
	return !CodeOf(err).Unrecoverable()
}
