// Package ssfserr defines the sentinel error codes shared by every SSFS
// component, so a caller two layers away from the failure can still tell a
// disk-full condition from a corrupt image without parsing a message.
package ssfserr

import (
	"errors"
	"fmt"
)

// Code is a stable, negative sentinel identifying the kind of failure.
type Code int

const (
	DiskAlreadyMounted Code = -1
	DiskNotMounted     Code = -2
	CorruptImage       Code = -3
	InvalidInode       Code = -4
	InvalidOffset      Code = -5
	OutOfSpace         Code = -6
	OutOfInodes        Code = -7
	BackendError       Code = -8
)

func (c Code) String() string {
	switch c {
	case DiskAlreadyMounted:
		return "disk already mounted"
	case DiskNotMounted:
		return "disk not mounted"
	case CorruptImage:
		return "corrupt image"
	case InvalidInode:
		return "invalid inode"
	case InvalidOffset:
		return "invalid offset"
	case OutOfSpace:
		return "out of space"
	case OutOfInodes:
		return "out of inodes"
	case BackendError:
		return "backend error"
	default:
		return fmt.Sprintf("unknown error code %d", int(c))
	}
}

// Error is the concrete error type returned by every ssfs operation that
// can fail for a reason a caller might want to branch on.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("ssfs: %s (%d): %s: %v", e.Code, int(e.Code), e.Msg, e.Err)
		}
		return fmt.Sprintf("ssfs: %s (%d): %v", e.Code, int(e.Code), e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("ssfs: %s (%d): %s", e.Code, int(e.Code), e.Msg)
	}
	return fmt.Sprintf("ssfs: %s (%d)", e.Code, int(e.Code))
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error carrying no underlying cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting of Msg.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error from a collaborator (the
// block device, typically) without discarding it.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, and reports whether it found one.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Code, true
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
