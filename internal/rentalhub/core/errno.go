package core

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeCarUnavailable    Code = "CAR_UNAVAILABLE"
	CodeRentalNotActive   Code = "RENTAL_NOT_ACTIVE"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeForbidden         Code = "FORBIDDEN"
	CodeDeviceOffline     Code = "DEVICE_OFFLINE"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInternal          Code = "INTERNAL"
)

// Error is a domain error. Two errors match under errors.Is when their codes match,
// so callers compare against the sentinels below regardless of the message.
type Error struct {
	Code    Code
	Message string
}

var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrCarUnavailable    = &Error{Code: CodeCarUnavailable, Message: "car is not available"}
	ErrRentalNotActive   = &Error{Code: CodeRentalNotActive, Message: "rental is not active"}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "not your rental"}
	ErrDeviceOffline     = &Error{Code: CodeDeviceOffline, Message: "car offline"}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
)

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Withf returns a copy of e carrying a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code of a domain error, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
