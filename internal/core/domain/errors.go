package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("invalid request")
	ErrImageNotFound  = errors.New("image not found")
	ErrRuntime        = errors.New("container runtime error")
	ErrPortAllocation = errors.New("no port assigned")
	ErrNotFound       = errors.New("container not found")
	ErrForbidden      = errors.New("container belongs to another user")

	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateName  = errors.New("container name already recorded")

	ErrUnauthorized       = errors.New("not authenticated")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid password")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RuntimeError carries the runtime's own explanation of a failed call.
type RuntimeError struct {
	Op     string
	Detail string
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Detail == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func (e *RuntimeError) Is(target error) bool {
	return target == ErrRuntime
}
