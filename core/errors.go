package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return fmt.Sprintf("%s: %s", err.Fields[0].Field, err.Fields[0].Error)
		}
		return ""
	}
	return err.Err.Error()
}

// AuthzError is returned when the caller is known but not allowed to proceed.
// Reason is safe to show to the caller.
type AuthzError struct {
	Reason string
}

func NewAuthzError(reason string) error {
	return &AuthzError{Reason: reason}
}

func (err AuthzError) Error() string {
	return err.Reason
}

type NotFoundError struct {
	What string
}

func NewNotFoundError(what string) error {
	return &NotFoundError{What: what}
}

func (err NotFoundError) Error() string {
	return err.What + " not found"
}

// UpstreamError is returned when a collaborating service rejected a call.
// Detail is the upstream's own explanation, forwarded as is.
type UpstreamError struct {
	Service string
	Status  int
	Detail  string
}

func NewUpstreamError(service string, status int, detail string) error {
	return &UpstreamError{Service: service, Status: status, Detail: detail}
}

func (err UpstreamError) Error() string {
	return err.Detail
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
