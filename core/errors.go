package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrorKind classifies every failure returned by the domain services.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
	KindAlreadyExists
	KindInvalidTransition
	KindSignatureMismatch
	KindStoreFailure
)

var kindNames = [...]string{
	KindUnknown:           "unknown",
	KindValidation:        "validation",
	KindNotFound:          "not found",
	KindAlreadyExists:     "already exists",
	KindInvalidTransition: "invalid transition",
	KindSignatureMismatch: "signature mismatch",
	KindStoreFailure:      "store failure",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Error is a classified domain error.
// Msg is safe to show to clients, except for KindStoreFailure whose cause stays server-side.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func NewError(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NotFoundError reports a missing entity, e.g. NotFoundError("student").
func NotFoundError(entity string) error {
	return &Error{Kind: KindNotFound, Msg: entity + " not found"}
}

// StoreError marks err as a persistence failure unless it is already classified.
func StoreError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &Error{Kind: KindStoreFailure, Msg: "internal storage failure", Err: errors.Wrap(err, msg)}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return KindValidation
	}
	var fldErrs validator.ValidationErrors
	if errors.As(err, &fldErrs) {
		return KindValidation
	}
	return KindUnknown
}

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
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

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
