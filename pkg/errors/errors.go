package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure by where in the pipeline it happened and
// whether the run can continue past it.
type Kind string

const (
	KindReferenceDataUnavailable Kind = "reference_data_unavailable"
	KindFetchFailure             Kind = "fetch_failure"
	KindSchemaMismatch           Kind = "schema_mismatch"
	KindEmptyResultSet           Kind = "empty_result_set"
	KindSinkWriteFailure         Kind = "sink_write_failure"
	KindConfig                   Kind = "config"
)

// ErrorType describes the transport level cause of a fetch failure
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Sentinels usable with errors.Is.
var (
	ErrReferenceDataUnavailable = &Error{Kind: KindReferenceDataUnavailable}
	ErrFetchFailure             = &Error{Kind: KindFetchFailure}
	ErrSchemaMismatch           = &Error{Kind: KindSchemaMismatch}
	ErrEmptyResultSet           = &Error{Kind: KindEmptyResultSet}
	ErrSinkWriteFailure         = &Error{Kind: KindSinkWriteFailure}
	ErrConfig                   = &Error{Kind: KindConfig}
)

// Error is the error value produced by every pipeline stage.
type Error struct {
	Kind    Kind
	Type    ErrorType
	Subject string
	Message string
	Code    int
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Type != "" {
		msg += fmt.Sprintf(" (%s", e.Type)
		if e.Code != 0 {
			msg += fmt.Sprintf(", code %d", e.Code)
		}
		msg += ")"
	}
	if e.Subject != "" {
		msg += fmt.Sprintf(" subject %s", e.Subject)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind so that sentinels compare equal to any error of
// the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Type == "" || t.Type == e.Type)
}

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to cause. A cause that is already an *Error of the
// same kind is returned unchanged.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	var existing *Error
	if stderrors.As(cause, &existing) && existing.Kind == kind && format == "" {
		return existing
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Transport builds a fetch failure carrying a transport classification.
func Transport(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindFetchFailure,
		Type:    t,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ForSubject returns err as a fetch failure attributed to subject.
func ForSubject(subject string, err error) *Error {
	var e *Error
	if stderrors.As(err, &e) && e.Kind == KindFetchFailure {
		cp := *e
		cp.Subject = subject
		return &cp
	}
	return &Error{Kind: KindFetchFailure, Type: ErrorTypeUnknown, Subject: subject, Cause: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// TypeOf returns the transport type of the first *Error in err's chain.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) && e.Type != "" {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// Exit codes returned by the command line tool.
const (
	ExitOK               = 0
	ExitUnknown          = 1
	ExitConfig           = 2
	ExitReferenceData    = 3
	ExitFetchFailure     = 4
	ExitSchemaMismatch   = 5
	ExitEmptyResultSet   = 6
	ExitSinkWriteFailure = 7
	ExitCancelled        = 130
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if stderrors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	switch KindOf(err) {
	case KindConfig:
		return ExitConfig
	case KindReferenceDataUnavailable:
		return ExitReferenceData
	case KindFetchFailure:
		return ExitFetchFailure
	case KindSchemaMismatch:
		return ExitSchemaMismatch
	case KindEmptyResultSet:
		return ExitEmptyResultSet
	case KindSinkWriteFailure:
		return ExitSinkWriteFailure
	default:
		return ExitUnknown
	}
}
