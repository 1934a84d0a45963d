package errors

import (
	"context"
	stderrors "errors"
)

// Kind is the coarse failure class the coordinator uses to decide between
// retrying, failing a step and aborting an execution.
type Kind string

const (
	KindDefinition      Kind = "definition"
	KindValidation      Kind = "validation"
	KindTransient       Kind = "transient"
	KindFatal           Kind = "fatal"
	KindTimeout         Kind = "timeout"
	KindCancelled       Kind = "cancelled"
	KindEngineInvariant Kind = "engine_invariant"
)

// KindOf classifies err. Errors that are not AppErrors are fatal unless they
// wrap a context error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		switch appErr.Code {
		case ErrCodeDefinition:
			return KindDefinition
		case ErrCodeInvalidInput, ErrCodeMissingField, ErrCodeInvalidFormat, ErrCodeNotFound:
			return KindValidation
		case ErrCodeTimeout:
			return KindTimeout
		case ErrCodeCancelled:
			return KindCancelled
		case ErrCodeEngineInvariant:
			return KindEngineInvariant
		}
		if appErr.Retryable {
			return KindTransient
		}
		return KindFatal
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case stderrors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindFatal
}

// IsRetryable reports whether err may succeed on another attempt.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindTimeout:
		return true
	}
	return false
}

// CodeOf returns the AppError code of err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// MessageOf returns the human-readable part of err without the code prefix.
func MessageOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		if appErr.Cause != nil {
			return appErr.Message + ": " + appErr.Cause.Error()
		}
		return appErr.Message
	}
	return err.Error()
}

// Wrap returns err as an *AppError, wrapping foreign errors as internal errors.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}
