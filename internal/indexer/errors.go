package indexer

import (
	"context"
	"errors"
	"fmt"
)

// Code identifies which gateway operation failed.
type Code string

const (
	CodeIndexFailed                    Code = "IndexFailed"
	CodeIndexError                     Code = "IndexError"
	CodeBulkIndexFailed                Code = "BulkIndexFailed"
	CodeBulkIndexError                 Code = "BulkIndexError"
	CodeUpdateFailed                   Code = "UpdateFailed"
	CodeRemoveFailed                   Code = "RemoveFailed"
	CodeRemoveBySourceEntityFailed     Code = "RemoveBySourceEntityFailed"
	CodeBulkRemoveFailed               Code = "BulkRemoveFailed"
	CodeRefreshFailed                  Code = "RefreshFailed"
	CodeActivateBySourceEntityFailed   Code = "ActivateBySourceEntityFailed"
	CodeDeactivateBySourceEntityFailed Code = "DeactivateBySourceEntityFailed"
	CodeExistenceCheckFailed           Code = "ExistenceCheckFailed"
)

// Sentinels for errors.Is. A gateway *Error matches the sentinel with the same code.
var (
	ErrIndexFailed                    = &Error{Code: CodeIndexFailed}
	ErrIndexError                     = &Error{Code: CodeIndexError}
	ErrBulkIndexFailed                = &Error{Code: CodeBulkIndexFailed}
	ErrBulkIndexError                 = &Error{Code: CodeBulkIndexError}
	ErrUpdateFailed                   = &Error{Code: CodeUpdateFailed}
	ErrRemoveFailed                   = &Error{Code: CodeRemoveFailed}
	ErrRemoveBySourceEntityFailed     = &Error{Code: CodeRemoveBySourceEntityFailed}
	ErrBulkRemoveFailed               = &Error{Code: CodeBulkRemoveFailed}
	ErrRefreshFailed                  = &Error{Code: CodeRefreshFailed}
	ErrActivateBySourceEntityFailed   = &Error{Code: CodeActivateBySourceEntityFailed}
	ErrDeactivateBySourceEntityFailed = &Error{Code: CodeDeactivateBySourceEntityFailed}
	ErrExistenceCheckFailed           = &Error{Code: CodeExistenceCheckFailed}
)

// Error is the only failure type returned by the gateway besides context errors.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Code == e.Code
}

// IsCanceled reports whether err is a context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fail converts err into a gateway error. Context errors pass through
// unchanged so callers can tell "gave up" from "engine said no".
func fail(ctx context.Context, code Code, err error, format string, args ...interface{}) error {
	if IsCanceled(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}
