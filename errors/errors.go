package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code Code
	Op   string
	Err  error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func WrapWithCode(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code: code,
		Op:   op,
		Err:  err,
	}
}

// New builds an AppError from a plain message.
func New(code Code, op, msg string) error {
	return &AppError{Code: code, Op: op, Err: stderrors.New(msg)}
}

// CodeOf returns the code of the first AppError in err's chain, or "" when
// err carries none.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsDenial reports whether err is an admission denial rather than a fault.
func IsDenial(err error) bool {
	return CodeOf(err) == CodeInsufficientStanding
}

// PublicMessage is the text that may be returned to the caller. Client-class
// errors carry only what the caller supplied, so their cause is returned as
// is; upstream errors are reduced to a fixed message.
func PublicMessage(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return "internal error"
	}
	switch appErr.Code {
	case CodeInvalidRequest, CodePayloadTooLarge, CodeInvalidCredential, CodeIdentityMismatch, CodeInsufficientStanding:
		return appErr.Err.Error()
	case CodeLedgerUnavailable:
		return "ledger unavailable"
	case CodeUploadTransport:
		return "pinning service unreachable"
	case CodeUploadService:
		var status interface{ HTTPStatus() int }
		if stderrors.As(err, &status) {
			return fmt.Sprintf("pinning service rejected upload (status %d)", status.HTTPStatus())
		}
		return "pinning service rejected upload"
	default:
		return "internal error"
	}
}
