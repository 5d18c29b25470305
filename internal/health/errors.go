package health

import (
	"context"
	"errors"

	"healthsync/internal/kv"
)

var (
	ErrInitialization      = errors.New("health provider not initialized")
	ErrPermission          = errors.New("health permissions not granted")
	ErrProviderUnavailable = errors.New("health provider unavailable")
	ErrPermissionDenied    = errors.New("health provider denied access")
	ErrTransientIO         = errors.New("health provider transient io error")
)

// Code is a short error category used as a log field.
type Code string

const (
	CodeUnknown        Code = "unknown"
	CodeInitialization Code = "initialization"
	CodePermission     Code = "permission"
	CodeTransientIO    Code = "transient_io"
	CodeStore          Code = "store"
	CodeCancel         Code = "cancel"
)

func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, ErrInitialization) || errors.Is(err, ErrProviderUnavailable):
		return CodeInitialization
	case errors.Is(err, ErrPermission) || errors.Is(err, ErrPermissionDenied):
		return CodePermission
	case errors.Is(err, kv.ErrStore):
		return CodeStore
	case errors.Is(err, ErrTransientIO):
		return CodeTransientIO
	default:
		return CodeUnknown
	}
}
