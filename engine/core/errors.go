package core

import (
	"errors"
)

var (
	ErrEngineNotReady   = errors.New("engine is not initialized")
	ErrEngineDisposed   = errors.New("engine has been disposed")
	ErrNotSupported     = errors.New("operation not supported by this backend")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrIdentifierUnused = errors.New("identifier was not acquired")
	ErrUnknown          = errors.New("unknown")
)
