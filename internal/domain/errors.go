package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrCorruptState       = errors.New("corrupt persisted state")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeoutExceeded    = errors.New("timeout exceeded")
	ErrInvalidState       = errors.New("invalid state")
	ErrProcessFailure     = errors.New("process failure")

	ErrNoActiveTask = fmt.Errorf("%w: no active task", ErrInvalidState)
)
