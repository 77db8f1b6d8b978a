package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for job operations, checkable with errors.Is().
var (
	ErrNotFound    = errors.New("job not found")
	ErrNotRunning  = errors.New("job is not running")
	ErrTerminal    = errors.New("job already in terminal state")
	ErrNoHandler   = errors.New("no handler registered for job type")
)

func notFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func notRunningError(id string, status Status) error {
	return fmt.Errorf("%w (status: %s): %s", ErrNotRunning, status, id)
}

func terminalError(id string, status Status) error {
	return fmt.Errorf("%w (status: %s): %s", ErrTerminal, status, id)
}
