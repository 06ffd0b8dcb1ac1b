package engine

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
)

// EngineNotFoundError reports a missing engine binary and how to fix it.
type EngineNotFoundError struct {
	Path string
	GOOS string
}

func (e *EngineNotFoundError) Error() string {
	return fmt.Sprintf("%s at %s (%s)", domain.ErrEngineNotFound, e.Path, e.Hint())
}

// Hint is the remediation shown to operators.
func (e *EngineNotFoundError) Hint() string {
	return fmt.Sprintf("build the scPDSI engine for %s and install it at %s", e.GOOS, e.Path)
}

func (e *EngineNotFoundError) Is(target error) bool {
	return target == domain.ErrEngineNotFound
}

// EngineExecutionError reports an engine process that could not start or
// exited nonzero.
type EngineExecutionError struct {
	ExitCode int // -1 when the process never started
	Stderr   string
	Err      error
}

func (e *EngineExecutionError) Error() string {
	msg := fmt.Sprintf("%s: exit code %d", domain.ErrEngineExecution, e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("%s: %v", domain.ErrEngineExecution, e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *EngineExecutionError) Is(target error) bool {
	return target == domain.ErrEngineExecution
}

func (e *EngineExecutionError) Unwrap() error { return e.Err }
