package domain

import "errors"

// Sentinel errors identify which stage of a computation failed.
var (
	ErrRange               = errors.New("requested year range not covered by input")
	ErrMalformedInput      = errors.New("malformed climate input")
	ErrIO                  = errors.New("workspace i/o failure")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrEngineNotFound      = errors.New("engine executable not found")
	ErrEngineExecution     = errors.New("engine execution failed")
	ErrEngineTimeout       = errors.New("engine timed out")
	ErrMissingOutput       = errors.New("engine output missing")
	ErrMalformedOutput     = errors.New("malformed engine output")
	ErrInvalidMode         = errors.New("invalid mode")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidMode, "invalid_mode"},
	{ErrRange, "range_error"},
	{ErrMalformedInput, "malformed_input"},
	{ErrIO, "io_error"},
	{ErrUnsupportedPlatform, "unsupported_platform"},
	{ErrEngineNotFound, "engine_not_found"},
	{ErrEngineTimeout, "engine_timeout"},
	{ErrEngineExecution, "engine_execution"},
	{ErrMissingOutput, "missing_output"},
	{ErrMalformedOutput, "malformed_output"},
}

// ErrorKind returns a stable label for err, or "internal" when err wraps none of
// the package sentinels. A nil error has no kind.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// IsInputError reports whether err was caused by the request rather than the
// engine or the host.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrRange) ||
		errors.Is(err, ErrMalformedInput)
}
