// Package engine locates and runs the platform-specific scPDSI executable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/workspace"
)

// DefaultBinaries maps each supported GOOS to its executable, relative to the
// installation root.
var DefaultBinaries = map[string]string{
	"linux":   "linux/scpdsi",
	"darwin":  "darwin/scpdsi",
	"windows": "windows/scpdsi.exe",
}

const (
	defaultMaxOutput = 64 << 10
	waitDelay        = 2 * time.Second
)

// Options configure an Invoker.
type Options struct {
	Root           string
	Timeout        time.Duration // 0 disables the timeout
	GOOS           string        // defaults to runtime.GOOS
	Binaries       map[string]string
	MaxOutputBytes int // per stream; defaults to 64 KiB
}

// Execution describes one finished engine process.
type Execution struct {
	Binary   string
	Args     []string
	ExitCode int
	Duration time.Duration
	Stdout   string
	Stderr   string
}

// Invoker runs the engine synchronously against a workspace.
type Invoker struct {
	root      string
	timeout   time.Duration
	goos      string
	binaries  map[string]string
	maxOutput int
	logger    *slog.Logger
}

// NewInvoker creates an Invoker from opts.
func NewInvoker(opts Options, logger *slog.Logger) *Invoker {
	inv := &Invoker{
		root:      opts.Root,
		timeout:   opts.Timeout,
		goos:      opts.GOOS,
		binaries:  opts.Binaries,
		maxOutput: opts.MaxOutputBytes,
		logger:    logger,
	}
	if inv.goos == "" {
		inv.goos = runtime.GOOS
	}
	if inv.binaries == nil {
		inv.binaries = DefaultBinaries
	}
	if inv.maxOutput <= 0 {
		inv.maxOutput = defaultMaxOutput
	}
	return inv
}

// Resolve returns the absolute path of the engine for the configured platform
// and checks that it exists.
func (i *Invoker) Resolve() (string, error) {
	rel, ok := i.binaries[i.goos]
	if !ok {
		return "", fmt.Errorf("%w: %s (supported: %s)", domain.ErrUnsupportedPlatform, i.goos, strings.Join(i.platforms(), ", "))
	}

	path, err := filepath.Abs(filepath.Join(i.root, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("%w: resolve engine path: %v", domain.ErrIO, err)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", &EngineNotFoundError{Path: path, GOOS: i.goos}
	}
	return path, nil
}

// CheckReadiness reports whether the engine binary is installed.
func (i *Invoker) CheckReadiness(_ context.Context) error {
	_, err := i.Resolve()
	return err
}

// Args builds the engine command line: monthly mode, workspace input
// directory, then the reported year range.
func (i *Invoker) Args(ws *workspace.Workspace, start, end int) []string {
	return []string{"-m", "-i", ws.Dir, strconv.Itoa(start), strconv.Itoa(end)}
}

// Run executes the engine with ws as its working directory and blocks until
// it exits. The engine always writes both output tables; Run does not read
// them.
//
// A nonzero exit is an *EngineExecutionError, an expired timeout wraps
// domain.ErrEngineTimeout and a cancelled ctx returns ctx.Err().
func (i *Invoker) Run(ctx context.Context, ws *workspace.Workspace, start, end int) (Execution, error) {
	bin, err := i.Resolve()
	if err != nil {
		return Execution{}, err
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if i.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, i.timeout)
	}
	defer cancel()

	args := i.Args(ws, start, end)
	stdout := &tailBuffer{max: i.maxOutput}
	stderr := &tailBuffer{max: i.maxOutput}

	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.Dir = ws.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	i.logger.Info("engine started", "binary", bin, "workspace", ws.Dir, "start_year", start, "end_year", end)
	began := time.Now()
	runErr := cmd.Run()

	result := Execution{
		Binary:   bin,
		Args:     args,
		ExitCode: -1,
		Duration: time.Since(began),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if result.Stdout != "" {
		i.logger.Debug("engine stdout", "output", result.Stdout, "truncated_bytes", stdout.dropped)
	}

	switch {
	case runErr == nil:
		i.logger.Info("engine finished", "duration", result.Duration, "exit_code", result.ExitCode)
		return result, nil
	case ctx.Err() != nil:
		i.logger.Warn("engine cancelled", "duration", result.Duration, "error", ctx.Err())
		return result, fmt.Errorf("engine run cancelled: %w", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		i.logger.Warn("engine timed out", "timeout", i.timeout)
		return result, fmt.Errorf("%w after %s", domain.ErrEngineTimeout, i.timeout)
	}

	execErr := &EngineExecutionError{ExitCode: result.ExitCode, Stderr: result.Stderr, Err: runErr}
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		execErr.ExitCode = -1
	}
	i.logger.Error("engine failed", "exit_code", execErr.ExitCode, "stderr", result.Stderr, "error", runErr)
	return result, execErr
}

func (i *Invoker) platforms() []string {
	names := make([]string, 0, len(i.binaries))
	for goos := range i.binaries {
		names = append(names, goos)
	}
	sort.Strings(names)
	return names
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max     int
	buf     []byte
	dropped int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.dropped += over
		b.buf = append(b.buf[:0:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }
