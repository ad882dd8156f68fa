package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandError carries the full diagnostic output of a failed external tool.
// GPU and model failures only ever explain themselves through stderr, so the
// captured streams travel with the error until they reach the operator.
type CommandError struct {
	Binary string
	Args   []string
	Stdout string
	Stderr string
	cause  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Binary, strings.Join(e.Args, " "), e.cause)
}

func (e *CommandError) Unwrap() error { return e.cause }

// Diagnostic renders the captured tool output for user-visible reporting.
// Returns the empty string when err carries no command diagnostics.
func Diagnostic(err error) string {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "command: %s %s\n", cmdErr.Binary, strings.Join(cmdErr.Args, " "))
	if out := strings.TrimSpace(cmdErr.Stdout); out != "" {
		fmt.Fprintf(&b, "--- stdout ---\n%s\n", out)
	}
	if errOut := strings.TrimSpace(cmdErr.Stderr); errOut != "" {
		fmt.Fprintf(&b, "--- stderr ---\n%s\n", errOut)
	}
	return b.String()
}

// Runner executes external binaries with captured output and an optional
// per-invocation timeout. A timeout counts as a tool failure and is never
// retried.
type Runner struct {
	timeout time.Duration
}

// NewRunner constructs a runner. A zero timeout disables the deadline.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Run executes the binary and waits for completion. On a non-zero exit the
// returned error wraps ErrExternalTool (or ErrTimeout when the deadline
// fired) and carries the captured stdout/stderr via CommandError.
func (r *Runner) Run(ctx context.Context, binary string, args ...string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Wrap(ErrConfiguration, "runner", "run", "empty binary", nil)
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	marker := ErrExternalTool
	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		marker = ErrTimeout
		err = fmt.Errorf("killed after %s: %w", r.timeout, err)
	}
	return fmt.Errorf("%w: %w", marker, &CommandError{
		Binary: binary,
		Args:   append([]string(nil), args...),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		cause:  err,
	})
}

// RunCombined executes the binary and returns interleaved stdout+stderr
// regardless of exit status, for tools that report on stderr even when they
// succeed. Failures are classified the same way Run classifies them.
func (r *Runner) RunCombined(ctx context.Context, binary string, args ...string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", Wrap(ErrConfiguration, "runner", "run", "empty binary", nil)
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var combined bytes.Buffer
	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if err := cmd.Run(); err != nil {
		marker := ErrExternalTool
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			marker = ErrTimeout
		}
		return combined.String(), fmt.Errorf("%w: %w", marker, &CommandError{
			Binary: binary,
			Args:   append([]string(nil), args...),
			Stdout: combined.String(),
			cause:  err,
		})
	}
	return combined.String(), nil
}

// RunCapture behaves like Run but additionally returns captured stdout on
// success, for tools whose payload arrives on the standard stream.
func (r *Runner) RunCapture(ctx context.Context, binary string, args ...string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", Wrap(ErrConfiguration, "runner", "run", "empty binary", nil)
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		marker := ErrExternalTool
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			marker = ErrTimeout
		}
		return "", fmt.Errorf("%w: %w", marker, &CommandError{
			Binary: binary,
			Args:   append([]string(nil), args...),
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			cause:  err,
		})
	}
	return stdout.String(), nil
}
