// Package process runs external encoder commands and classifies
// their exit statuses. A status of 0 is success; negative statuses or
// statuses above the configured ceiling mean the process was killed
// or crashed and abort the whole run; everything else is a per-file
// failure.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// ErrFatal wraps exit statuses that indicate the encoder process was
// killed or crashed abnormally. Callers must stop the run instead of
// moving to the next file.
var ErrFatal = errors.New("encoder process killed or crashed")

// Result captures one finished command.
type Result struct {
	ExitCode int
	// Output is combined stdout and stderr. The fallback state
	// machine matches diagnostics against it.
	Output string
}

// Runner executes an argv. Implemented by Exec for real commands and
// by fakes in tests.
type Runner interface {
	Run(ctx context.Context, argv []string) (Result, error)
}

// Exec runs commands on the local machine. Dir, when set, becomes
// the working directory; two-pass encodes rely on it because the
// rate-control statistics land in the command's cwd.
type Exec struct {
	Dir string
}

// Run executes argv and returns its combined output and exit status.
// A non-zero exit is not an error here; classification is the
// caller's job. The returned error covers spawn failures only.
func (e Exec) Run(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("run: empty argv")
	}

	cmd := commandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.Dir
	output, err := cmd.CombinedOutput()
	result := Result{Output: string(output)}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// ExitCode is -1 when the process died to a signal.
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return result, nil
}

// Classify maps an exit status to the error taxonomy. fatalAbove is
// the highest status still treated as a per-file failure.
func Classify(result Result, fatalAbove int) error {
	code := result.ExitCode
	switch {
	case code == 0:
		return nil
	case code < 0 || code > fatalAbove:
		return fmt.Errorf("%w: exit status %d", ErrFatal, code)
	default:
		return &FileError{ExitCode: code, Output: result.Output}
	}
}

// FileError is a non-fatal encoder failure scoped to one file.
type FileError struct {
	ExitCode int
	Output   string
}

func (e *FileError) Error() string {
	message := fmt.Sprintf("exit status %d", e.ExitCode)
	if trimmed := strings.TrimSpace(e.Output); trimmed != "" {
		message += ": " + firstLine(trimmed)
	}
	return message
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
