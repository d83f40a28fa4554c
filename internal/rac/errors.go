// -----------------------------------------------------------------------
// Administration Client - Failure Kinds
// -----------------------------------------------------------------------
//
// Every failure of the external administration client is reported as one
// of a small set of kinds so that callers can degrade the metric and still
// tell a dead server from a missing binary in the logs.
//
// -----------------------------------------------------------------------

package rac

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means the executable could not be started because it
	// does not exist on disk or on the search path.
	ErrNotFound = errors.New("rac executable not found")

	// ErrTimeout means the process did not finish within its deadline and
	// was killed.
	ErrTimeout = errors.New("rac command timed out")

	// ErrExitStatus means the process ran and exited with a non-zero code.
	ErrExitStatus = errors.New("rac command exited with non-zero status")

	// ErrMalformed means the process succeeded but its output did not
	// contain the expected records.
	ErrMalformed = errors.New("rac output malformed")

	// ErrNoClusters means the administration server answered with an empty
	// cluster list.
	ErrNoClusters = errors.New("no clusters reported")
)

// CommandError describes a single failed invocation.
type CommandError struct {
	Args     []string
	ExitCode int
	Kind     error
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", strings.Join(redact(e.Args), " "), e.Kind)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason maps an error to a short label suitable for logs and metric
// labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExitStatus):
		return "exit_status"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrNoClusters):
		return "no_clusters"
	default:
		return "error"
	}
}

// redact hides the value that follows a password flag.
func redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--cluster-pwd" || out[i] == "--password" {
			out[i+1] = "***"
		}
	}
	return out
}
