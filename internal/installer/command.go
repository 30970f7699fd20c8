// Package installer is the subprocess layer shared by every component
// that shells out: strategy installs, freeze probes, git and GPU
// probing. It enforces timeouts, caps captured output, and reports
// structured results so callers can classify outcomes by exit status.
package installer

import (
	"strings"
	"time"
)

// Command is one subprocess invocation.
type Command struct {
	// Binary is the executable to run (e.g. "uv", "git").
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in; empty means the
	// runner's current directory.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment variables to set (KEY=VALUE), merged over the
	// runner's pass-through allowlist.
	Environment []string `json:"environment,omitempty"`

	// Timeout caps execution time. Zero means the runner default; a
	// negative value disables the deadline entirely.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// String returns the full command line for logging.
func (c Command) String() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// Result is the captured outcome of a command that ran. Infrastructure
// failures (binary missing, spawn errors) are returned as errors by the
// runner instead; a Result always means the process started.
type Result struct {
	// ExitCode is the process exit code (-1 when killed).
	ExitCode int `json:"exit_code"`

	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`

	// Combined is stdout followed by stderr.
	Combined string `json:"combined"`

	// Duration is wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when execution completed.
	FinishedAt time.Time `json:"finished_at"`

	// Killed indicates the process was terminated by deadline or
	// cancellation.
	Killed bool `json:"killed"`

	// KillReason explains the termination.
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates captured output hit the size cap.
	Truncated bool `json:"truncated"`
}

// Output returns Combined, falling back to whichever stream is
// non-empty.
func (r *Result) Output() string {
	if r.Combined != "" {
		return r.Combined
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout
}

// Tail returns the last n bytes of the combined output, the slice kept
// for trial log excerpts and failure reports.
func (r *Result) Tail(n int) string {
	out := r.Output()
	if len(out) <= n {
		return out
	}
	return out[len(out)-n:]
}
