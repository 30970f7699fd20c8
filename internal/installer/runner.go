package installer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Config configures the runner's subprocess behavior and the installer
// front-end it drives.
type Config struct {
	// Binary is the installer front-end ("uv").
	Binary string `json:"binary"`

	// Python, when set, switches installs to module form
	// ("python -m uv pip install ...").
	Python string `json:"python,omitempty"`

	// SystemSite adds --system so packages land in the active
	// interpreter environment instead of requiring a virtualenv.
	SystemSite bool `json:"system_site"`

	// InstallTimeout caps install invocations. Zero disables the
	// deadline, matching environments where huge wheels are normal.
	InstallTimeout time.Duration `json:"install_timeout"`

	// ProbeTimeout caps short diagnostic commands (freeze, git,
	// nvidia-smi). Zero disables the deadline.
	ProbeTimeout time.Duration `json:"probe_timeout"`

	// MaxOutputBytes caps each captured stream.
	MaxOutputBytes int64 `json:"max_output_bytes"`

	// ConcurrentDownloads is exported to the installer as
	// UV_CONCURRENT_DOWNLOADS. Kept low for stability.
	ConcurrentDownloads int `json:"concurrent_downloads"`

	// LinkMode is exported to the installer as UV_LINK_MODE.
	LinkMode string `json:"link_mode"`

	// AllowedEnvironment lists environment variables passed through to
	// subprocesses.
	AllowedEnvironment []string `json:"allowed_environment"`
}

// DefaultConfig returns the runner defaults.
func DefaultConfig() Config {
	return Config{
		Binary:              "uv",
		SystemSite:          true,
		InstallTimeout:      15 * time.Minute,
		ProbeTimeout:        60 * time.Second,
		MaxOutputBytes:      10 * 1024 * 1024,
		ConcurrentDownloads: 4,
		LinkMode:            "copy",
		AllowedEnvironment:  []string{"PATH", "HOME", "VIRTUAL_ENV", "LANG", "LC_ALL"},
	}
}

// Runner executes subprocesses with timeout enforcement and bounded
// output capture. One runner is shared by every component that shells
// out.
type Runner struct {
	config Config
	logger *zap.Logger
}

// NewRunner returns a runner with zero-valued config fields filled
// from the defaults. Timeouts are taken as configured: zero means no
// deadline.
func NewRunner(config Config, logger *zap.Logger) *Runner {
	defaults := DefaultConfig()
	if config.Binary == "" {
		config.Binary = defaults.Binary
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = defaults.MaxOutputBytes
	}
	if config.ConcurrentDownloads <= 0 {
		config.ConcurrentDownloads = defaults.ConcurrentDownloads
	}
	if config.LinkMode == "" {
		config.LinkMode = defaults.LinkMode
	}
	if len(config.AllowedEnvironment) == 0 {
		config.AllowedEnvironment = defaults.AllowedEnvironment
	}
	return &Runner{config: config, logger: logger}
}

// Execute runs one command synchronously. The returned Result always
// means the process started; spawn failures (binary missing,
// permission) come back as errors so callers can tell infrastructure
// faults from commands that ran and exited non-zero.
func (r *Runner) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = r.config.InstallTimeout
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = r.buildEnvironment(cmd.Environment)

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: r.config.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: r.config.MaxOutputBytes}
	execCmd.Stdout = stdoutLimited
	execCmd.Stderr = stderrLimited

	r.logger.Debug("executing command",
		zap.String("command", cmd.String()),
		zap.Duration("timeout", timeout))

	result := &Result{ExitCode: -1, StartedAt: time.Now()}
	err := execCmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Combined = result.Stdout
	if result.Stderr != "" {
		if result.Combined != "" {
			result.Combined += "\n"
		}
		result.Combined += result.Stderr
	}
	result.Truncated = stdoutLimited.truncated || stderrLimited.truncated
	if result.Truncated {
		r.logger.Warn("command output truncated",
			zap.String("binary", cmd.Binary),
			zap.Int64("limit_bytes", r.config.MaxOutputBytes))
	}

	switch {
	case err == nil:
		result.ExitCode = 0
	case execCtx.Err() == context.DeadlineExceeded:
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		r.logger.Warn("command killed on deadline",
			zap.String("binary", cmd.Binary),
			zap.Duration("timeout", timeout))
	case execCtx.Err() == context.Canceled:
		result.Killed = true
		result.KillReason = "context canceled"
		r.logger.Debug("command canceled", zap.String("binary", cmd.Binary))
	default:
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			r.logger.Error("command could not run",
				zap.String("binary", cmd.Binary),
				zap.Error(err))
			return nil, fmt.Errorf("running %s: %w", cmd.Binary, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.Info("command completed",
		zap.String("binary", cmd.Binary),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("killed", result.Killed),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// buildEnvironment assembles the subprocess environment: the
// pass-through allowlist first, command-specific variables appended
// after so they win.
func (r *Runner) buildEnvironment(cmdEnv []string) []string {
	env := make([]string, 0, len(r.config.AllowedEnvironment)+len(cmdEnv))
	for _, key := range r.config.AllowedEnvironment {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	return append(env, cmdEnv...)
}

// Install runs the installer over a serialized requirement file.
func (r *Runner) Install(ctx context.Context, requirementFile string) (*Result, error) {
	return r.Execute(ctx, r.InstallCommand(requirementFile))
}

// InstallCommand builds the installer invocation for a requirement
// file: "uv pip install --system -r <file>" by default, module form
// when a Python interpreter is configured, --system dropped when
// targeting a virtualenv.
func (r *Runner) InstallCommand(requirementFile string) Command {
	binary := r.config.Binary
	var args []string
	if r.config.Python != "" {
		binary = r.config.Python
		args = append(args, "-m", r.config.Binary)
	}
	args = append(args, "pip", "install")
	if r.config.SystemSite {
		args = append(args, "--system")
	}
	args = append(args, "-r", requirementFile)

	return Command{
		Binary:      binary,
		Arguments:   args,
		Environment: r.installerEnvironment(),
		Timeout:     orDisabled(r.config.InstallTimeout),
	}
}

// installerEnvironment holds the uv tuning knobs injected into every
// install invocation.
func (r *Runner) installerEnvironment() []string {
	return []string{
		fmt.Sprintf("UV_CONCURRENT_DOWNLOADS=%d", r.config.ConcurrentDownloads),
		"UV_LINK_MODE=" + r.config.LinkMode,
	}
}

// Freeze captures the installed package listing of the target
// environment.
func (r *Runner) Freeze(ctx context.Context) (*Result, error) {
	cmd := Command{Timeout: orDisabled(r.config.ProbeTimeout)}
	if r.config.Python != "" {
		cmd.Binary = r.config.Python
		cmd.Arguments = []string{"-m", "pip", "freeze"}
	} else {
		cmd.Binary = r.config.Binary
		cmd.Arguments = []string{"pip", "freeze"}
		if r.config.SystemSite {
			cmd.Arguments = append(cmd.Arguments, "--system")
		}
	}
	return r.Execute(ctx, cmd)
}

// Probe runs a short diagnostic command under the probe timeout.
func (r *Runner) Probe(ctx context.Context, binary string, args ...string) (*Result, error) {
	return r.Execute(ctx, Command{
		Binary:    binary,
		Arguments: args,
		Timeout:   orDisabled(r.config.ProbeTimeout),
	})
}

// orDisabled maps a zero configured timeout to the explicit no-deadline
// marker so Execute does not substitute its default.
func orDisabled(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return -1
}

// limitedWriter caps total bytes written, discarding the overflow while
// reporting full writes so the child process never sees a short write.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
