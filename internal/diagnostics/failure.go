package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"takumi/internal/installer"
)

// EventInstallFailure tags every failure report.
const EventInstallFailure = "install_failure"

// logTailLines is how much of the installer log a report carries.
const logTailLines = 100

// gpuPlaceholder is reported from hosts without a usable nvidia-smi.
const gpuPlaceholder = "GPU info unavailable (CPU only or nvidia-smi missing)"

// SystemInfo is the environment fingerprint attached to failure
// reports.
type SystemInfo struct {
	OS             string   `json:"os"`
	Release        string   `json:"release"`
	Machine        string   `json:"machine"`
	PythonVersion  string   `json:"python_version"`
	GPUInfo        []string `json:"gpu_info"`
	PythonPackages []string `json:"python_packages"`
}

// FailureReport is the diagnostic payload uploaded after an
// installation failure.
type FailureReport struct {
	EventType    string          `json:"event_type"`
	Timestamp    string          `json:"timestamp"`
	SystemInfo   SystemInfo      `json:"system_info"`
	ErrorLog     []string        `json:"error_log"`
	TargetRecipe json.RawMessage `json:"target_recipe"`
}

// SystemProber runs the probes failure reports are assembled from.
type SystemProber interface {
	Freeze(ctx context.Context) (*installer.Result, error)
	Probe(ctx context.Context, binary string, args ...string) (*installer.Result, error)
}

// Collector assembles failure reports. Every probe is best-effort: a
// failing probe contributes a placeholder line, never an error, so a
// broken host can still describe itself.
type Collector struct {
	prober SystemProber
	python string
	logger *zap.Logger
}

// NewCollector returns a collector probing through the given
// interpreter. Empty python falls back to python3.
func NewCollector(prober SystemProber, python string, logger *zap.Logger) *Collector {
	if python == "" {
		python = "python3"
	}
	return &Collector{prober: prober, python: python, logger: logger}
}

// Collect gathers system info, the sanitized log tail, and the target
// recipe into one report.
func (c *Collector) Collect(ctx context.Context, logPath, recipePath string) FailureReport {
	report := FailureReport{
		EventType:    EventInstallFailure,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		SystemInfo:   c.systemInfo(ctx),
		ErrorLog:     ReadLogTail(logPath, logTailLines),
		TargetRecipe: loadRecipeJSON(recipePath),
	}
	c.logger.Info("failure report assembled",
		zap.String("log", logPath),
		zap.Int("log_lines", len(report.ErrorLog)),
		zap.Bool("has_recipe", report.TargetRecipe != nil))
	return report
}

func (c *Collector) systemInfo(ctx context.Context) SystemInfo {
	return SystemInfo{
		OS:             runtime.GOOS,
		Release:        c.probeLine(ctx, "unknown", "uname", "-r"),
		Machine:        runtime.GOARCH,
		PythonVersion:  c.pythonVersion(ctx),
		GPUInfo:        c.gpuInfo(ctx),
		PythonPackages: c.packages(ctx),
	}
}

// probeLine runs a probe and returns its trimmed stdout, or the
// placeholder when the probe cannot run.
func (c *Collector) probeLine(ctx context.Context, placeholder, binary string, args ...string) string {
	res, err := c.prober.Probe(ctx, binary, args...)
	if err != nil || res.ExitCode != 0 {
		return placeholder
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return placeholder
	}
	return out
}

func (c *Collector) pythonVersion(ctx context.Context) string {
	line := c.probeLine(ctx, "unknown", c.python, "--version")
	return strings.TrimPrefix(line, "Python ")
}

func (c *Collector) gpuInfo(ctx context.Context) []string {
	res, err := c.prober.Probe(ctx, "nvidia-smi",
		"--query-gpu=name,memory.total,driver_version", "--format=csv,noheader")
	if err != nil || res.ExitCode != 0 {
		return []string{gpuPlaceholder}
	}
	lines := nonEmptyLines(res.Stdout)
	if len(lines) == 0 {
		return []string{gpuPlaceholder}
	}
	return lines
}

func (c *Collector) packages(ctx context.Context) []string {
	res, err := c.prober.Freeze(ctx)
	if err != nil {
		return []string{fmt.Sprintf("Error getting packages: %v", err)}
	}
	if res.ExitCode != 0 {
		return []string{fmt.Sprintf("Error getting packages: freeze exited %d", res.ExitCode)}
	}
	return nonEmptyLines(res.Stdout)
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// SanitizePath hides the user's home directory in report content.
// Reports leave the machine; usernames should not.
func SanitizePath(text string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return text
	}
	return strings.ReplaceAll(text, home, "/home/<USER>")
}

// ReadLogTail returns the last n lines of the log file, trimmed and
// sanitized. Missing or unreadable logs degrade to a placeholder line.
func ReadLogTail(path string, n int) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{"Log file not found."}
		}
		return []string{fmt.Sprintf("Error reading log: %v", err)}
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = SanitizePath(strings.TrimSpace(line))
	}
	return out
}

// loadRecipeJSON embeds the target recipe verbatim when it is valid
// JSON; a present but unparseable recipe is itself diagnostic signal.
func loadRecipeJSON(path string) json.RawMessage {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if !json.Valid(data) {
		return json.RawMessage(`{"error": "Failed to load recipe"}`)
	}
	return json.RawMessage(data)
}
