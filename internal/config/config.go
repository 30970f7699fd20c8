// Package config holds the agent configuration: artifact paths,
// installer behavior, telemetry, and logging.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config filename looked for in the working
// directory.
const DefaultPath = "takumi.yaml"

// Config is the full agent configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Installer InstallerConfig `yaml:"installer"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PathsConfig locates the component root and the artifacts around it.
type PathsConfig struct {
	// NodesRoot is the custom-node component root.
	NodesRoot string `yaml:"nodes_root"`

	// MetaRoot is the layered configuration root; the enterprise
	// namespace under it overrides core.
	MetaRoot string `yaml:"meta_root"`

	// KnowledgeFile is an explicit knowledge-base path. Empty means
	// resolve the standard name through the meta root layers.
	KnowledgeFile string `yaml:"knowledge_file"`

	// RecipePath is where successful sessions export their recipe.
	RecipePath string `yaml:"recipe_path"`

	// ReportPath is where per-node diagnostic reports land.
	ReportPath string `yaml:"report_path"`

	// DatabasePath is the session history database.
	DatabasePath string `yaml:"database_path"`
}

// InstallerConfig configures the external installer subprocess.
type InstallerConfig struct {
	Binary              string `yaml:"binary"`
	Python              string `yaml:"python"`
	SystemSite          bool   `yaml:"system_site"`
	InstallTimeout      string `yaml:"install_timeout"`
	ProbeTimeout        string `yaml:"probe_timeout"`
	MaxOutputBytes      int64  `yaml:"max_output_bytes"`
	ConcurrentDownloads int    `yaml:"concurrent_downloads"`
	LinkMode            string `yaml:"link_mode"`
}

// TelemetryConfig configures the collector transport.
type TelemetryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is
// present: resolve the working directory's custom_nodes through uv
// into the system interpreter, telemetry on.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			NodesRoot:    "custom_nodes",
			MetaRoot:     filepath.Join("config", "takumi_meta"),
			RecipePath:   "takumi_recipe.json",
			ReportPath:   filepath.Join("logs", "resolver_report.json"),
			DatabasePath: filepath.Join("data", "takumi.db"),
		},
		Installer: InstallerConfig{
			Binary:              "uv",
			SystemSite:          true,
			InstallTimeout:      "15m",
			ProbeTimeout:        "60s",
			MaxOutputBytes:      10 * 1024 * 1024,
			ConcurrentDownloads: 4,
			LinkMode:            "copy",
		},
		Telemetry: TelemetryConfig{
			Enabled:   true,
			Endpoint:  "https://h9qf4nsc0i.execute-api.ap-northeast-1.amazonaws.com/logs",
			Timeout:   "15s",
			UserAgent: "Takumi-Installer/2.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file, starting from the
// defaults. A missing file is not an error; a malformed one is. A
// .env file in the working directory is loaded first, and TAKUMI_*
// environment variables are applied last so they win over everything.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TAKUMI_NODES_ROOT"); v != "" {
		c.Paths.NodesRoot = v
	}
	if v := os.Getenv("TAKUMI_META_ROOT"); v != "" {
		c.Paths.MetaRoot = v
	}
	if v := os.Getenv("TAKUMI_KNOWLEDGE"); v != "" {
		c.Paths.KnowledgeFile = v
	}
	if v := os.Getenv("TAKUMI_RECIPE"); v != "" {
		c.Paths.RecipePath = v
	}
	if v := os.Getenv("TAKUMI_DB"); v != "" {
		c.Paths.DatabasePath = v
	}
	if v := os.Getenv("TAKUMI_TELEMETRY_URL"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if os.Getenv("TAKUMI_TELEMETRY_DISABLED") == "1" {
		c.Telemetry.Enabled = false
	}
}

// GetInstallTimeout parses the install timeout, falling back to the
// default on garbage. "0" is valid and disables the deadline.
func (c *Config) GetInstallTimeout() time.Duration {
	d, err := time.ParseDuration(c.Installer.InstallTimeout)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// GetProbeTimeout parses the probe timeout with a 60s fallback.
func (c *Config) GetProbeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Installer.ProbeTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetTelemetryTimeout parses the collector timeout with a 15s
// fallback.
func (c *Config) GetTelemetryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Telemetry.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}
