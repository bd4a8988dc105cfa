package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkspaceRoot   string `toml:"workspace_root"`
	SharedOutputDir string `toml:"shared_output_dir"`
	StateDir        string `toml:"state_dir"`
	LogDir          string `toml:"log_dir"`
	APIBind         string `toml:"api_bind"`
	APIToken        string `toml:"api_token"`
}

// Queue selects and configures the durable job queue.
type Queue struct {
	Backend       string `toml:"backend"`
	Key           string `toml:"key"`
	PollTimeout   int    `toml:"poll_timeout"`
	RedisAddr     string `toml:"redis_addr"`
	RedisDB       int    `toml:"redis_db"`
	RedisPassword string `toml:"redis_password"`
	AMQPURL       string `toml:"amqp_url"`
}

// Storage contains remote storage credentials and tool locations.
type Storage struct {
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3Region    string `toml:"s3_region"`
	S3Secure    bool   `toml:"s3_secure"`
	GsutilPath  string `toml:"gsutil_path"`
}

// Automation configures the external stem-splitting command.
type Automation struct {
	Command      string   `toml:"command"`
	Args         []string `toml:"args"`
	Timeout      int      `toml:"timeout"`
	SettleBefore int      `toml:"settle_before"`
	SettleAfter  int      `toml:"settle_after"`
	LockPath     string   `toml:"lock_path"`
}

// Validation controls how source folders and mix files are judged.
type Validation struct {
	MixSuffix      string `toml:"mix_suffix"`
	AudioExtension string `toml:"audio_extension"`
	Probe          string `toml:"probe"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	PrefixFrames   int    `toml:"prefix_frames"`
}

// Tracker selects the job state store.
type Tracker struct {
	Backend string `toml:"backend"`
}

// Callback configures terminal notifications.
type Callback struct {
	Timeout int `toml:"timeout"`
}

// Events configures optional lifecycle publication over NATS.
type Events struct {
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Workflow contains configuration for dispatcher timing.
type Workflow struct {
	ErrorBackoff       int `toml:"error_backoff"`
	WorkspaceMaxAgeHrs int `toml:"workspace_max_age_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for stemworker.
//
// Configuration sections by subsystem:
//   - Paths: workspace, shared output, state and log directories plus API bind
//   - Queue: durable queue backend (redis or amqp)
//   - Storage: s3 credentials and gsutil location
//   - Automation: external stem-splitting command, dwell times and lock
//   - Validation: mix naming convention and WAV integrity probe
//   - Tracker: job state backend (memory or sqlite)
//   - Callback: terminal notification delivery
//   - Events: NATS lifecycle publication
//   - Workflow: dispatcher back-off and stale workspace sweep
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Queue      Queue      `toml:"queue"`
	Storage    Storage    `toml:"storage"`
	Automation Automation `toml:"automation"`
	Validation Validation `toml:"validation"`
	Tracker    Tracker    `toml:"tracker"`
	Callback   Callback   `toml:"callback"`
	Events     Events     `toml:"events"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is
// loaded first so credential fallbacks can read it.
func Load(path string) (*Config, string, bool, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stemworker.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceRoot, c.Paths.SharedOutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TrackerDBPath returns the sqlite database location for the persistent tracker.
func (c *Config) TrackerDBPath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// DaemonLockPath returns the single-instance lock file location.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.StateDir, "stemworker.lock")
}

// PollTimeout returns the bounded queue wait.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Queue.PollTimeout) * time.Second
}

// ErrorBackoff returns the pause applied after a queue failure.
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Workflow.ErrorBackoff) * time.Second
}

// WorkspaceMaxAge returns the age beyond which leftover workspaces are swept.
func (c *Config) WorkspaceMaxAge() time.Duration {
	return time.Duration(c.Workflow.WorkspaceMaxAgeHrs) * time.Hour
}

// AutomationTimeout returns the hard limit for one automation invocation.
func (c *Config) AutomationTimeout() time.Duration {
	return time.Duration(c.Automation.Timeout) * time.Second
}

// CallbackTimeout returns the HTTP timeout for callback delivery.
func (c *Config) CallbackTimeout() time.Duration {
	return time.Duration(c.Callback.Timeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
