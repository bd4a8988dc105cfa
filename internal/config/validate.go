package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateAutomation(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Callback.Timeout <= 0 {
		return errors.New("callback.timeout must be positive")
	}
	if c.Workflow.ErrorBackoff < 0 {
		return errors.New("workflow.error_backoff must be non-negative")
	}
	if c.Workflow.WorkspaceMaxAgeHrs < 0 {
		return errors.New("workflow.workspace_max_age_hours must be non-negative")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkspaceRoot == "" {
		return errors.New("paths.workspace_root must be set")
	}
	if c.Paths.SharedOutputDir == "" {
		return errors.New("paths.shared_output_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.SharedOutputDir == c.Paths.WorkspaceRoot {
		return errors.New("paths.shared_output_dir must differ from paths.workspace_root")
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case "redis":
		if c.Queue.RedisAddr == "" {
			return errors.New("queue.redis_addr must be set when queue.backend is redis")
		}
	case "amqp":
		if c.Queue.AMQPURL == "" {
			return errors.New("queue.amqp_url must be set when queue.backend is amqp (or set STEMWORKER_AMQP_URL)")
		}
	default:
		return fmt.Errorf("queue.backend: unsupported value %q (want redis or amqp)", c.Queue.Backend)
	}
	if c.Queue.PollTimeout <= 0 {
		return errors.New("queue.poll_timeout must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.S3Endpoint == "" {
		return nil
	}
	if c.Storage.S3AccessKey == "" || c.Storage.S3SecretKey == "" {
		return errors.New("storage.s3_access_key and storage.s3_secret_key must be set when storage.s3_endpoint is configured")
	}
	return nil
}

func (c *Config) validateAutomation() error {
	if c.Automation.Timeout <= 0 {
		return errors.New("automation.timeout must be positive")
	}
	if c.Automation.SettleBefore < 0 || c.Automation.SettleAfter < 0 {
		return errors.New("automation settle times must be non-negative")
	}
	return nil
}

func (c *Config) validateValidation() error {
	if !strings.HasSuffix(strings.ToLower(c.Validation.MixSuffix), c.Validation.AudioExtension) {
		return fmt.Errorf("validation.mix_suffix %q must end with validation.audio_extension %q", c.Validation.MixSuffix, c.Validation.AudioExtension)
	}
	switch c.Validation.Probe {
	case "native", "ffprobe":
	default:
		return fmt.Errorf("validation.probe: unsupported value %q (want native or ffprobe)", c.Validation.Probe)
	}
	if c.Validation.PrefixFrames <= 0 {
		return errors.New("validation.prefix_frames must be positive")
	}
	return nil
}

func (c *Config) validateTracker() error {
	switch c.Tracker.Backend {
	case "memory", "sqlite":
		return nil
	default:
		return fmt.Errorf("tracker.backend: unsupported value %q (want memory or sqlite)", c.Tracker.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}
