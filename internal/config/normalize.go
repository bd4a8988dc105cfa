package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeStorage()
	if err := c.normalizeAutomation(); err != nil {
		return err
	}
	c.normalizeValidation()
	c.normalizeEvents()
	c.normalizeLogging()
	c.Tracker.Backend = strings.ToLower(strings.TrimSpace(c.Tracker.Backend))
	if c.Tracker.Backend == "" {
		c.Tracker.Backend = defaultTrackerBackend
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	if c.Paths.SharedOutputDir, err = expandPath(c.Paths.SharedOutputDir); err != nil {
		return fmt.Errorf("paths.shared_output_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" && c.Paths.StateDir != "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("STEMWORKER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = defaultQueueBackend
	}
	c.Queue.Key = strings.TrimSpace(c.Queue.Key)
	if c.Queue.Key == "" {
		c.Queue.Key = defaultQueueKey
	}
	c.Queue.RedisAddr = strings.TrimSpace(c.Queue.RedisAddr)
	if c.Queue.RedisPassword == "" {
		if value, ok := os.LookupEnv("STEMWORKER_REDIS_PASSWORD"); ok {
			c.Queue.RedisPassword = value
		}
	}
	c.Queue.AMQPURL = strings.TrimSpace(c.Queue.AMQPURL)
	if c.Queue.AMQPURL == "" {
		if value, ok := os.LookupEnv("STEMWORKER_AMQP_URL"); ok {
			c.Queue.AMQPURL = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.S3Endpoint = strings.TrimSpace(c.Storage.S3Endpoint)
	if c.Storage.S3AccessKey == "" {
		if value, ok := os.LookupEnv("STEMWORKER_S3_ACCESS_KEY"); ok {
			c.Storage.S3AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Storage.S3SecretKey == "" {
		if value, ok := os.LookupEnv("STEMWORKER_S3_SECRET_KEY"); ok {
			c.Storage.S3SecretKey = strings.TrimSpace(value)
		}
	}
	c.Storage.GsutilPath = strings.TrimSpace(c.Storage.GsutilPath)
	if c.Storage.GsutilPath == "" {
		c.Storage.GsutilPath = defaultGsutilPath
	}
}

func (c *Config) normalizeAutomation() error {
	c.Automation.Command = strings.TrimSpace(c.Automation.Command)
	if c.Automation.Command != "" && strings.HasPrefix(c.Automation.Command, "~") {
		expanded, err := expandPath(c.Automation.Command)
		if err != nil {
			return fmt.Errorf("automation.command: %w", err)
		}
		c.Automation.Command = expanded
	}
	if strings.TrimSpace(c.Automation.LockPath) == "" {
		c.Automation.LockPath = filepath.Join(c.Paths.StateDir, "automation.lock")
	}
	var err error
	if c.Automation.LockPath, err = expandPath(c.Automation.LockPath); err != nil {
		return fmt.Errorf("automation.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeValidation() {
	c.Validation.MixSuffix = strings.TrimSpace(c.Validation.MixSuffix)
	if c.Validation.MixSuffix == "" {
		c.Validation.MixSuffix = defaultMixSuffix
	}
	c.Validation.AudioExtension = strings.ToLower(strings.TrimSpace(c.Validation.AudioExtension))
	if c.Validation.AudioExtension == "" {
		c.Validation.AudioExtension = defaultAudioExtension
	}
	if !strings.HasPrefix(c.Validation.AudioExtension, ".") {
		c.Validation.AudioExtension = "." + c.Validation.AudioExtension
	}
	c.Validation.Probe = strings.ToLower(strings.TrimSpace(c.Validation.Probe))
	if c.Validation.Probe == "" {
		c.Validation.Probe = defaultProbe
	}
	c.Validation.FFprobeBinary = strings.TrimSpace(c.Validation.FFprobeBinary)
	if c.Validation.FFprobeBinary == "" {
		c.Validation.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeEvents() {
	c.Events.NATSURL = strings.TrimSpace(c.Events.NATSURL)
	c.Events.SubjectPrefix = strings.Trim(strings.TrimSpace(c.Events.SubjectPrefix), ".")
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = defaultSubjectPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
