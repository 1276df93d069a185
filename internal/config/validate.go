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
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if !strings.Contains(c.Paths.APIBind, ":") {
		return fmt.Errorf("paths.api_bind must be host:port, got %q", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxPersistMiB <= 0 {
		return errors.New("queue.max_persist_mib must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.Concurrency <= 0 {
		return errors.New("upload.concurrency must be positive")
	}
	if c.Upload.Concurrency > maxUploadConcurrency {
		return fmt.Errorf("upload.concurrency must be at most %d", maxUploadConcurrency)
	}
	if c.Upload.PersistIntervalMS < 0 {
		return errors.New("upload.persist_interval_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateProgress() error {
	if c.Progress.TickMS < minProgressTickMillis {
		return fmt.Errorf("progress.tick_ms must be at least %d", minProgressTickMillis)
	}
	if c.Progress.CompletionGraceMS < 0 {
		return errors.New("progress.completion_grace_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateRemote() error {
	switch c.Remote.Backend {
	case BackendLocal:
		if c.Remote.LocalDir == "" {
			return errors.New("remote.local_dir must be set when remote.backend is local")
		}
	case BackendS3:
		if c.Remote.Bucket == "" {
			return errors.New("remote.bucket must be set when remote.backend is s3. Set FERRY_REMOTE_BUCKET or edit the config file")
		}
		if c.Remote.Region == "" && c.Remote.Endpoint == "" {
			return errors.New("remote.region must be set when remote.backend is s3 and no endpoint is configured")
		}
	case BackendGCS:
		if c.Remote.Bucket == "" {
			return errors.New("remote.bucket must be set when remote.backend is gcs. Set FERRY_REMOTE_BUCKET or edit the config file")
		}
	default:
		return fmt.Errorf("remote.backend must be one of %q, %q, %q; got %q", BackendLocal, BackendS3, BackendGCS, c.Remote.Backend)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be zero or positive")
	}
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
