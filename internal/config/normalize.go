package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRemote(); err != nil {
		return err
	}
	c.normalizeSession()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
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
		if value, ok := os.LookupEnv("FERRY_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeRemote() error {
	c.Remote.Backend = strings.ToLower(strings.TrimSpace(c.Remote.Backend))
	if c.Remote.Backend == "" {
		c.Remote.Backend = defaultRemoteBackend
	}

	c.Remote.Bucket = strings.TrimSpace(c.Remote.Bucket)
	if c.Remote.Bucket == "" {
		if value, ok := os.LookupEnv("FERRY_REMOTE_BUCKET"); ok {
			c.Remote.Bucket = strings.TrimSpace(value)
		}
	}

	c.Remote.Region = strings.TrimSpace(c.Remote.Region)
	if c.Remote.Region == "" && c.Remote.Backend == BackendS3 {
		if value, ok := os.LookupEnv("AWS_REGION"); ok {
			c.Remote.Region = strings.TrimSpace(value)
		}
	}

	c.Remote.Prefix = strings.Trim(strings.TrimSpace(c.Remote.Prefix), "/")
	c.Remote.Endpoint = strings.TrimRight(strings.TrimSpace(c.Remote.Endpoint), "/")

	var err error
	c.Remote.CredentialsFile = strings.TrimSpace(c.Remote.CredentialsFile)
	if c.Remote.CredentialsFile == "" && c.Remote.Backend == BackendGCS {
		if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok {
			c.Remote.CredentialsFile = strings.TrimSpace(value)
		}
	}
	if c.Remote.CredentialsFile != "" {
		if c.Remote.CredentialsFile, err = expandPath(c.Remote.CredentialsFile); err != nil {
			return fmt.Errorf("remote.credentials_file: %w", err)
		}
	}

	if strings.TrimSpace(c.Remote.LocalDir) == "" {
		c.Remote.LocalDir = defaultRemoteLocalDir
	}
	if c.Remote.LocalDir, err = expandPath(c.Remote.LocalDir); err != nil {
		return fmt.Errorf("remote.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSession() {
	c.Session.Identity = strings.TrimSpace(c.Session.Identity)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("FERRY_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
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
