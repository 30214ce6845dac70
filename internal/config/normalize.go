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
	c.normalizeMakeMKV()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeBot()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.LogDir, "ripcordd.sock")
	} else if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMakeMKV() {
	if c.MakeMKV.RipTimeout <= 0 {
		c.MakeMKV.RipTimeout = defaultRipTimeout
	}
	if c.MakeMKV.InfoTimeout <= 0 {
		c.MakeMKV.InfoTimeout = defaultInfoTimeout
	}
	if c.MakeMKV.MinTitleSeconds < 0 {
		c.MakeMKV.MinTitleSeconds = defaultMinTitleSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ReserveRetryInterval <= 0 {
		c.Workflow.ReserveRetryInterval = defaultReserveRetryInterval
	}
	c.Workflow.DriveRescanCron = strings.TrimSpace(c.Workflow.DriveRescanCron)
	if c.Workflow.DriveRescanCron == "" {
		c.Workflow.DriveRescanCron = defaultDriveRescanCron
	}
	c.Workflow.LogRetentionCron = strings.TrimSpace(c.Workflow.LogRetentionCron)
	if c.Workflow.LogRetentionCron == "" {
		c.Workflow.LogRetentionCron = defaultLogRetentionCron
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeBot() {
	if c.Bot.Token == "" {
		if value, ok := os.LookupEnv("RIPCORD_BOT_TOKEN"); ok {
			c.Bot.Token = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("DISCORD_TOKEN"); ok {
			c.Bot.Token = strings.TrimSpace(value)
		}
	}
	if c.Bot.GuildID == "" {
		if value, ok := os.LookupEnv("RIPCORD_GUILD_ID"); ok {
			c.Bot.GuildID = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GUILD_ID"); ok {
			c.Bot.GuildID = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
