package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.validateSchedules(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTimings() error {
	return ensurePositiveMap(map[string]int{
		"makemkv.rip_timeout":             c.MakeMKV.RipTimeout,
		"makemkv.info_timeout":            c.MakeMKV.InfoTimeout,
		"workflow.queue_poll_interval":    c.Workflow.QueuePollInterval,
		"workflow.reserve_retry_interval": c.Workflow.ReserveRetryInterval,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateSchedules() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Workflow.DriveRescanCron); err != nil {
		return fmt.Errorf("workflow.drive_rescan_cron: %w", err)
	}
	if _, err := parser.Parse(c.Workflow.LogRetentionCron); err != nil {
		return fmt.Errorf("workflow.log_retention_cron: %w", err)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
