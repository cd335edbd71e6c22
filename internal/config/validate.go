package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.PrimaryMaxBytes < 0 {
		return errors.New("storage.primary_max_bytes must be >= 0 (0 disables the budget)")
	}
	if c.Storage.CatalogBlobID == "" {
		return errors.New("storage.catalog_blob_id must be set")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.QueueSweepHours <= 0 {
		return errors.New("retention.queue_sweep_hours must be positive")
	}
	if c.Retention.HistoryPurgeDays <= 0 {
		return errors.New("retention.history_purge_days must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.MaxRetries < 0 {
		return errors.New("workflow.max_retries must be >= 0")
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
