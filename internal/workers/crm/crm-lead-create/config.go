package crmleadcreate

import (
	"fmt"
	"time"

	"lead-intake-workers/internal/models"
)

type Config struct {
	Enabled        bool
	MaxJobsActive  int
	Timeout        time.Duration
	DefaultStageID int64
	Bands          models.PriorityBands
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		Bands:         models.DefaultPriorityBands,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.DefaultStageID < 0 {
		return fmt.Errorf("default_stage_id must not be negative")
	}
	return nil
}
