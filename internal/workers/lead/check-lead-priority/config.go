package checkleadpriority

import (
	"fmt"
	"time"

	"lead-intake-workers/internal/models"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	Bands         models.PriorityBands
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 10,
		Timeout:       5 * time.Second,
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
	if c.Bands.LowMax < 0 || c.Bands.LowMax >= c.Bands.MediumMax {
		return fmt.Errorf("priority bands must satisfy 0 <= low_max < medium_max")
	}
	return nil
}
