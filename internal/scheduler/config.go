package scheduler

import (
	"time"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval     time.Duration
	ExpireBatchSize int
	// PayoutInterval is the minimum gap between settlement runs; the
	// expiry sweep still runs every tick.
	PayoutInterval time.Duration
	EnabledJobs    []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Minute,
		ExpireBatchSize: 500,
		PayoutInterval:  24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ExpireBatchSize <= 0 {
		c.ExpireBatchSize = defaults.ExpireBatchSize
	}
	if c.PayoutInterval <= 0 {
		c.PayoutInterval = defaults.PayoutInterval
	}
	return c
}

func ProvideConfig() Config {
	return DefaultConfig()
}
