package ratelimit

import "fmt"

// Config represents rate limiter configuration
type Config struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
	Enabled           bool    `yaml:"enabled"`
}

// Validate fills defaults for an enabled limiter and rejects negative values
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("burst size must be positive, got %d", c.BurstSize)
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}
	if c.BurstSize == 0 {
		c.BurstSize = 1
	}
	return nil
}
