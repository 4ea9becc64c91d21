package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	TimerGraceSeconds     int    `env:"TIMER_GRACE_SECONDS" envDefault:"30"`
	TimerSweepIntervalSec int    `env:"TIMER_SWEEP_INTERVAL_SECONDS" envDefault:"60"`
}

func (c *Config) TimerGrace() time.Duration {
	return time.Duration(c.TimerGraceSeconds) * time.Second
}

func (c *Config) TimerSweepInterval() time.Duration {
	return time.Duration(c.TimerSweepIntervalSec) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.TimerGraceSeconds < 0 {
		return fmt.Errorf("TIMER_GRACE_SECONDS must not be negative")
	}
	if c.TimerSweepIntervalSec <= 0 {
		return fmt.Errorf("TIMER_SWEEP_INTERVAL_SECONDS must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
