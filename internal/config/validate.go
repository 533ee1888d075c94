package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	switch c.Retention.Policy {
	case "age":
		if c.Retention.MaxAge <= 0 {
			return errors.New("retention.max_age must be positive")
		}
	case "size":
		if c.Retention.MaxBytes < 1 {
			return errors.New("retention.max_bytes must be >= 1 for size policy")
		}
	default:
		return fmt.Errorf("retention.policy must be \"age\" or \"size\", got %q", c.Retention.Policy)
	}

	switch c.Tracking.ScopeMode {
	case "world", "datacenter", "region":
	default:
		return fmt.Errorf("tracking.scope_mode must be \"world\", \"datacenter\", or \"region\", got %q", c.Tracking.ScopeMode)
	}

	if c.Feed.ReconnectBaseDelay > c.Feed.ReconnectMaxDelay {
		return errors.New("feed.reconnect_base_delay cannot exceed feed.reconnect_max_delay")
	}
	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}

	if c.Refresher.Concurrency < 1 {
		return errors.New("refresher.concurrency must be >= 1")
	}
	if c.Refresher.ChunkSize < 1 {
		return errors.New("refresher.chunk_size must be >= 1")
	}

	switch c.Valuation.BlendMode {
	case "average", "median":
	default:
		return fmt.Errorf("valuation.blend_mode must be \"average\" or \"median\", got %q", c.Valuation.BlendMode)
	}
	switch c.Valuation.OutlierMode {
	case "percent", "stddev":
	default:
		return fmt.Errorf("valuation.outlier_mode must be \"percent\" or \"stddev\", got %q", c.Valuation.OutlierMode)
	}
	if c.Valuation.OutlierPercent < 0 {
		return errors.New("valuation.outlier_percent must be >= 0")
	}
	if c.Valuation.WorkerCount < 1 {
		return errors.New("valuation.worker_count must be >= 1")
	}

	if c.Status.Port < 1 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 1 and 65535, got %d", c.Status.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
