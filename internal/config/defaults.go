package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "https://universalis.app/api/v2"
	DefaultWSURL              = "wss://universalis.app/api/ws"
	DefaultUserAgent          = "marketledger"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultSampleInterval     = 30 * time.Second
	MinSampleInterval         = 5 * time.Second // Enforced floor against write amplification
	DefaultQuiescence         = 30 * time.Minute
	DefaultRetentionPolicy    = "age"
	DefaultMaxAge             = 90 * 24 * time.Hour
	DefaultSweepInterval      = 1 * time.Hour
	DefaultScopeMode          = "world"
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultHealthyWindow      = 5 * time.Minute
	DefaultPingTimeout        = 60 * time.Second
	DefaultFeedBufferSize     = 10000
	DefaultRefreshInterval    = 15 * time.Minute
	DefaultRefreshConcurrency = 8
	DefaultRefreshTimeout     = 10 * time.Second
	DefaultChunkSize          = 100
	DefaultMaxSales           = 5
	DefaultStaleAfter         = 10 * time.Minute
	DefaultBlendMode          = "average"
	DefaultOutlierMode        = "percent"
	DefaultOutlierPercent     = 50.0
	DefaultOutlierStdDevs     = 2.0
	DefaultWorkerCount        = 4
	DefaultStatusPort         = 9090
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = DefaultUserAgent
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Sampler defaults
	if c.Sampler.Interval == 0 {
		c.Sampler.Interval = DefaultSampleInterval
	}
	if c.Sampler.Interval < MinSampleInterval {
		c.Sampler.Interval = MinSampleInterval
	}
	if c.Sampler.Quiescence == 0 {
		c.Sampler.Quiescence = DefaultQuiescence
	}

	// Retention defaults
	if c.Retention.Policy == "" {
		c.Retention.Policy = DefaultRetentionPolicy
	}
	if c.Retention.MaxAge == 0 {
		c.Retention.MaxAge = DefaultMaxAge
	}
	if c.Retention.SweepInterval == 0 {
		c.Retention.SweepInterval = DefaultSweepInterval
	}

	// Tracking defaults
	if c.Tracking.ScopeMode == "" {
		c.Tracking.ScopeMode = DefaultScopeMode
	}

	// Feed defaults
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.HealthyWindow == 0 {
		c.Feed.HealthyWindow = DefaultHealthyWindow
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}

	// Refresher defaults
	if c.Refresher.Interval == 0 {
		c.Refresher.Interval = DefaultRefreshInterval
	}
	if c.Refresher.Concurrency == 0 {
		c.Refresher.Concurrency = DefaultRefreshConcurrency
	}
	if c.Refresher.Timeout == 0 {
		c.Refresher.Timeout = DefaultRefreshTimeout
	}
	if c.Refresher.ChunkSize == 0 {
		c.Refresher.ChunkSize = DefaultChunkSize
	}
	if c.Refresher.MaxSales == 0 {
		c.Refresher.MaxSales = DefaultMaxSales
	}

	// Cache defaults
	if c.Cache.StaleAfter == 0 {
		c.Cache.StaleAfter = DefaultStaleAfter
	}

	// Valuation defaults
	if c.Valuation.BlendMode == "" {
		c.Valuation.BlendMode = DefaultBlendMode
	}
	if c.Valuation.OutlierMode == "" {
		c.Valuation.OutlierMode = DefaultOutlierMode
	}
	if c.Valuation.OutlierPercent == 0 {
		c.Valuation.OutlierPercent = DefaultOutlierPercent
	}
	if c.Valuation.OutlierStdDevs == 0 {
		c.Valuation.OutlierStdDevs = DefaultOutlierStdDevs
	}
	if c.Valuation.WorkerCount == 0 {
		c.Valuation.WorkerCount = DefaultWorkerCount
	}

	// Status defaults
	if c.Status.Port == 0 {
		c.Status.Port = DefaultStatusPort
	}
}
