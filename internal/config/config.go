package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a ledgerd instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	API       APIConfig       `yaml:"api"`
	Database  DBConfig        `yaml:"database"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Retention RetentionConfig `yaml:"retention"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Feed      FeedConfig      `yaml:"feed"`
	Refresher RefresherConfig `yaml:"refresher"`
	Cache     CacheConfig     `yaml:"cache"`
	Valuation ValuationConfig `yaml:"valuation"`
	Status    StatusConfig    `yaml:"status"`
}

// InstanceConfig identifies this ledgerd instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds market backend API settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// DBConfig holds the Postgres connection for the time-series store.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SamplerConfig holds the state sampler settings.
type SamplerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Quiescence time.Duration `yaml:"quiescence"` // Max age before an unchanged value is re-appended
	StateFile  string        `yaml:"state_file"` // Roster snapshot written by the game-side exporter
}

// RetentionConfig holds the retention sweep policy.
type RetentionConfig struct {
	Policy        string        `yaml:"policy"` // "age" or "size"
	MaxAge        time.Duration `yaml:"max_age"`
	MaxBytes      int64         `yaml:"max_bytes"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TrackingConfig selects which markets and items are tracked.
type TrackingConfig struct {
	ScopeMode string   `yaml:"scope_mode"` // "world", "datacenter", or "region"
	Selected  []string `yaml:"selected"`   // Names at the selected level
	ItemIDs   []uint32 `yaml:"item_ids"`
}

// FeedConfig holds websocket feed settings.
type FeedConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	HealthyWindow      time.Duration `yaml:"healthy_window"` // Connected this long resets the backoff
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// RefresherConfig holds batch price refresh settings.
type RefresherConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	ChunkSize   int           `yaml:"chunk_size"` // Max item IDs per request
	MaxSales    int           `yaml:"max_sales"`  // Max sale-history entries per item
}

// CacheConfig holds price cache settings.
type CacheConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
}

// ValuationConfig holds valuation and outlier filter settings.
type ValuationConfig struct {
	HomeWorld        string  `yaml:"home_world"`   // World whose prices value inventories
	BlendMode        string  `yaml:"blend_mode"`   // "average" or "median"
	OutlierMode      string  `yaml:"outlier_mode"` // "percent" or "stddev"
	OutlierPercent   float64 `yaml:"outlier_percent"`
	OutlierStdDevs   float64 `yaml:"outlier_std_devs"`
	WorkerCount      int     `yaml:"worker_count"`
	IncludeRetainers bool    `yaml:"include_retainers"`
}

// StatusConfig holds the status/metrics HTTP server settings.
type StatusConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file, expands ${VAR} environment variables, and
// applies defaults. Call Validate on the result before use.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadAndValidate loads a config file and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
