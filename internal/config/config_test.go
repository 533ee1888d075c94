package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledgerd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-ledger
api:
  rest_url: https://example.test/api/v2
database:
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
tracking:
  scope_mode: datacenter
  selected: [Chaos]
  item_ids: [5057, 5114]
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-ledger" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-ledger")
	}
	if cfg.API.RestURL != "https://example.test/api/v2" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://example.test/api/v2")
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
	if cfg.Tracking.ScopeMode != "datacenter" {
		t.Errorf("Tracking.ScopeMode = %q, want %q", cfg.Tracking.ScopeMode, "datacenter")
	}
	if len(cfg.Tracking.ItemIDs) != 2 || cfg.Tracking.ItemIDs[0] != 5057 {
		t.Errorf("Tracking.ItemIDs = %v, want [5057 5114]", cfg.Tracking.ItemIDs)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-ledger
database:
  host: localhost
  name: test_db
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-ledger
database:
  host: localhost
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.Sampler.Interval != DefaultSampleInterval {
		t.Errorf("Sampler.Interval = %v, want default %v", cfg.Sampler.Interval, DefaultSampleInterval)
	}
	if cfg.Retention.Policy != DefaultRetentionPolicy {
		t.Errorf("Retention.Policy = %q, want default %q", cfg.Retention.Policy, DefaultRetentionPolicy)
	}
	if cfg.Refresher.ChunkSize != DefaultChunkSize {
		t.Errorf("Refresher.ChunkSize = %d, want default %d", cfg.Refresher.ChunkSize, DefaultChunkSize)
	}
	if cfg.Status.Port != DefaultStatusPort {
		t.Errorf("Status.Port = %d, want default %d", cfg.Status.Port, DefaultStatusPort)
	}
}

func TestLoadEnforcesSampleIntervalFloor(t *testing.T) {
	yaml := `
instance:
  id: test-ledger
database:
  host: localhost
  name: test_db
  user: testuser
  password: testpass
sampler:
  interval: 1s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sampler.Interval != MinSampleInterval {
		t.Errorf("Sampler.Interval = %v, want floor %v", cfg.Sampler.Interval, MinSampleInterval)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Instance: InstanceConfig{ID: "test"},
			Database: DBConfig{
				Host:     "localhost",
				Name:     "db",
				User:     "u",
				Password: "p",
			},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database.host is required",
		},
		{
			name:    "unknown retention policy",
			mutate:  func(c *Config) { c.Retention.Policy = "weekly" },
			wantErr: "retention.policy",
		},
		{
			name: "size policy without max_bytes",
			mutate: func(c *Config) {
				c.Retention.Policy = "size"
				c.Retention.MaxBytes = 0
			},
			wantErr: "retention.max_bytes",
		},
		{
			name:    "unknown scope mode",
			mutate:  func(c *Config) { c.Tracking.ScopeMode = "galaxy" },
			wantErr: "tracking.scope_mode",
		},
		{
			name: "backoff base exceeds max",
			mutate: func(c *Config) {
				c.Feed.ReconnectBaseDelay = 2 * time.Minute
			},
			wantErr: "feed.reconnect_base_delay",
		},
		{
			name:    "unknown blend mode",
			mutate:  func(c *Config) { c.Valuation.BlendMode = "mode" },
			wantErr: "valuation.blend_mode",
		},
		{
			name:    "unknown outlier mode",
			mutate:  func(c *Config) { c.Valuation.OutlierMode = "iqr" },
			wantErr: "valuation.outlier_mode",
		},
		{
			name:    "status port out of range",
			mutate:  func(c *Config) { c.Status.Port = 70000 },
			wantErr: "status.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
