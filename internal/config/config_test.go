package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:        "8080",
		CORSOrigin:  "*",
		DataBackend: BackendMemory,
		JWTSecret:   "test-secret",
		JWTTTL:      24 * time.Hour,
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DataBackend != BackendMemory {
		t.Errorf("DataBackend = %q, want %q", cfg.DataBackend, BackendMemory)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("JWTTTL = %v, want 24h", cfg.JWTTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DATA_BACKEND", BackendSQLite)
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.DataBackend != BackendSQLite {
		t.Errorf("DataBackend = %q, want sqlite", cfg.DataBackend)
	}
	if cfg.JWTTTL != 30*time.Minute {
		t.Errorf("JWTTTL = %v, want 30m", cfg.JWTTTL)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("JWT_TTL", "not-a-duration")

	cfg := Load()
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("JWTTTL = %v, want 24h fallback", cfg.JWTTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid memory", func(c *Config) {}, ""},
		{
			"valid sqlite",
			func(c *Config) {
				c.DataBackend = BackendSQLite
				c.SQLiteDBPath = filepath.Join(t.TempDir(), "test.db")
			},
			"",
		},
		{
			"valid bigquery",
			func(c *Config) {
				c.DataBackend = BackendBigQuery
				c.BigQueryProjectID = "my-project"
				c.BigQueryDataset = "finance"
			},
			"",
		},
		{"non-numeric port", func(c *Config) { c.Port = "abc" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "must be between"},
		{"unknown backend", func(c *Config) { c.DataBackend = "redis" }, "invalid data backend"},
		{
			"sqlite without path",
			func(c *Config) {
				c.DataBackend = BackendSQLite
				c.SQLiteDBPath = ""
			},
			"SQLITE_DB_PATH",
		},
		{
			"bigquery without project",
			func(c *Config) {
				c.DataBackend = BackendBigQuery
				c.BigQueryDataset = "finance"
			},
			"BQ_PROJECT_ID",
		},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"non-positive ttl", func(c *Config) { c.JWTTTL = 0 }, "JWT_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
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
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{Port: "abc", DataBackend: "nope"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"invalid port", "invalid data backend", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}
