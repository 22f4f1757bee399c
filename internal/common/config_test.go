package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/traffic")

	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:5000", cfg.Analysis.BaseURL)
	assert.Equal(t, "union", cfg.Analysis.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Analysis.Timeout)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxUploadBytes)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/traffic")
	t.Setenv("ANALYSIS_TIMEOUT", "30s")
	t.Setenv("ANALYSIS_MODE", "intersection")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	cfg := LoadConfig()

	assert.Equal(t, 30*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, "intersection", cfg.Analysis.Mode)
	assert.Equal(t, int64(1<<20), cfg.Upload.MaxUploadBytes)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}, wantErr: false},
		{name: "missing DSN", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: true},
		{name: "missing analysis url", mutate: func(c *Config) { c.Analysis.BaseURL = "" }, wantErr: true},
		{name: "bad ensemble mode", mutate: func(c *Config) { c.Analysis.Mode = "majority" }, wantErr: true},
		{name: "missing addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_URL", "postgres://localhost/traffic")
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
