package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 10, cfg.ContextWindow)
	assert.Equal(t, time.Second, cfg.ReplyDelayMin)
	assert.Equal(t, 4*time.Second, cfg.ReplyDelayMax)
	assert.Equal(t, 60*time.Second, cfg.GenerationTimeout)
	assert.Zero(t, cfg.GenerationRetries)
	assert.Zero(t, cfg.MaxConcurrentGenerations)
	assert.Equal(t, int64(1000), cfg.ReplyMaxTokens)
	assert.InDelta(t, 0.7, cfg.ReplyTemperature, 1e-9)
	assert.Equal(t, BackendSQLite, cfg.ResolvedStoreBackend())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/teamroom")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.0/8 , 127.0.0.1,,")
	t.Setenv("REPLY_DELAY_MIN", "200ms")
	t.Setenv("REPLY_DELAY_MAX", "300ms")
	t.Setenv("GENERATION_RETRIES", "2")
	t.Setenv("STORE_BACKEND", "AUTO")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.RateLimitWhitelist)
	assert.Equal(t, 200*time.Millisecond, cfg.ReplyDelayMin)
	assert.Equal(t, 2, cfg.GenerationRetries)
	assert.Equal(t, BackendPostgres, cfg.ResolvedStoreBackend())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"inverted delays", map[string]string{"REPLY_DELAY_MIN": "5s", "REPLY_DELAY_MAX": "1s"}},
		{"zero window", map[string]string{"CONTEXT_WINDOW": "0"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}},
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}},
		{"production without redis", map[string]string{"ENV": "production", "DATABASE_URL": "postgres://x"}},
		{"bad duration", map[string]string{"GENERATION_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
