package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "DB_PATH", "APP_ID", "SESSION_TTL", "JANITOR_INTERVAL", "DRAW_SEED", "LOG_FILE", "VERBOSE", "GIN_MODE"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./data/luckydraw.db", cfg.DBPath)
	assert.Equal(t, "lucky-draw", cfg.AppID)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.JanitorInterval)
	assert.Equal(t, int64(0), cfg.DrawSeed)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "release", cfg.GinMode)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("DRAW_SEED", "42")
	t.Setenv("VERBOSE", "true")

	cfg, err := Load([]string{"-p", "9100", "-db", ""})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port, "flag overrides env")
	assert.Equal(t, "", cfg.DBPath)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, int64(42), cfg.DrawSeed)
	assert.True(t, cfg.Verbose)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad port env", env: map[string]string{"PORT": "abc"}},
		{name: "port out of range", args: []string{"-p", "70000"}},
		{name: "bad ttl", env: map[string]string{"SESSION_TTL": "soon"}},
		{name: "negative janitor", args: []string{"-janitor-interval", "-1s"}},
		{name: "bad gin mode", args: []string{"-gin-mode", "loud"}},
		{name: "empty app id", args: []string{"-app-id", ""}},
		{name: "unknown flag", args: []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}
