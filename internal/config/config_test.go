package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test_config.toml")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err, "failed to write temp config file")
	return tmpFile
}

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		t.Setenv(key, value)
	}
}

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data/scheduler.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Solver.MaxPerPerson)
	assert.False(t, cfg.Solver.DeltaScaledCap)
	assert.Equal(t, 30*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, ":8080", cfg.HTTP.ListenAddr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	tomlContent := `
[database]
path = "data/custom.db"

[solver]
max_per_person = 5
delta_scaled_cap = true
timeout = "45s"

[http]
listen_addr = ":9090"

[log]
level = "debug"
development = true
`
	configFile := createTempConfigFile(t, tomlContent)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "data/custom.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Solver.MaxPerPerson)
	assert.True(t, cfg.Solver.DeltaScaledCap)
	assert.Equal(t, 45*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	tomlContent := `
[solver]
max_per_person = 5

[http]
listen_addr = ":9090"
`
	configFile := createTempConfigFile(t, tomlContent)
	setEnvVars(t, map[string]string{
		"SCHED_MAX_PER_PERSON":  "3",
		"SCHED_HTTP_LISTEN_ADDR": ":7070",
	})

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Solver.MaxPerPerson, "env var should win over file")
	assert.Equal(t, ":7070", cfg.HTTP.ListenAddr, "env var should win over file")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name        string
		tomlContent string
		expectedErr string
	}{
		{
			name:        "zero max per person",
			tomlContent: "[solver]\nmax_per_person = 0\n",
			expectedErr: "solver.max_per_person must be positive",
		},
		{
			name:        "negative timeout",
			tomlContent: "[solver]\ntimeout = \"-1s\"\n",
			expectedErr: "solver.timeout must be positive",
		},
		{
			name:        "empty listen address",
			tomlContent: "[http]\nlisten_addr = \"\"\n",
			expectedErr: "http.listen_addr is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			configFile := createTempConfigFile(t, tc.tomlContent)
			_, err := Load(configFile)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
}
