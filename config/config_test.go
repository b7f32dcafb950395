package config

import (
	"os"
	"path/filepath"
	"rodeo/meta"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, meta.POLL_INTERVAL, cfg.PollInterval)
		require.Equal(t, meta.MAX_ROUND_BUDGET_PCT, cfg.MaxRoundBudgetPct)
	})

	t.Run("yaml file over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rodeo.yaml")
		doc := `
servers:
  staging: https://staging.local
server: staging
poll_interval: 3s
monitor_interval: 1s
max_round_budget_pct: 0.5
data_dir: /tmp/rodeo
ledger:
  driver: none
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 3*time.Second, cfg.PollInterval)
		require.Equal(t, time.Second, cfg.MonitorDelay())
		require.Equal(t, 0.5, cfg.MaxRoundBudgetPct)
		require.Equal(t, "none", cfg.Ledger.Driver)
		require.Equal(t, filepath.Join("/tmp/rodeo", "token"), cfg.TokenFile)

		u, err := cfg.ServerURL("")
		require.NoError(t, err)
		require.Equal(t, "https://staging.local", u)
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rodeo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_round_budget_pct: 2\n"), 0o644))
		_, err := Load(path)
		require.ErrorContains(t, err, "max_round_budget_pct")

		_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	err := cfg.ApplyEnv(env(map[string]string{
		"RODEO_SERVER_URL":    "http://127.0.0.1:9000",
		"RODEO_TOKEN":         " abc ",
		"RODEO_LEDGER_DRIVER": "Postgres",
		"RODEO_LEDGER_DSN":    "postgres://localhost/rodeo",
		"RODEO_POLL_INTERVAL": "7s",
		"RODEO_DATA_DIR":      "",
	}))
	require.NoError(t, err)
	cfg.Normalize()
	require.NoError(t, cfg.Validate())

	require.Equal(t, "abc", cfg.Token)
	require.Equal(t, "postgres", cfg.Ledger.Driver)
	require.Equal(t, 7*time.Second, cfg.PollInterval)
	require.Equal(t, meta.DATA_DIR, cfg.DataDir, "Empty variables are ignored")
	u, err := cfg.ServerURL("")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9000", u)

	_, err = cfg.ServerURL("nowhere")
	require.Error(t, err)

	require.Error(t, cfg.ApplyEnv(env(map[string]string{"RODEO_POLL_INTERVAL": "soon"})))
}

func TestMonitorDelayNeverExceedsPoll(t *testing.T) {
	cfg := Defaults()
	cfg.PollInterval = time.Second
	cfg.MonitorInterval = 2 * time.Second
	require.Equal(t, time.Second, cfg.MonitorDelay())
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("RODEO_TEST_ONLY_VALUE=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RODEO_TEST_ONLY_VALUE") })

	require.NoError(t, LoadEnvFiles(path, filepath.Join(dir, "missing.env")))
	require.Equal(t, "from-file", os.Getenv("RODEO_TEST_ONLY_VALUE"))
}
