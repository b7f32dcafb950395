// Package config loads the daemon configuration from a yaml file, a .env file and the
// process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"rodeo/meta"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Servers map[string]string `yaml:"servers"`
	Server  string            `yaml:"server"`

	Token     string `yaml:"token,omitempty"`
	TokenFile string `yaml:"token_file,omitempty"`

	PollInterval      time.Duration `yaml:"poll_interval"`
	MonitorInterval   time.Duration `yaml:"monitor_interval"`
	AuthRetryDelay    time.Duration `yaml:"auth_retry_delay"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	MaxRoundBudgetPct float64       `yaml:"max_round_budget_pct"`

	DataDir string       `yaml:"data_dir"`
	Ledger  LedgerConfig `yaml:"ledger"`
	Notify  NotifyConfig `yaml:"notify"`
}

type LedgerConfig struct {
	// Driver is sqlite, postgres or none
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

type NotifyConfig struct {
	WebsocketURL string `yaml:"websocket_url,omitempty"`
}

// envServer is the server name RODEO_SERVER_URL registers under
const envServer = "env"

func Defaults() Config {
	return Config{
		Servers:           map[string]string{meta.DEFAULT_SERVER: meta.DEFAULT_SERVER_URL},
		Server:            meta.DEFAULT_SERVER,
		PollInterval:      meta.POLL_INTERVAL,
		MonitorInterval:   meta.MONITOR_INTERVAL,
		AuthRetryDelay:    meta.AUTH_RETRY_DELAY,
		HTTPTimeout:       meta.HTTP_TIMEOUT,
		MaxRoundBudgetPct: meta.MAX_ROUND_BUDGET_PCT,
		DataDir:           meta.DATA_DIR,
		Ledger:            LedgerConfig{Driver: meta.LEDGER_DRIVER},
	}
}

// Load reads the yaml file at path over the defaults and overlays the environment.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays RODEO_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("RODEO_SERVER_URL"); ok {
		if c.Servers == nil {
			c.Servers = map[string]string{}
		}
		c.Servers[envServer] = v
		c.Server = envServer
	}
	if v, ok := get("RODEO_SERVER"); ok {
		c.Server = v
	}
	if v, ok := get("RODEO_TOKEN"); ok {
		c.Token = v
	}
	if v, ok := get("RODEO_TOKEN_FILE"); ok {
		c.TokenFile = v
	}
	if v, ok := get("RODEO_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := get("RODEO_LEDGER_DRIVER"); ok {
		c.Ledger.Driver = v
	}
	if v, ok := get("RODEO_LEDGER_DSN"); ok {
		c.Ledger.DSN = v
	}
	if v, ok := get("RODEO_NOTIFY_WS_URL"); ok {
		c.Notify.WebsocketURL = v
	}
	if v, ok := get("RODEO_POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RODEO_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	if v, ok := get("RODEO_MAX_ROUND_BUDGET_PCT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RODEO_MAX_ROUND_BUDGET_PCT: %w", err)
		}
		c.MaxRoundBudgetPct = f
	}
	return nil
}

// Normalize fills the derived fields left empty by the file.
func (c *Config) Normalize() {
	c.Server = strings.TrimSpace(c.Server)
	if c.Server == "" {
		c.Server = meta.DEFAULT_SERVER
	}
	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = meta.LEDGER_DRIVER
	}
	if c.Ledger.Driver == "sqlite" && c.Ledger.DSN == "" {
		c.Ledger.DSN = filepath.Join(c.DataDir, "ledger.db")
	}
	if c.TokenFile == "" && c.DataDir != "" {
		c.TokenFile = filepath.Join(c.DataDir, "token")
	}
}

func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0")
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor_interval must be > 0")
	}
	if c.AuthRetryDelay <= 0 {
		return fmt.Errorf("auth_retry_delay must be > 0")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be > 0")
	}
	if c.MaxRoundBudgetPct <= 0 || c.MaxRoundBudgetPct > 1 {
		return fmt.Errorf("max_round_budget_pct must be in (0,1], got %v", c.MaxRoundBudgetPct)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Ledger.Driver {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	if c.Ledger.Driver == "postgres" && c.Ledger.DSN == "" {
		return fmt.Errorf("ledger.dsn is required for postgres")
	}
	return nil
}

// ServerURL resolves a server name, or the selected server when name is empty.
func (c Config) ServerURL(name string) (string, error) {
	if name == "" {
		name = c.Server
	}
	u, ok := c.Servers[name]
	if !ok || strings.TrimSpace(u) == "" {
		return "", fmt.Errorf("unknown server %q", name)
	}
	return u, nil
}

// MonitorDelay is the poll delay while a vote is watched. It never exceeds the
// idle poll interval.
func (c Config) MonitorDelay() time.Duration {
	if c.MonitorInterval < c.PollInterval {
		return c.MonitorInterval
	}
	return c.PollInterval
}
