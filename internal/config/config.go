package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen              = "127.0.0.1:8080"
	defaultRefreshCron         = "*/15 * * * *"
	defaultFetchTimeoutSeconds = 15
	defaultFeedTTLSeconds      = 60
	defaultLogLevel            = "info"
	defaultEnvFile             = ".env"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// ICSURL is the calendar feed that every request normalizes.
	ICSURL string `yaml:"ics_url" json:"ics_url"`

	// FetchTimeoutSeconds bounds a single feed download.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// CacheDir keeps the last good feed body plus ETag/Last-Modified.
	// Empty disables the disk cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// FeedTTLSeconds is how long a downloaded body is reused in memory.
	// A negative value disables the in-memory snapshot.
	FeedTTLSeconds int `yaml:"feed_ttl_seconds" json:"feed_ttl_seconds"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to re-fetch the feed in the background. "off" disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              defaultListen,
		FetchTimeoutSeconds: defaultFetchTimeoutSeconds,
		FeedTTLSeconds:      defaultFeedTTLSeconds,
		RefreshCron:         defaultRefreshCron,
		LogLevel:            defaultLogLevel,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	c.ICSURL = strings.TrimSpace(c.ICSURL)
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.FeedTTLSeconds == 0 {
		c.FeedTTLSeconds = defaultFeedTTLSeconds
	}
	c.RefreshCron = strings.TrimSpace(c.RefreshCron)
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	// Half-filled credentials would lock everyone out.
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.ICSURL == "" {
		return errors.New("ics_url is not configured (set it in the config file or WEEKCAL_ICS_URL / ICS_URL)")
	}
	return nil
}

// FetchTimeout returns FetchTimeoutSeconds as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// FeedTTL returns FeedTTLSeconds as a duration; zero means disabled.
func (c *Config) FeedTTL() time.Duration {
	if c.FeedTTLSeconds < 0 {
		return 0
	}
	return time.Duration(c.FeedTTLSeconds) * time.Second
}

// RefreshSchedule returns the cron spec for background refresh, or "" when
// background refresh is turned off.
func (c *Config) RefreshSchedule() string {
	switch strings.ToLower(c.RefreshCron) {
	case "off", "none", "disabled":
		return ""
	}
	return c.RefreshCron
}

// Load loads configuration from the given YAML path and applies environment
// overrides on top.
//
// Behavior:
//   - path == "": start from defaults (environment-only deployments)
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - Then the dotenv file (WEEKCAL_ENV_FILE, default ".env") and the process
//     environment override individual keys; process variables win.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("write default config %s: %w", path, err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// envBinding maps a config key to the environment variables that may set it,
// highest priority first.
type envBinding struct {
	key  string
	vars []string
}

var envBindings = []envBinding{
	{key: "listen", vars: []string{"WEEKCAL_LISTEN"}},
	{key: "ics_url", vars: []string{"WEEKCAL_ICS_URL", "ICS_URL"}},
	{key: "fetch_timeout_seconds", vars: []string{"WEEKCAL_FETCH_TIMEOUT_SECONDS"}},
	{key: "cache_dir", vars: []string{"WEEKCAL_CACHE_DIR"}},
	{key: "feed_ttl_seconds", vars: []string{"WEEKCAL_FEED_TTL_SECONDS"}},
	{key: "refresh", vars: []string{"WEEKCAL_REFRESH"}},
	{key: "log_level", vars: []string{"WEEKCAL_LOG_LEVEL"}},
	{key: "basic_auth_username", vars: []string{"WEEKCAL_BASIC_AUTH_USERNAME"}},
	{key: "basic_auth_password", vars: []string{"WEEKCAL_BASIC_AUTH_PASSWORD"}},
}

func applyEnv(cfg *Config) error {
	envFile := strings.TrimSpace(os.Getenv("WEEKCAL_ENV_FILE"))
	if envFile == "" {
		envFile = defaultEnvFile
	}
	dotenv, err := readEnvFile(envFile)
	if err != nil {
		return err
	}

	v := viper.New()
	for _, b := range envBindings {
		_ = v.BindEnv(append([]string{b.key}, b.vars...)...)
		// dotenv values sit below the process environment.
		for _, name := range b.vars {
			if val, ok := dotenv[strings.ToLower(name)]; ok {
				v.SetDefault(b.key, val)
				break
			}
		}
	}

	if s := strings.TrimSpace(v.GetString("listen")); s != "" {
		cfg.Listen = s
	}
	if s := strings.TrimSpace(v.GetString("ics_url")); s != "" {
		cfg.ICSURL = s
	}
	if s := strings.TrimSpace(v.GetString("cache_dir")); s != "" {
		cfg.CacheDir = s
	}
	if s := strings.TrimSpace(v.GetString("refresh")); s != "" {
		cfg.RefreshCron = s
	}
	if s := strings.TrimSpace(v.GetString("log_level")); s != "" {
		cfg.LogLevel = s
	}
	if v.GetString("fetch_timeout_seconds") != "" {
		cfg.FetchTimeoutSeconds = v.GetInt("fetch_timeout_seconds")
	}
	if v.GetString("feed_ttl_seconds") != "" {
		cfg.FeedTTLSeconds = v.GetInt("feed_ttl_seconds")
	}

	user, pass := v.GetString("basic_auth_username"), v.GetString("basic_auth_password")
	if user != "" || pass != "" {
		if cfg.BasicAuth == nil {
			cfg.BasicAuth = &BasicAuthConfig{}
		}
		if user != "" {
			cfg.BasicAuth.Username = user
		}
		if pass != "" {
			cfg.BasicAuth.Password = pass
		}
	}
	return nil
}

// readEnvFile parses a dotenv file into lower-cased keys. A missing file is
// not an error.
func readEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat env file %s: %w", path, err)
	}

	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	out := make(map[string]string, len(dv.AllKeys()))
	for _, k := range dv.AllKeys() {
		out[k] = dv.GetString(k)
	}
	return out, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
