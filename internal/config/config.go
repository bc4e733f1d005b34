package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"poolwatch/internal/hashrate"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/poolin"
	"poolwatch/internal/provider/spiderpool"
)

type HTTP struct {
	// TimeoutSec bounds a whole HTTP exchange at the client level.
	TimeoutSec int `json:"timeout_sec" yaml:"timeout_sec"`
	// RequestTimeoutSec bounds one account fetch, rate limit wait included.
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	UserAgent         string `json:"user_agent" yaml:"user_agent"`
}

type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type Units struct {
	// Policy is "passthrough" or "strict".
	Policy string `json:"policy" yaml:"policy"`
}

type ProviderSettings struct {
	BaseURL               string `json:"base_url" yaml:"base_url"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	Burst                 int    `json:"burst" yaml:"burst"`
}

type Providers struct {
	BtcPool    ProviderSettings `json:"btcpool" yaml:"btcpool"`
	SpiderPool ProviderSettings `json:"spiderpool" yaml:"spiderpool"`
	Poolin     ProviderSettings `json:"poolin" yaml:"poolin"`
	HuobiPool  ProviderSettings `json:"huobipool" yaml:"huobipool"`
	AntPool    ProviderSettings `json:"antpool" yaml:"antpool"`
}

// For returns the settings of kind.
func (p Providers) For(kind provider.Kind) ProviderSettings {
	switch kind {
	case provider.BtcPool:
		return p.BtcPool
	case provider.SpiderPool:
		return p.SpiderPool
	case provider.Poolin:
		return p.Poolin
	case provider.HuobiPool:
		return p.HuobiPool
	case provider.AntPool:
		return p.AntPool
	}
	return ProviderSettings{}
}

type Cache struct {
	// Backend is "none", "memory" or "redis".
	Backend       string `json:"backend" yaml:"backend"`
	TTLSeconds    int    `json:"ttl_sec" yaml:"ttl_sec"`
	MaxItems      int    `json:"max_items" yaml:"max_items"`
	RedisURL      string `json:"redis_url" yaml:"redis_url"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
}

type Server struct {
	Port string `json:"port" yaml:"port"`
	// ReportTimeoutSec bounds one report request as a whole; 0 leaves it
	// unbounded.
	ReportTimeoutSec int `json:"report_timeout_sec" yaml:"report_timeout_sec"`
}

type Metrics struct {
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `json:"job" yaml:"job"`
}

type Config struct {
	HTTP      HTTP                    `json:"http" yaml:"http"`
	Logging   Logging                 `json:"logging" yaml:"logging"`
	Units     Units                   `json:"units" yaml:"units"`
	Providers Providers               `json:"providers" yaml:"providers"`
	Cache     Cache                   `json:"cache" yaml:"cache"`
	Server    Server                  `json:"server" yaml:"server"`
	Metrics   Metrics                 `json:"metrics" yaml:"metrics"`
	Accounts  []provider.AccountQuery `json:"accounts" yaml:"accounts"`
}

func Default() Config {
	return Config{
		HTTP:    HTTP{TimeoutSec: 30, RequestTimeoutSec: 15, UserAgent: "poolwatch/1.0"},
		Logging: Logging{Level: "info", Format: "text"},
		Units:   Units{Policy: string(hashrate.Passthrough)},
		Providers: Providers{
			SpiderPool: ProviderSettings{BaseURL: spiderpool.DefaultBaseURL},
			Poolin:     ProviderSettings{BaseURL: poolin.DefaultBaseURL},
		},
		Cache:   Cache{Backend: "none", TTLSeconds: 60, MaxItems: 1000},
		Server:  Server{Port: "8080", ReportTimeoutSec: 120},
		Metrics: Metrics{Job: "poolwatch"},
	}
}

// RequestTimeout is the per-account fetch timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutSec) * time.Second
}

// Load reads a JSON or YAML config (chosen by extension) from path. If path is
// empty and no default file exists, it returns defaults. Environment variables
// override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, p := range []string{"poolwatch.yaml", "poolwatch.yml", "config.json"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadAccounts reads an account list from path. The file holds either a bare
// list of accounts or an object with an "accounts" key.
func LoadAccounts(path string) ([]provider.AccountQuery, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}

	if isList(path, b) {
		var list []provider.AccountQuery
		if err := decode(path, b, &list); err != nil {
			return nil, fmt.Errorf("parse accounts %s: %w", path, err)
		}
		return list, nil
	}
	var wrapped struct {
		Accounts []provider.AccountQuery `json:"accounts" yaml:"accounts"`
	}
	if err := decode(path, b, &wrapped); err != nil {
		return nil, fmt.Errorf("parse accounts %s: %w", path, err)
	}
	return wrapped.Accounts, nil
}

func decode(path string, b []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	}
	return json.Unmarshal(b, v)
}

func isList(path string, b []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var n yaml.Node
		if err := yaml.Unmarshal(b, &n); err != nil || len(n.Content) == 0 {
			return false
		}
		return n.Content[0].Kind == yaml.SequenceNode
	}
	return bytes.HasPrefix(bytes.TrimSpace(b), []byte("["))
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("UNIT_POLICY"); v != "" {
		cfg.Units.Policy = v
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.HTTP.RequestTimeoutSec = x
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if x, ok := envInt("CACHE_TTL_SEC"); ok && x >= 0 {
		cfg.Cache.TTLSeconds = x
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("SPIDERPOOL_BASE_URL"); v != "" {
		cfg.Providers.SpiderPool.BaseURL = v
	}
	if v := os.Getenv("POOLIN_BASE_URL"); v != "" {
		cfg.Providers.Poolin.BaseURL = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return x, true
}

// Validate reports every problem in the configuration. Account URLs are
// checked against their provider's expected shape here so that a malformed
// entry fails the run up front.
func (c Config) Validate() error {
	var errs []error
	if _, err := hashrate.ParsePolicy(c.Units.Policy); err != nil {
		errs = append(errs, fmt.Errorf("units: %w", err))
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "", "none", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache: redis backend needs redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache: unknown backend %q", c.Cache.Backend))
	}
	if c.HTTP.RequestTimeoutSec < 0 {
		errs = append(errs, errors.New("http: request_timeout_sec must not be negative"))
	}
	if c.Server.ReportTimeoutSec < 0 {
		errs = append(errs, errors.New("server: report_timeout_sec must not be negative"))
	}
	if err := ValidateAccounts(c.Accounts); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
