package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/melih/lighthouse-notebooks/internal/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  Server  `yaml:"server"`
	Auth    Auth    `yaml:"auth"`
	Runtime Runtime `yaml:"runtime"`
	Storage Storage `yaml:"storage"`
	SMTP    SMTP    `yaml:"smtp"`
	GPU     GPU     `yaml:"gpu"`
	Sweeper Sweeper `yaml:"sweeper"`
	Proxy   Proxy   `yaml:"proxy"`
	Log     Log     `yaml:"log"`
}

type Server struct {
	Address string `yaml:"address"`
}

type Auth struct {
	SecretKey            string `yaml:"secret_key"`
	TokenExpireMinutes   int    `yaml:"token_expire_minutes"`
	CookieName           string `yaml:"cookie_name"`
	CookieSecure         bool   `yaml:"cookie_secure"`
	CookieHTTPOnly       bool   `yaml:"cookie_http_only"`
	CookieSameSite       string `yaml:"cookie_same_site"`
	PasswordResetMinutes int    `yaml:"password_reset_minutes"`
}

// Runtime configures notebook containers.
type Runtime struct {
	DefaultImage          string `yaml:"default_image"`
	Host                  string `yaml:"host"`   // address published in notebook URLs
	Scheme                string `yaml:"scheme"` // http or https
	ServicePort           int    `yaml:"service_port"`
	DefaultTimeoutMinutes int    `yaml:"default_timeout_minutes"`
	EnforceOwnership      bool   `yaml:"enforce_ownership"`
}

type Storage struct {
	Path string `yaml:"path"`
}

type SMTP struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether outbound mail is configured.
func (s SMTP) Enabled() bool { return s.Server != "" }

// GPU configures the SSH host queried for GPU status.
type GPU struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	KeyPath        string `yaml:"key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
	Command        string `yaml:"command"`
}

// Enabled reports whether the GPU host is configured.
func (g GPU) Enabled() bool { return g.Host != "" && g.KeyPath != "" }

type Sweeper struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type Proxy struct {
	Domain string `yaml:"domain"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Server: Server{Address: ":8000"},
		Auth: Auth{
			TokenExpireMinutes:   60,
			CookieName:           "access_token",
			CookieHTTPOnly:       true,
			CookieSameSite:       "Strict",
			PasswordResetMinutes: 10,
		},
		Runtime: Runtime{
			DefaultImage: "jupyter/datascience-notebook",
			Host:         "localhost",
			Scheme:       "http",
			ServicePort:  8888,
		},
		Storage: Storage{Path: "lighthouse.db"},
		SMTP:    SMTP{Port: 587},
		GPU:     GPU{Port: 22, User: "ubuntu", Command: "nvidia-smi -L"},
		Sweeper: Sweeper{Interval: time.Minute},
		Log:     Log{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	// Launches without an explicit timeout inherit the session lifetime.
	if cfg.Runtime.DefaultTimeoutMinutes == 0 {
		cfg.Runtime.DefaultTimeoutMinutes = cfg.Auth.TokenExpireMinutes
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth.secret_key is required"))
	}
	if c.Auth.TokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("auth.token_expire_minutes must be positive"))
	}
	if c.Runtime.DefaultImage == "" {
		errs = append(errs, errors.New("runtime.default_image is required"))
	}
	if c.Runtime.ServicePort <= 0 || c.Runtime.ServicePort > 65535 {
		errs = append(errs, fmt.Errorf("runtime.service_port %d out of range", c.Runtime.ServicePort))
	}
	if c.Runtime.DefaultTimeoutMinutes <= 0 {
		errs = append(errs, errors.New("runtime.default_timeout_minutes must be positive"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		errs = append(errs, errors.New("sweeper.interval must be positive"))
	}
	return errors.Join(errs...)
}
