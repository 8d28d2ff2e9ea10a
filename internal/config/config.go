package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Env        string `yaml:"env"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Storage    `yaml:"storage"`
	Shortener  `yaml:"shortener"`
	RateLimit  `yaml:"rate_limit"`
	Tracking   `yaml:"tracking"`
	Reports    `yaml:"reports"`
	Redis      `yaml:"redis"`
	Log        `yaml:"log"`
	Metrics    `yaml:"metrics"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
	MigrationsPath:  "file://migrations",
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Storage struct {
	Driver string `yaml:"driver"`
}

type Shortener struct {
	BaseURL     string        `yaml:"base_url"`
	Expiration  time.Duration `yaml:"expiration"`
	MaxAttempts int           `yaml:"max_attempts"`
}

var defaultShortener = Shortener{
	BaseURL:     "http://localhost:8080",
	Expiration:  60 * time.Minute,
	MaxAttempts: 10,
}

type RateLimit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type Tracking struct {
	Timeout       time.Duration `yaml:"timeout"`
	Transactional bool          `yaml:"transactional"`
}

const (
	MaxReportDays     = 365
	MaxReportTopLimit = 100
)

type Reports struct {
	DefaultDays int `yaml:"default_days"`
	TopLimit    int `yaml:"top_limit"`
}

type Redis struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	TTL     time.Duration `yaml:"ttl"`
}

type Log struct {
	Level      string `yaml:"level"`
	JSON       *bool  `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

var defaultLog = Log{
	Level:      "info",
	MaxSizeMB:  100,
	MaxBackups: 3,
	MaxAgeDays: 28,
}

type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// JSONLogs reports whether logs are written as JSON. Unless set explicitly,
// only the dev environment logs in text.
func (c *Config) JSONLogs() bool {
	if c.Log.JSON != nil {
		return *c.Log.JSON
	}
	return c.Env != EnvDev
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis is enabled but redis.url is empty")
	}

	if c.Reports.DefaultDays < 1 || c.Reports.DefaultDays > MaxReportDays {
		return fmt.Errorf("reports.default_days must be within 1..%d, got %d", MaxReportDays, c.Reports.DefaultDays)
	}

	if c.Reports.TopLimit < 1 || c.Reports.TopLimit > MaxReportTopLimit {
		return fmt.Errorf("reports.top_limit must be within 1..%d, got %d", MaxReportTopLimit, c.Reports.TopLimit)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Storage = Storage{Driver: StorageDriverPostgres}
	cfg.Shortener = defaultShortener
	cfg.RateLimit = RateLimit{Max: 10, Window: time.Hour}
	cfg.Tracking = Tracking{Timeout: 5 * time.Second, Transactional: true}
	cfg.Reports = Reports{DefaultDays: 30, TopLimit: 10}
	cfg.Redis = Redis{TTL: 10 * time.Minute}
	cfg.Log = defaultLog
	cfg.Metrics = Metrics{Enabled: true}
}
