package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the YAML file read when PROPTOOLS_CONFIG is unset.
const ConfigPath = "config.yaml"

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents configuration loaded from YAML and the environment.
type Config struct {
	Env      string `yaml:"env"` // development | production
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
	AppURL   string `yaml:"appURL"`

	DatabaseDriver    string   `yaml:"databaseDriver"`
	DatabaseURL       string   `yaml:"databaseURL"`
	DBMaxOpenConns    int      `yaml:"dbMaxOpenConns"`
	DBMaxIdleConns    int      `yaml:"dbMaxIdleConns"`
	DBConnMaxLifetime string   `yaml:"dbConnMaxLifetime"`
	SessionSecret     string   `yaml:"sessionSecret"`
	JWTSecret         string   `yaml:"jwtSecret"`
	JWTTTL            string   `yaml:"jwtTTL"`
	VerificationTTL   string   `yaml:"verificationTTL"`
	CORSOrigins       []string `yaml:"corsOrigins"`

	RedisAddr              string `yaml:"redisAddr"`
	RedisPassword          string `yaml:"redisPassword"`
	AuthRateLimitPerMinute int    `yaml:"authRateLimitPerMinute"`
	VoteRateLimitPerMinute int    `yaml:"voteRateLimitPerMinute"`

	CacheSize int    `yaml:"cacheSize"`
	CacheTTL  string `yaml:"cacheTTL"`

	SMTP SMTPConfig `yaml:"smtp"`

	Seed  bool        `yaml:"seed"`
	Admin AdminConfig `yaml:"admin"`
}

type SMTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// Enabled 没有配置 host 时邮件服务处于关闭状态
func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Load reads .env, then the YAML file at path (PROPTOOLS_CONFIG or config.yaml),
// then applies environment overrides and defaults.
// A missing default config file is not an error; an explicit one must exist.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	explicit := path != ""
	if path == "" {
		path = os.Getenv("PROPTOOLS_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.AppURL, "APP_URL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.DatabaseDriver, "DATABASE_DRIVER")
	setString(&cfg.SessionSecret, "SESSION_SECRET")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTTTL, "JWT_TTL")
	setString(&cfg.VerificationTTL, "VERIFICATION_TTL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.CacheTTL, "CACHE_TTL")
	setInt(&cfg.AuthRateLimitPerMinute, "AUTH_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.VoteRateLimitPerMinute, "VOTE_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.CacheSize, "CACHE_SIZE")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.User, "SMTP_USER")
	setString(&cfg.SMTP.Pass, "SMTP_PASS")
	setString(&cfg.SMTP.From, "SMTP_FROM")
	if v := os.Getenv("SEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Seed = b
		}
	}
	setString(&cfg.Admin.Username, "ADMIN_USERNAME")
	setString(&cfg.Admin.Email, "ADMIN_EMAIL")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppURL == "" {
		cfg.AppURL = "http://localhost:" + cfg.Port
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverPostgres
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 20
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}
	if cfg.DBConnMaxLifetime == "" {
		cfg.DBConnMaxLifetime = "30m"
	}
	if cfg.JWTTTL == "" {
		cfg.JWTTTL = "72h"
	}
	if cfg.VerificationTTL == "" {
		cfg.VerificationTTL = "24h"
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL == "" {
		cfg.CacheTTL = "30s"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if cfg.SMTP.Port == "" {
		cfg.SMTP.Port = "587"
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}
	if cfg.IsDevelopment() {
		if cfg.SessionSecret == "" {
			cfg.SessionSecret = "proptools-dev-session-secret"
		}
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "proptools-dev-jwt-secret-change-me"
		}
	}
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("config: port is required")
	}
	switch cfg.DatabaseDriver {
	case DriverPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for the postgres driver (set DATABASE_URL)")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database driver %q", cfg.DatabaseDriver)
	}
	if !cfg.IsDevelopment() {
		if len(cfg.SessionSecret) < 16 {
			return errors.New("config: sessionSecret must be at least 16 characters (set SESSION_SECRET)")
		}
		if len(cfg.JWTSecret) < 16 {
			return errors.New("config: jwtSecret must be at least 16 characters (set JWT_SECRET)")
		}
	}
	if cfg.AuthRateLimitPerMinute < 0 || cfg.VoteRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.CacheSize < 0 || cfg.DBMaxOpenConns < 0 || cfg.DBMaxIdleConns < 0 {
		return errors.New("config: sizes must be >= 0")
	}
	for name, raw := range map[string]string{
		"jwtTTL":            cfg.JWTTTL,
		"verificationTTL":   cfg.VerificationTTL,
		"cacheTTL":          cfg.CacheTTL,
		"dbConnMaxLifetime": cfg.DBConnMaxLifetime,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config: invalid %s duration: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	return nil
}

// IsDevelopment reports whether development defaults are allowed.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Durations below are validated in Load.

func (c Config) JWTDuration() time.Duration { return mustDuration(c.JWTTTL) }

func (c Config) VerificationDuration() time.Duration { return mustDuration(c.VerificationTTL) }

func (c Config) CacheDuration() time.Duration { return mustDuration(c.CacheTTL) }

func (c Config) ConnMaxLifetime() time.Duration { return mustDuration(c.DBConnMaxLifetime) }

func mustDuration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
