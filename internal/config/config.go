// Package config loads the server configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DotEnvPath is loaded into the process environment before overrides are
// applied. Variables already set are kept.
const DotEnvPath = ".env"

// ConfigPath is read when AYURSUTRA_CONFIG is unset. A missing default file is
// not an error; the server then runs on defaults and environment variables.
const ConfigPath = "config.yaml"

const (
	defaultPort                = "5000"
	defaultLogLevel            = "info"
	defaultMutationRatePerMin  = 60
	defaultShutdownGraceSecond = 10
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`
	// Timezone is an IANA name defining the clinic's calendar day. Empty means process local.
	Timezone string `yaml:"timezone"`

	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	MutationRateLimitPerMinute int      `yaml:"mutationRateLimitPerMinute"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCIDRs"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	ShutdownGraceSeconds int `yaml:"shutdownGraceSeconds"`
}

// Path returns the config file location, honoring AYURSUTRA_CONFIG.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("AYURSUTRA_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// Load reads config from path (defaults to config.yaml), applies environment
// overrides and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == ConfigPath:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := loadDotEnv(DotEnvPath); err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *FileConfig) error {
	setString := map[string]*string{
		"PORT":             &cfg.Port,
		"LOG_LEVEL":        &cfg.LogLevel,
		"DATABASE_URL":     &cfg.DatabaseURL,
		"CLINIC_TIMEZONE":  &cfg.Timezone,
		"REDIS_ADDR":       &cfg.RedisAddr,
		"REDIS_PASSWORD":   &cfg.RedisPassword,
		"MINIO_ENDPOINT":   &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY": &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY": &cfg.MinioSecretKey,
		"MINIO_BUCKET":     &cfg.MinioBucket,
	}
	for name, dst := range setString {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	if v := strings.TrimSpace(os.Getenv("MINIO_USE_SSL")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: MINIO_USE_SSL: %w", err)
		}
		cfg.MinioUseSSL = b
	}
	if v := strings.TrimSpace(os.Getenv("MUTATION_RATE_LIMIT_PER_MINUTE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: MUTATION_RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.MutationRateLimitPerMinute = n
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); strings.TrimSpace(v) != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	return nil
}

func applyDefaults(cfg *FileConfig) {
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = defaultPort
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.MutationRateLimitPerMinute == 0 {
		cfg.MutationRateLimitPerMinute = defaultMutationRatePerMin
	}
	if cfg.ShutdownGraceSeconds <= 0 {
		cfg.ShutdownGraceSeconds = defaultShutdownGraceSecond
	}
}

func validateConfig(cfg FileConfig) error {
	if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
		return fmt.Errorf("config: port %q is not a valid TCP port", cfg.Port)
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}
	if cfg.MutationRateLimitPerMinute < 0 {
		return errors.New("config: mutationRateLimitPerMinute must not be negative")
	}
	minio := map[string]string{
		"minioEndpoint":  cfg.MinioEndpoint,
		"minioAccessKey": cfg.MinioAccessKey,
		"minioSecretKey": cfg.MinioSecretKey,
		"minioBucket":    cfg.MinioBucket,
	}
	if cfg.MinioEndpoint != "" {
		for name, v := range minio {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("config: %s is required when minioEndpoint is set", name)
			}
		}
	}
	return nil
}

// Location resolves the clinic time zone.
func (c FileConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", name, err)
	}
	return loc, nil
}

// ShutdownGrace is how long in-flight requests get after a stop signal.
func (c FileConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
