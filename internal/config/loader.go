package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "schichtplan.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SCHICHTPLAN_PORT")
	setString(&cfg.Server.CORSOrigin, "SCHICHTPLAN_CORS_ORIGIN")
	setDuration(&cfg.Server.ShutdownTimeout, "SCHICHTPLAN_SHUTDOWN_TIMEOUT")
	setString(&cfg.Auth.Secret, "SCHICHTPLAN_AUTH_SECRET")
	setDuration(&cfg.Auth.TokenExpiry, "SCHICHTPLAN_TOKEN_EXPIRY")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "SCHICHTPLAN_NATS_SUBJECT_PREFIX")
	setInt(&cfg.Hub.SendBuffer, "SCHICHTPLAN_HUB_SEND_BUFFER")
	setDuration(&cfg.Hub.WriteTimeout, "SCHICHTPLAN_HUB_WRITE_TIMEOUT")
	setInt64(&cfg.Hub.MaxMessageBytes, "SCHICHTPLAN_HUB_MAX_MESSAGE_BYTES")
	setInt64(&cfg.Cache.MaxSizeMB, "SCHICHTPLAN_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "SCHICHTPLAN_CACHE_TTL")
	setInt(&cfg.Breaker.MaxFailures, "SCHICHTPLAN_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SCHICHTPLAN_BREAKER_TIMEOUT")
	setString(&cfg.Logging.Level, "SCHICHTPLAN_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SCHICHTPLAN_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SCHICHTPLAN_LOG_ASYNC")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Hub.SendBuffer < 1 {
		return errors.New("hub.send_buffer must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
