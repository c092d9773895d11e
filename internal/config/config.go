// Package config provides hierarchical configuration loading for the
// schichtplan real-time gateway.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the gateway service.
type Config struct {
	Server  Server  `yaml:"server"`
	Auth    Auth    `yaml:"auth"`
	NATS    NATS    `yaml:"nats"`
	Hub     Hub     `yaml:"hub"`
	Cache   Cache   `yaml:"cache"`
	Breaker Breaker `yaml:"breaker"`
	Logging Logging `yaml:"logging"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port            string        `yaml:"port"`
	CORSOrigin      string        `yaml:"cors_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Auth holds access-token verification configuration.
type Auth struct {
	Secret      string        `yaml:"secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// NATS holds the domain-event ingest configuration.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Hub holds WebSocket hub tuning.
type Hub struct {
	SendBuffer      int           `yaml:"send_buffer"`       // per-connection outbound queue length
	WriteTimeout    time.Duration `yaml:"write_timeout"`     // per-message write deadline
	MaxMessageBytes int64         `yaml:"max_message_bytes"` // inbound control message size limit
}

// Cache holds client-side cache configuration.
type Cache struct {
	MaxSizeMB int64         `yaml:"max_size_mb"`
	TTL       time.Duration `yaml:"ttl"`
}

// Breaker holds circuit breaker configuration for origin refetches.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:            "8080",
			CORSOrigin:      "http://localhost:5173",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: Auth{
			Secret:      "",
			TokenExpiry: 15 * time.Minute,
		},
		NATS: NATS{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "schichtplan.events",
		},
		Hub: Hub{
			SendBuffer:      32,
			WriteTimeout:    5 * time.Second,
			MaxMessageBytes: 4096,
		},
		Cache: Cache{
			MaxSizeMB: 64,
			TTL:       5 * time.Minute,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "schichtplan-realtime",
			Async:   false,
		},
	}
}
