// Package config loads process configuration from environment variables
// (optionally backed by a .env file), validates it, and logs it once at
// startup — the single source of runtime knobs for both cmd/server and
// cmd/client.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Server holds the server process's configuration. Every field enumerated
// in the external configuration-knobs table has an env tag and default.
type Server struct {
	Addr string `env:"NETCORE_ADDR" envDefault:":7070"`

	TickRate int `env:"NETCORE_TICK_RATE" envDefault:"60"`

	MaxMessageSize       int `env:"NETCORE_MAX_MESSAGE_SIZE" envDefault:"65536"`
	MaxMessagesPerSecond int `env:"NETCORE_MAX_MESSAGES_PER_SECOND" envDefault:"100"`
	MaxSendQueueSize     int `env:"NETCORE_MAX_SEND_QUEUE_SIZE" envDefault:"100"`

	HeartbeatInterval time.Duration `env:"NETCORE_HEARTBEAT_INTERVAL" envDefault:"30s"`
	HeartbeatTimeout  time.Duration `env:"NETCORE_HEARTBEAT_TIMEOUT" envDefault:"60s"`

	EnableBufferPooling bool `env:"NETCORE_ENABLE_BUFFER_POOLING" envDefault:"true"`
	Debug               bool `env:"NETCORE_DEBUG" envDefault:"false"`

	MaxConnections int `env:"NETCORE_MAX_CONNECTIONS" envDefault:"2000"`

	ConnIPBurst     int           `env:"NETCORE_CONN_IP_BURST" envDefault:"10"`
	ConnIPRate      float64       `env:"NETCORE_CONN_IP_RATE" envDefault:"1.0"`
	ConnIPTTL       time.Duration `env:"NETCORE_CONN_IP_TTL" envDefault:"5m"`
	ConnGlobalBurst int           `env:"NETCORE_CONN_GLOBAL_BURST" envDefault:"300"`
	ConnGlobalRate  float64       `env:"NETCORE_CONN_GLOBAL_RATE" envDefault:"50.0"`

	CPURejectThreshold float64       `env:"NETCORE_CPU_REJECT_THRESHOLD" envDefault:"75.0"`
	CPUPauseThreshold  float64       `env:"NETCORE_CPU_PAUSE_THRESHOLD" envDefault:"80.0"`
	MetricsInterval    time.Duration `env:"NETCORE_METRICS_INTERVAL" envDefault:"15s"`

	MetricsAddr string `env:"NETCORE_METRICS_ADDR" envDefault:":9090"`

	NATSURL          string `env:"NETCORE_NATS_URL" envDefault:""`
	KafkaBrokers     string `env:"NETCORE_KAFKA_BROKERS" envDefault:""`
	KafkaTopic       string `env:"NETCORE_KAFKA_TOPIC" envDefault:"netcore-intents"`

	LogLevel  string `env:"NETCORE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"NETCORE_LOG_FORMAT" envDefault:"json"`

	Environment string `env:"NETCORE_ENV" envDefault:"development"`
}

// Load reads configuration from a .env file (if present) and the process
// environment, parses it into a Server, and validates it. Priority: real
// environment variables override .env file values, which override
// struct-tag defaults.
func Load(logger *zerolog.Logger) (*Server, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that can never run correctly.
func (c *Server) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("NETCORE_ADDR is required")
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("NETCORE_TICK_RATE must be > 0, got %d", c.TickRate)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("NETCORE_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("NETCORE_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.CPUPauseThreshold < 0 || c.CPUPauseThreshold > 100 {
		return fmt.Errorf("NETCORE_CPU_PAUSE_THRESHOLD must be 0-100, got %.1f", c.CPUPauseThreshold)
	}
	if c.CPUPauseThreshold < c.CPURejectThreshold {
		return fmt.Errorf("NETCORE_CPU_PAUSE_THRESHOLD (%.1f) must be >= NETCORE_CPU_REJECT_THRESHOLD (%.1f)",
			c.CPUPauseThreshold, c.CPURejectThreshold)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("NETCORE_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "text": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("NETCORE_LOG_FORMAT must be one of json, text, pretty (got %q)", c.LogFormat)
	}
	return nil
}

// Log emits the loaded configuration as a single structured event.
func (c *Server) Log(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Int("tick_rate", c.TickRate).
		Int("max_message_size", c.MaxMessageSize).
		Int("max_messages_per_second", c.MaxMessagesPerSecond).
		Int("max_send_queue_size", c.MaxSendQueueSize).
		Dur("heartbeat_interval", c.HeartbeatInterval).
		Dur("heartbeat_timeout", c.HeartbeatTimeout).
		Int("max_connections", c.MaxConnections).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Float64("cpu_pause_threshold", c.CPUPauseThreshold).
		Dur("metrics_interval", c.MetricsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}

// Client holds the client process's configuration.
type Client struct {
	ServerAddr string `env:"NETCORE_SERVER_ADDR" envDefault:"ws://127.0.0.1:7070"`

	MaxMessagesPerSecond int `env:"NETCORE_MAX_MESSAGES_PER_SECOND" envDefault:"60"`

	HeartbeatInterval time.Duration `env:"NETCORE_HEARTBEAT_INTERVAL" envDefault:"30s"`
	HeartbeatTimeout  time.Duration `env:"NETCORE_HEARTBEAT_TIMEOUT" envDefault:"60s"`

	LagSimulationMinMs int `env:"NETCORE_LAG_SIM_MIN_MS" envDefault:"0"`
	LagSimulationMaxMs int `env:"NETCORE_LAG_SIM_MAX_MS" envDefault:"0"`

	LogLevel  string `env:"NETCORE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"NETCORE_LOG_FORMAT" envDefault:"json"`
}

// LoadClient is Load's client-side counterpart.
func LoadClient(logger *zerolog.Logger) (*Client, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Info().Msg("no .env file found, using environment variables only")
	}
	cfg := &Client{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse failed: %w", err)
	}
	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("NETCORE_SERVER_ADDR is required")
	}
	return cfg, nil
}
