package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the server configuration. Values come from an optional yaml file and are
// overridden by environment variables.
type Config struct {
	LogLevel    string      `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTP        HTTP        `yaml:"http"`
	Matchmaking Matchmaking `yaml:"matchmaking"`
	Games       Games       `yaml:"games"`
	Redis       Redis       `yaml:"redis"`
	Telemetry   Telemetry   `yaml:"telemetry"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type Matchmaking struct {
	Timeout           time.Duration `yaml:"timeout" env:"MATCHMAKING_TIMEOUT" env-default:"30s"`
	DefaultGridSize   int           `yaml:"default-grid-size" env:"DEFAULT_GRID_SIZE" env-default:"3"`
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval" env:"HEARTBEAT_INTERVAL" env-default:"10s"`
}

// Games bounds the games hosted over the REST api.
type Games struct {
	MaxHosted     int           `yaml:"max-hosted" env:"GAMES_MAX_HOSTED" env-default:"10000"`
	IdleTimeout   time.Duration `yaml:"idle-timeout" env:"GAMES_IDLE_TIMEOUT" env-default:"30m"`
	SweepInterval time.Duration `yaml:"sweep-interval" env:"GAMES_SWEEP_INTERVAL" env-default:"1m"`
}

// Redis is optional. An empty ConnString disables event publishing.
type Redis struct {
	ConnString string `yaml:"conn-string" env:"REDIS_CONNSTRING"`
}

// Telemetry is optional. An empty Endpoint disables the OTLP exporters.
type Telemetry struct {
	Endpoint       string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string `yaml:"service-name" env:"OTEL_SERVICE_NAME" env-default:"tic-tac-toe-grid"`
	ServiceVersion string `yaml:"service-version" env:"SERVICE_VERSION" env-default:"v0.1.0"`
}

// Load reads the configuration from path, or from the environment alone when path is empty.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := read(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Matchmaking.DefaultGridSize < 3 || cfg.Matchmaking.DefaultGridSize > 10 {
		return nil, fmt.Errorf("default grid size %d out of range 3..10", cfg.Matchmaking.DefaultGridSize)
	}
	return cfg, nil
}

// MustLoad is Load for main packages.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func read(path string, cfg any) error {
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("unable to read config from environment: %w", err)
		}
		return nil
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("unable to load config file: %w", err)
	}
	return nil
}
