package config

import (
	"fmt"
	"time"
)

// Client is the terminal client configuration.
type Client struct {
	ServerURL         string        `yaml:"server-url" env:"TTT_SERVER_URL" env-default:"http://localhost:8080"`
	GridSize          int           `yaml:"grid-size" env:"TTT_GRID_SIZE" env-default:"3"`
	Mode              string        `yaml:"mode" env:"TTT_MODE" env-default:"self"`
	DisconnectGrace   time.Duration `yaml:"disconnect-grace" env:"TTT_DISCONNECT_GRACE" env-default:"3s"`
	ComputerDelay     time.Duration `yaml:"computer-delay" env:"TTT_COMPUTER_DELAY" env-default:"500ms"`
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval" env:"TTT_HEARTBEAT_INTERVAL" env-default:"5s"`
}

func LoadClient(path string) (*Client, error) {
	cfg := &Client{}
	if err := read(path, cfg); err != nil {
		return nil, err
	}
	if cfg.GridSize < 3 || cfg.GridSize > 10 {
		return nil, fmt.Errorf("grid size %d out of range 3..10", cfg.GridSize)
	}
	return cfg, nil
}
