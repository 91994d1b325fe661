package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Zone    ZoneConfig    `yaml:"zone"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" env:"DUELGRID_HOST"`
	Port           int      `yaml:"port" env:"DUELGRID_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"DUELGRID_ALLOWED_ORIGINS" envSeparator:","`
	AuthToken      string   `yaml:"auth_token" env:"DUELGRID_AUTH_TOKEN"`
}

type SessionConfig struct {
	// SendBuffer is the per-client outbound message buffer; a client
	// that falls further behind starts dropping messages.
	SendBuffer int `yaml:"send_buffer" env:"DUELGRID_SEND_BUFFER"`
}

type ZoneConfig struct {
	StartHP      int           `yaml:"start_hp"`
	StrikeDamage int           `yaml:"strike_damage"`
	RoundLimit   time.Duration `yaml:"round_limit"`
	BotInterval  time.Duration `yaml:"bot_interval"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Session: SessionConfig{
			SendBuffer: 64,
		},
		Zone: ZoneConfig{
			StartHP:      10,
			StrikeDamage: 2,
			RoundLimit:   2 * time.Minute,
			BotInterval:  1500 * time.Millisecond,
		},
	}
}

// Load reads the YAML file at path over the coded defaults, then applies
// DUELGRID_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but tolerates a missing file, falling
// back to defaults plus environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		if err := env.Parse(cfg); err != nil {
			return nil, fmt.Errorf("env overrides: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}
