package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Assistant   AssistantConfig           `json:"assistant"`
	Calendar    CalendarConfig            `json:"calendar"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AssistantConfig selects the remote assistant and its polling behavior.
type AssistantConfig struct {
	APIKey              string `json:"api_key"`
	AssistantID         string `json:"assistant_id"`
	BaseURL             string `json:"base_url"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	MaxWaitSeconds      int    `json:"max_wait_seconds"`
}

// CalendarConfig holds the booking provider credentials and endpoints.
type CalendarConfig struct {
	APIToken        string `json:"api_token"`
	CalendarID      string `json:"calendar_id"`
	BookingBaseURL  string `json:"booking_base_url"`
	SlotsBaseURL    string `json:"slots_base_url"`
	APIVersion      string `json:"api_version"`
	DefaultTimezone string `json:"default_timezone"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Assistant.APIKey == "" {
		return nil, fmt.Errorf("assistant api_key must be configured")
	}
	if cfg.Assistant.AssistantID == "" {
		return nil, fmt.Errorf("assistant assistant_id must be configured")
	}
	if cfg.Calendar.APIToken == "" {
		return nil, fmt.Errorf("calendar api_token must be configured")
	}
	if cfg.Calendar.CalendarID == "" {
		return nil, fmt.Errorf("calendar calendar_id must be configured")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Calendar.BookingBaseURL == "" {
		c.Calendar.BookingBaseURL = "https://rest.gohighlevel.com/v1"
	}
	if c.Calendar.SlotsBaseURL == "" {
		c.Calendar.SlotsBaseURL = "https://services.leadconnectorhq.com"
	}
	if c.Calendar.APIVersion == "" {
		c.Calendar.APIVersion = "2021-04-15"
	}
	if c.Calendar.DefaultTimezone == "" {
		c.Calendar.DefaultTimezone = "America/New_York"
	}
	if c.Assistant.PollIntervalSeconds <= 0 {
		c.Assistant.PollIntervalSeconds = 1
	}
	if c.Assistant.MaxWaitSeconds <= 0 {
		c.Assistant.MaxWaitSeconds = 120
	}
}
