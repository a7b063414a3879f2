package configuration

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const credentialEnvVar = "ARCANA_TOKEN"

type ChatConfig struct {
	SocketURL  string `json:"socket_url"`
	APIBaseURL string `json:"api_base_url"`
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
}

type ReconnectConfig struct {
	MaxAttempts    int `json:"max_attempts"`
	InitialDelayMs int `json:"initial_delay_ms"`
	MaxDelayMs     int `json:"max_delay_ms"`
}

type NotificationConfig struct {
	Enabled bool            `json:"enabled"`
	Sounds  map[string]bool `json:"sounds"`
}

type ServerConfig struct {
	MonitorPort int `json:"monitor_port"`
}

type Config struct {
	Chat          ChatConfig         `json:"chat"`
	Reconnect     ReconnectConfig    `json:"reconnect"`
	Notifications NotificationConfig `json:"notifications"`
	Server        ServerConfig       `json:"server"`

	// Credential comes from the environment, never the config file.
	Credential string `json:"-"`
}

func LoadConfig(configPath string) (*Config, error) {
	// .env overlay is optional; real deployments set the variable.
	_ = godotenv.Load()

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.Credential = os.Getenv(credentialEnvVar)
	if config.Chat.SocketURL == "" || config.Chat.APIBaseURL == "" {
		return nil, fmt.Errorf("config %s is missing chat endpoints", configPath)
	}

	return &config, nil
}
