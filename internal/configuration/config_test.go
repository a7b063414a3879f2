package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigReadsFileAndEnvCredential(t *testing.T) {
	t.Setenv("ARCANA_TOKEN", "env-token")
	path := writeConfig(t, `{
		"chat": {
			"socket_url": "wss://chat.example.com/ws",
			"api_base_url": "https://api.example.com",
			"user_id": "u1",
			"role": "client"
		},
		"reconnect": {"max_attempts": 5, "initial_delay_ms": 500, "max_delay_ms": 4000},
		"notifications": {"enabled": true, "sounds": {"join": false}},
		"server": {"monitor_port": 9180}
	}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://chat.example.com/ws", config.Chat.SocketURL)
	assert.Equal(t, 5, config.Reconnect.MaxAttempts)
	assert.False(t, config.Notifications.Sounds["join"])
	assert.Equal(t, "env-token", config.Credential)
}

func TestLoadConfigRejectsMissingEndpoints(t *testing.T) {
	path := writeConfig(t, `{"chat": {"socket_url": "", "api_base_url": ""}}`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
