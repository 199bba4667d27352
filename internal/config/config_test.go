package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, filepath.Join(".", "settings.json"), cfg.SettingsFile)
	assert.Equal(t, filepath.Join(".", "cookies.json"), cfg.CookiesFile)
	assert.Equal(t, filepath.Join(".", "miner.lock"), cfg.LockFile)
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.Addr)
	assert.False(t, cfg.Server.Enabled)
	assert.False(t, cfg.Chat.Enabled)
}

func TestLoadAnchorsRelativePathsUnderDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/miner
settings_file: prefs.json
cookies_file: /etc/miner/cookies.json
log_dir: logs
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/miner/prefs.json", cfg.SettingsFile)
	assert.Equal(t, "/etc/miner/cookies.json", cfg.CookiesFile, "absolute paths stay put")
	assert.Equal(t, "/var/lib/miner/miner.lock", cfg.LockFile)
	assert.Equal(t, "/var/lib/miner/logs", cfg.LogDir)
}

func TestLoadParsesServerAndChat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chat:
  enabled: true
server:
  enabled: true
  addr: ":9999"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Chat.Enabled)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "tok-from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "chat-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
notifications:
  telegram:
    enabled: true
    events: ["DROP_CLAIM"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Notifications.Telegram)
	assert.Equal(t, "tok-from-env", cfg.Notifications.Telegram.Token)
	assert.Equal(t, "chat-from-env", cfg.Notifications.Telegram.ChatID)
}

func TestLoadRejectsEnabledProviderWithoutSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
notifications:
  discord:
    enabled: true
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
