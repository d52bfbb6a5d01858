package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var relayEnv = []string{
	"PORT", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL",
	"ARK_BASE_URL", "ARK_REGION", "ARK_TEMPERATURE", "ARK_MAX_TOKENS", "ARK_TIMEOUT",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_API_BASE", "TELEGRAM_TIMEOUT",
	"WEBHOOK_BASE_URL", "WEBHOOK_SECRET", "HISTORY_TRIM_THRESHOLD", "HISTORY_WINDOW",
	"LOG_LEVEL", "LOG_FORMAT", "BOT_PROFILE_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range relayEnv {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 1e-6)
	assert.Equal(t, 500, cfg.AI.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBase)
	assert.Equal(t, HistoryConfig{TrimThreshold: 12, Window: 10}, cfg.History)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultBotProfile(), cfg.Bot)
	assert.Error(t, cfg.Telegram.Validate())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("ARK_MODEL", "doubao-pro")
	t.Setenv("ARK_TEMPERATURE", "0.2")
	t.Setenv("ARK_MAX_TOKENS", "256")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("WEBHOOK_BASE_URL", "https://relay.example.com/")
	t.Setenv("HISTORY_TRIM_THRESHOLD", "20")
	t.Setenv("HISTORY_WINDOW", "16")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.AI.Enabled())
	assert.InDelta(t, 0.2, cfg.AI.Temperature, 1e-6)
	assert.Equal(t, 256, cfg.AI.MaxTokens)
	assert.NoError(t, cfg.Telegram.Validate())
	assert.Equal(t, "https://api.telegram.org/bot123:abc", cfg.Telegram.BotAPIURL())
	assert.Equal(t, "https://relay.example.com/webhook", cfg.Telegram.WebhookURL())
	assert.Equal(t, HistoryConfig{TrimThreshold: 20, Window: 16}, cfg.History)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"port with space":     {"PORT", "80 80"},
		"temperature text":    {"ARK_TEMPERATURE", "warm"},
		"temperature range":   {"ARK_TEMPERATURE", "3.5"},
		"max tokens zero":     {"ARK_MAX_TOKENS", "0"},
		"timeout":             {"TELEGRAM_TIMEOUT", "soon"},
		"window >= threshold": {"HISTORY_WINDOW", "12"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestWebhookURLEmptyWithoutBase(t *testing.T) {
	assert.Equal(t, "", TelegramConfig{}.WebhookURL())
}

func TestLoadBotProfile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system_prompt: |\n  You are a pirate.\n"), 0o600))
	t.Setenv("BOT_PROFILE_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "You are a pirate.", cfg.Bot.SystemPrompt)
	assert.Equal(t, DefaultApology, cfg.Bot.Apology)
}

func TestLoadBotProfileErrors(t *testing.T) {
	_, err := LoadBotProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system_prompt: [unterminated"), 0o600))
	_, err = LoadBotProfile(path)
	assert.Error(t, err)
}

func TestLoadKeepsParseCause(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARK_MAX_TOKENS", "lots")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARK_MAX_TOKENS")

	var numErr *strconv.NumError
	require.ErrorAs(t, err, &numErr)
	assert.Equal(t, numErr, errors.Cause(err))
}
