package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("MAX_EXPOSURE_PERCENT", "30")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("SYMBOLS", "btcusdt, ethusdt")

	cfg, err := Load(writeYAML(t, `
trading:
  initial_balance: 5000
  cycle_interval: 2m
strategy:
  cooldown: 45m
`))
	require.NoError(t, err)

	assert.Equal(t, 5000.0, cfg.Trading.InitialBalance)
	assert.Equal(t, 2.0, cfg.Trading.PositionSizePercent)
	assert.Equal(t, 30.0, cfg.Trading.MaxExposurePercent)
	assert.Equal(t, 2*time.Minute, cfg.Trading.CycleInterval)
	assert.Equal(t, 90*time.Minute, cfg.Trading.FreshnessMaxWait)
	assert.Equal(t, 45*time.Minute, cfg.Strategy.Cooldown)
	assert.Equal(t, int64(12345), cfg.Telegram.ChatID)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, "virtual_trading_results_v2", cfg.Trading.ResultsDir)
}

func TestLoad_RejectsBadFinancials(t *testing.T) {
	cases := map[string]string{
		"balance":  "trading:\n  initial_balance: 0\n",
		"size":     "trading:\n  position_size_percent: 150\n",
		"exposure": "trading:\n  position_size_percent: 5\n  max_exposure_percent: 2\n",
		"ema":      "strategy:\n  ema_short: 50\n  ema_long: 20\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_TelegramTokenNeedsChat(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	_, err := Load(writeYAML(t, "telegram:\n  token: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat_id")

	cfg, err := Load(writeYAML(t, "telegram:\n  token: x\n  chat_id: 42\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
}
