package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sepolia.base.org", cfg.RPCURL)
	assert.Equal(t, "base-sepolia", cfg.Network)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "portofarm.db", cfg.DBPath)
	assert.Nil(t, cfg.SecretKey)
	assert.Equal(t, uint64(100000), cfg.Gas.KeyAuthorization)
	assert.Equal(t, uint64(60000), cfg.Gas.BatchExecution)
	assert.False(t, cfg.AutoRetry)
	assert.False(t, cfg.HasTelegram())
}

func TestLoad_SecretKey(t *testing.T) {
	t.Setenv("PORTOFARM_SECRET_KEY", "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.SecretKey, 32)
}

func TestLoad_SecretKeyWrongLength(t *testing.T) {
	t.Setenv("PORTOFARM_SECRET_KEY", "abcd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestLoad_InvalidDelayMode(t *testing.T) {
	t.Setenv("PORTOFARM_DELAY_MODE", "turbo")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_DelayBoundsClamped(t *testing.T) {
	t.Setenv("PORTOFARM_DELAY_MODE", "manual")
	t.Setenv("PORTOFARM_DELAY_MIN", "0")
	t.Setenv("PORTOFARM_DELAY_MAX", "-5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.DelayMinSec)
	assert.Equal(t, 1, cfg.DelayMaxSec)
}

func TestLoad_GasOverride(t *testing.T) {
	t.Setenv("PORTOFARM_GAS_EST_INTENT", "90000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(90000), cfg.Gas.IntentFlow)
}

func TestLoad_Telegram(t *testing.T) {
	t.Setenv("PORTOFARM_TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("PORTOFARM_TELEGRAM_CHAT_ID", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.HasTelegram())
}
