// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

// GasEstimates holds the per-action gas amounts used for the
// balance-vs-estimated-cost gate before each demo action.
type GasEstimates struct {
	KeyAuthorization uint64
	SessionKey       uint64
	IntentFlow       uint64
	BatchExecution   uint64
	RandomAction     uint64
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	RPCURL     string
	Network    string
	ListenAddr string
	DBPath     string

	// SecretKey is the 32-byte AES-256 key protecting the stored private keys.
	// nil disables key persistence (the key store returns a sentinel error).
	SecretKey []byte

	DelayMode   model.DelayMode
	DelayLevel  model.DelayLevel
	DelayMinSec int
	DelayMaxSec int

	AutoRetry  bool
	MaxRetries int

	Gas GasEstimates

	TelegramBotToken string
	TelegramChatID   string
}

// HasTelegram returns true when both bot token and chat id are configured.
func (c *Config) HasTelegram() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. PORTOFARM_SECRET_KEY is optional; without it the app starts but
// uploaded keys are not persisted across restarts. Optional variables with
// defaults: PORTOFARM_RPC_URL (https://sepolia.base.org), PORTOFARM_NETWORK
// (base-sepolia), PORTOFARM_LISTEN_ADDR (127.0.0.1:8080), PORTOFARM_DB_PATH
// (portofarm.db), delay and gas-estimate settings.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:      "https://sepolia.base.org",
		Network:     "base-sepolia",
		ListenAddr:  "127.0.0.1:8080",
		DBPath:      "portofarm.db",
		DelayMode:   model.DelayModeSmart,
		DelayLevel:  model.DelayLevelMedium,
		DelayMinSec: 15,
		DelayMaxSec: 30,
		MaxRetries:  3,
		Gas: GasEstimates{
			KeyAuthorization: 100000,
			SessionKey:       120000,
			IntentFlow:       80000,
			BatchExecution:   60000,
			RandomAction:     80000,
		},
	}

	if v, ok := os.LookupEnv("PORTOFARM_RPC_URL"); ok && v != "" {
		cfg.RPCURL = v
	}
	if v, ok := os.LookupEnv("PORTOFARM_NETWORK"); ok && v != "" {
		cfg.Network = v
	}
	if v, ok := os.LookupEnv("PORTOFARM_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("PORTOFARM_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("PORTOFARM_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("PORTOFARM_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("PORTOFARM_SECRET_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("PORTOFARM_DELAY_MODE"); ok {
		switch model.DelayMode(v) {
		case model.DelayModeSmart, model.DelayModeManual:
			cfg.DelayMode = model.DelayMode(v)
		default:
			return nil, fmt.Errorf("PORTOFARM_DELAY_MODE has invalid value %q: want smart or manual", v)
		}
	}
	if v, ok := os.LookupEnv("PORTOFARM_DELAY_LEVEL"); ok {
		switch model.DelayLevel(v) {
		case model.DelayLevelLight, model.DelayLevelMedium, model.DelayLevelHard:
			cfg.DelayLevel = model.DelayLevel(v)
		default:
			return nil, fmt.Errorf("PORTOFARM_DELAY_LEVEL has invalid value %q: want light, medium or hard", v)
		}
	}

	var err error
	if cfg.DelayMinSec, err = intEnv("PORTOFARM_DELAY_MIN", cfg.DelayMinSec); err != nil {
		return nil, err
	}
	if cfg.DelayMaxSec, err = intEnv("PORTOFARM_DELAY_MAX", cfg.DelayMaxSec); err != nil {
		return nil, err
	}
	if cfg.DelayMinSec < 1 {
		cfg.DelayMinSec = 1
	}
	if cfg.DelayMaxSec < cfg.DelayMinSec {
		cfg.DelayMaxSec = cfg.DelayMinSec
	}

	if v, ok := os.LookupEnv("PORTOFARM_AUTO_RETRY"); ok {
		cfg.AutoRetry, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("PORTOFARM_AUTO_RETRY has invalid bool %q: %w", v, err)
		}
	}
	if cfg.MaxRetries, err = intEnv("PORTOFARM_MAX_RETRIES", cfg.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	if cfg.Gas.KeyAuthorization, err = gasEnv("PORTOFARM_GAS_EST_KEY_AUTH", cfg.Gas.KeyAuthorization); err != nil {
		return nil, err
	}
	if cfg.Gas.SessionKey, err = gasEnv("PORTOFARM_GAS_EST_SESSION_KEY", cfg.Gas.SessionKey); err != nil {
		return nil, err
	}
	if cfg.Gas.IntentFlow, err = gasEnv("PORTOFARM_GAS_EST_INTENT", cfg.Gas.IntentFlow); err != nil {
		return nil, err
	}
	if cfg.Gas.BatchExecution, err = gasEnv("PORTOFARM_GAS_EST_BATCH", cfg.Gas.BatchExecution); err != nil {
		return nil, err
	}
	if cfg.Gas.RandomAction, err = gasEnv("PORTOFARM_GAS_EST_RANDOM", cfg.Gas.RandomAction); err != nil {
		return nil, err
	}

	cfg.TelegramBotToken = os.Getenv("PORTOFARM_TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = os.Getenv("PORTOFARM_TELEGRAM_CHAT_ID")

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", name, v, err)
	}
	return n, nil
}

func gasEnv(name string, def uint64) (uint64, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid gas amount %q: %w", name, v, err)
	}
	return n, nil
}
