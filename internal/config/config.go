// Package config loads server settings from the environment and the default
// room settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jansou/score-engine/internal/settlement"
)

type Config struct {
	// HTTP
	Port               string
	CORSAllowedOrigins []string

	// Storage
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	// Idle-room cleanup
	IdleRoomTTL   time.Duration
	SweepInterval time.Duration

	// Settings applied to newly created rooms
	RoomDefaults settlement.RoomConfig
}

// BuiltinRoomDefaults are used when no defaults file is configured. The chip
// rate is in storage form (1 chip = 100 points).
func BuiltinRoomDefaults() settlement.RoomConfig {
	return settlement.RoomConfig{
		HandicapScheme: settlement.Scheme5_10,
		HandicapLow:    5,
		HandicapHigh:   10,
		StartingPoints: 25000,
		ReturnPoints:   30000,
		RateType:       settlement.RateTen5,
		BonusValue:     20,
		ChipRate:       decimal.NewFromInt(1),
	}
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvDefault("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		CORSAllowedOrigins: splitList(getEnvDefault("CORS_ALLOWED_ORIGINS", "*")),
	}

	var err error
	if cfg.CacheTTL, err = getDurationDefault("CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdleRoomTTL, err = getDurationDefault("IDLE_ROOM_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDurationDefault("SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.IdleRoomTTL <= 0 {
		return nil, fmt.Errorf("IDLE_ROOM_TTL must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}

	if cfg.RoomDefaults, err = LoadRoomDefaults(os.Getenv("ROOM_DEFAULTS_FILE")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// roomDefaultsFile mirrors the YAML layout. Unset fields keep the built-in
// value. chip_rate is the user-facing rate ("100" means 1 chip = 100 points).
type roomDefaultsFile struct {
	HandicapScheme     *string `yaml:"handicap_scheme"`
	HandicapLow        *int    `yaml:"handicap_low"`
	HandicapHigh       *int    `yaml:"handicap_high"`
	StartingPoints     *int    `yaml:"starting_points"`
	RateType           *string `yaml:"rate_type"`
	CustomReturnPoints *int    `yaml:"custom_return_points"` // implies rate_type custom when rate_type is absent
	BonusValue         *int    `yaml:"bonus_value"`
	ChipRate           *string `yaml:"chip_rate"`
}

// LoadRoomDefaults reads default room settings from a YAML file layered over
// the built-in defaults. An empty path or a missing file yields the built-in
// defaults. The result is validated with settlement.Resolve.
func LoadRoomDefaults(path string) (settlement.RoomConfig, error) {
	rc := BuiltinRoomDefaults()
	if path == "" {
		return rc, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rc, nil
		}
		return settlement.RoomConfig{}, fmt.Errorf("read room defaults: %w", err)
	}

	var f roomDefaultsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return settlement.RoomConfig{}, fmt.Errorf("parse room defaults %s: %w", path, err)
	}

	if f.HandicapScheme != nil {
		rc.HandicapScheme = settlement.Scheme(*f.HandicapScheme)
	}
	if f.HandicapLow != nil {
		rc.HandicapLow = *f.HandicapLow
	}
	if f.HandicapHigh != nil {
		rc.HandicapHigh = *f.HandicapHigh
	}
	if f.StartingPoints != nil {
		rc.StartingPoints = *f.StartingPoints
	}
	if f.RateType != nil || f.CustomReturnPoints != nil {
		rate, custom := settlement.RateCustom, rc.ReturnPoints
		if f.RateType != nil {
			rate = settlement.RateType(*f.RateType)
		}
		if f.CustomReturnPoints != nil {
			custom = *f.CustomReturnPoints
		}
		ret, err := settlement.ReturnPointsFor(rate, custom)
		if err != nil {
			return settlement.RoomConfig{}, fmt.Errorf("room defaults %s: %w", path, err)
		}
		rc.RateType, rc.ReturnPoints = rate, ret
	}
	if f.BonusValue != nil {
		rc.BonusValue = *f.BonusValue
	}
	if f.ChipRate != nil {
		rate, err := decimal.NewFromString(*f.ChipRate)
		if err != nil {
			return settlement.RoomConfig{}, fmt.Errorf("room defaults chip_rate %q: %w", *f.ChipRate, err)
		}
		rc.ChipRate = settlement.ChipRateFromInput(rate)
	}

	if _, err := settlement.Resolve(rc); err != nil {
		return settlement.RoomConfig{}, fmt.Errorf("room defaults %s: %w", path, err)
	}
	return rc, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
