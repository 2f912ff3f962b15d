package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// AppConfig is the full service configuration. Values come from an
// optional YAML file (CONFIG_FILE) overridden by environment variables.
type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	RoomTTLSec     int
	StoreTimeoutMS int

	HistoryLimit int
	ChatLimit    int
	MoveLimit    int

	MsgOverrideDir string
}

// RoomTTL is RoomTTLSec as a duration.
func (c *AppConfig) RoomTTL() time.Duration { return time.Duration(c.RoomTTLSec) * time.Second }

// StoreTimeout is StoreTimeoutMS as a duration.
func (c *AppConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

type fileConfig struct {
	ListenAddr     *string `yaml:"listen_addr"`
	RedisURL       *string `yaml:"redis_url"`
	DatabaseURL    *string `yaml:"database_url"`
	RoomTTLSec     *int    `yaml:"room_ttl"`
	StoreTimeoutMS *int    `yaml:"store_timeout_ms"`
	HistoryLimit   *int    `yaml:"history_limit"`
	ChatLimit      *int    `yaml:"chat_limit"`
	MoveLimit      *int    `yaml:"move_limit"`
	MsgOverrideDir *string `yaml:"msg_override_dir"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:     ":3000",
		RoomTTLSec:     86400,
		StoreTimeoutMS: 2000,
		HistoryLimit:   100,
		ChatLimit:      100,
		MoveLimit:      500,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = firstNonEmpty(os.Getenv("REDIS_URL"), cfg.RedisURL)
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), cfg.DatabaseURL)
	cfg.MsgOverrideDir = firstNonEmpty(os.Getenv("MSG_OVERRIDE_DIR"), cfg.MsgOverrideDir)

	applyIntEnv("ROOM_TTL", &cfg.RoomTTLSec)
	applyIntEnv("STORE_TIMEOUT_MS", &cfg.StoreTimeoutMS)
	applyIntEnv("HISTORY_LIMIT", &cfg.HistoryLimit)
	applyIntEnv("CHAT_LIMIT", &cfg.ChatLimit)
	applyIntEnv("MOVE_LIMIT", &cfg.MoveLimit)

	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.RedisURL, fc.RedisURL)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.MsgOverrideDir, fc.MsgOverrideDir)
	setInt(&cfg.RoomTTLSec, fc.RoomTTLSec)
	setInt(&cfg.StoreTimeoutMS, fc.StoreTimeoutMS)
	setInt(&cfg.HistoryLimit, fc.HistoryLimit)
	setInt(&cfg.ChatLimit, fc.ChatLimit)
	setInt(&cfg.MoveLimit, fc.MoveLimit)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil && *v > 0 {
		*dst = *v
	}
}

func applyIntEnv(key string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
