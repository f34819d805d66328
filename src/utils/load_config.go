package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/hendrywilliam/tether/src/gateway"
	"github.com/hendrywilliam/tether/src/structs"
)

const (
	DefaultDiscordURL     = "https://discord.com"
	DefaultDiscordRetries = 4
)

type AppConfig struct {
	DiscordBotToken string
	DiscordURL      string
	DiscordRetries  int
	DiscordIntents  gateway.Intents
	DiscordGuildID  structs.Snowflake
	StatusAddress   string
	LogLevel        slog.Level
	LogJSON         bool
}

// LoadConfiguration reads the environment. Every missing or invalid variable
// is reported in the returned error.
func LoadConfiguration() (AppConfig, error) {
	cfg := AppConfig{
		DiscordURL:     DefaultDiscordURL,
		DiscordRetries: DefaultDiscordRetries,
		DiscordIntents: gateway.DefaultIntents,
		LogLevel:       slog.LevelInfo,
	}
	var errs []error

	requiredEnv := map[string]*string{
		"DISCORD_TOKEN": &cfg.DiscordBotToken,
	}
	for k, v := range requiredEnv {
		val, ok := os.LookupEnv(k)
		if !ok || strings.TrimSpace(val) == "" {
			errs = append(errs, fmt.Errorf("provide: %s", k))
			continue
		}
		*v = val
	}

	if val, ok := lookup("DISCORD_URL"); ok {
		u, err := url.Parse(val)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("DISCORD_URL: invalid url %q", val))
		} else {
			cfg.DiscordURL = val
		}
	}
	if val, ok := lookup("DISCORD_RETRIES"); ok {
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			errs = append(errs, fmt.Errorf("DISCORD_RETRIES: must be a positive integer, got %q", val))
		} else {
			cfg.DiscordRetries = n
		}
	}
	if val, ok := lookup("DISCORD_INTENTS"); ok {
		intents, err := gateway.ParseIntents(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("DISCORD_INTENTS: %w", err))
		} else {
			cfg.DiscordIntents = intents
		}
	}
	if val, ok := lookup("DISCORD_GUILD_ID"); ok {
		id := structs.SnowflakeFromString(val)
		if id == 0 {
			errs = append(errs, fmt.Errorf("DISCORD_GUILD_ID: invalid snowflake %q", val))
		} else {
			cfg.DiscordGuildID = id
		}
	}
	if val, ok := lookup("STATUS_ADDRESS"); ok {
		cfg.StatusAddress = val
	}
	if val, ok := lookup("LOG_LEVEL"); ok {
		level, err := ParseLogLevel(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		} else {
			cfg.LogLevel = level
		}
	}
	if val, ok := lookup("LOG_FORMAT"); ok {
		asJSON, err := ParseLogFormat(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
		} else {
			cfg.LogJSON = asJSON
		}
	}
	return cfg, errors.Join(errs...)
}

func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// ParseLogFormat reports whether s selects JSON output.
func ParseLogFormat(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "console", "":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("unknown log format %q", s)
	}
}

func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	return val, ok && val != ""
}
