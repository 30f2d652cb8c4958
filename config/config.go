// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with only a chat token set.
// Use Validate before connecting to chat; a missing token is a fatal startup error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingToken is returned by Validate when no chat OAuth token is configured.
var ErrMissingToken = errors.New("missing twitch env: require TWITCH_OAUTH_TOKEN")

// DefaultUserAgent identifies the bot to ESI, whose usage policy asks for contact details.
const DefaultUserAgent = "EveMarketBot/1.0 (+https://github.com/nexis84/Eve-Market-Bot)"

type Config struct {
	// Twitch
	TwitchOAuthToken  string
	TwitchBotUsername string
	TwitchChannels    []string
	ConnectTimeout    time.Duration

	// Upstream APIs
	UserAgent       string
	ESIBaseURL      string
	FuzzworkBaseURL string
	CatalogSource   string
	HTTPTimeout     time.Duration

	// Market
	MarketHub       string
	MarketRetries   int
	MarketRetryBase time.Duration

	// Throttling
	APIMinInterval  time.Duration
	ChatMinInterval time.Duration

	// Resolution cache
	ResolveCacheTTL    time.Duration
	CachePruneInterval time.Duration
	DBDsn              string

	// Process
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// Load reads environment variables and applies defaults. It only fails on values that are
// present but malformed; use Validate for required credentials.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchOAuthToken = strings.TrimPrefix(strings.TrimSpace(os.Getenv("TWITCH_OAUTH_TOKEN")), "oauth:")
	cfg.TwitchBotUsername = strings.ToLower(strings.TrimSpace(os.Getenv("TWITCH_BOT_USERNAME")))
	cfg.TwitchChannels = splitChannels(os.Getenv("TWITCH_CHANNELS"))
	if len(cfg.TwitchChannels) == 0 {
		cfg.TwitchChannels = splitChannels(os.Getenv("TWITCH_CHANNEL"))
	}

	cfg.UserAgent = os.Getenv("USER_AGENT")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	cfg.ESIBaseURL = envOr("ESI_BASE_URL", "https://esi.evetech.net/latest")
	cfg.FuzzworkBaseURL = envOr("FUZZWORK_BASE_URL", "https://www.fuzzwork.co.uk")
	cfg.CatalogSource = os.Getenv("CATALOG_SOURCE")

	cfg.MarketHub = strings.ToLower(envOr("MARKET_HUB", "jita"))
	cfg.DBDsn = os.Getenv("DB_DSN")

	// HTTP_ADDR wins; PORT is the convention on most container hosts.
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		if p := os.Getenv("PORT"); p != "" {
			cfg.HTTPAddr = ":" + p
		}
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"CONNECT_TIMEOUT", 15 * time.Second, &cfg.ConnectTimeout},
		{"HTTP_TIMEOUT", 10 * time.Second, &cfg.HTTPTimeout},
		{"MARKET_RETRY_BASE", 500 * time.Millisecond, &cfg.MarketRetryBase},
		{"API_MIN_INTERVAL", 500 * time.Millisecond, &cfg.APIMinInterval},
		{"CHAT_MIN_INTERVAL", 1500 * time.Millisecond, &cfg.ChatMinInterval},
		{"RESOLVE_CACHE_TTL", time.Hour, &cfg.ResolveCacheTTL},
		{"CACHE_PRUNE_INTERVAL", 6 * time.Hour, &cfg.CachePruneInterval},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	cfg.MarketRetries = 3
	if v := os.Getenv("MARKET_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MARKET_MAX_RETRIES %q", v)
		}
		cfg.MarketRetries = n
	}

	return cfg, nil
}

// Validate checks the fields required to start the chat session.
func (c *Config) Validate() error {
	if c.TwitchOAuthToken == "" {
		return ErrMissingToken
	}
	if len(c.TwitchChannels) == 0 {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNELS or TWITCH_CHANNEL")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return d, nil
}

// splitChannels parses a comma separated channel list, dropping blanks and any leading '#'.
func splitChannels(s string) []string {
	var out []string
	for _, ch := range strings.Split(s, ",") {
		ch = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
		if ch != "" {
			out = append(out, ch)
		}
	}
	return out
}
