// Command eve-market-bot is a Twitch chat bot that answers EVE Online market lookups.
// It:
//   - Loads configuration and initializes structured logging, metrics and tracing.
//   - Loads the static item catalog and, when DB_DSN is set, the persistent resolution cache.
//   - Connects to Twitch chat and dispatches !market, !info, !site and !ping commands.
//   - Exposes a minimal HTTP server with /, /_health, /status and /metrics when HTTP_ADDR or PORT is set.
//
// Shutdown is graceful on SIGINT/SIGTERM. The exit code is 1 on startup failure or when
// shutdown exceeds SHUTDOWN_TIMEOUT.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nexis84/Eve-Market-Bot/catalog"
	"github.com/nexis84/Eve-Market-Bot/chat"
	"github.com/nexis84/Eve-Market-Bot/config"
	"github.com/nexis84/Eve-Market-Bot/db"
	"github.com/nexis84/Eve-Market-Bot/dispatch"
	"github.com/nexis84/Eve-Market-Bot/esi"
	"github.com/nexis84/Eve-Market-Bot/fuzzwork"
	"github.com/nexis84/Eve-Market-Bot/market"
	"github.com/nexis84/Eve-Market-Bot/ratelimit"
	"github.com/nexis84/Eve-Market-Bot/resolver"
	"github.com/nexis84/Eve-Market-Bot/server"
	"github.com/nexis84/Eve-Market-Bot/telemetry"
	"github.com/nexis84/Eve-Market-Bot/twitchapi"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		return 1
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("eve-market-bot", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		return 1
	}
	defer shutdownTracing()

	hub, err := market.LookupHub(cfg.MarketHub)
	if err != nil {
		slog.Error("market hub invalid", slog.Any("err", err))
		return 1
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	apiLimiter := ratelimit.New("api", cfg.APIMinInterval)
	chatLimiter := ratelimit.New("chat", cfg.ChatMinInterval)

	username, err := botLogin(ctx, httpClient, cfg)
	if err != nil {
		slog.Error("twitch token check failed", slog.Any("err", err))
		return 1
	}

	cat := loadCatalog(ctx, httpClient, cfg)

	cache, database := openCache(ctx, cfg)
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		go db.StartRetentionJob(ctx, database, db.RetentionPolicy{MaxAge: cfg.ResolveCacheTTL, Interval: cfg.CachePruneInterval})
	}

	esiClient := esi.New(cfg.ESIBaseURL, cfg.UserAgent, httpClient, apiLimiter)
	esiClient.MaxRetries = cfg.MarketRetries
	esiClient.RetryBase = cfg.MarketRetryBase
	fw := &fuzzwork.Client{BaseURL: cfg.FuzzworkBaseURL, UserAgent: cfg.UserAgent, HTTPClient: httpClient, Limiter: apiLimiter}

	res := resolver.New(cache,
		resolver.DefaultStrategies(cat, esiClient, fw),
		resolver.NameSuggester{Catalog: cat, Searcher: esiClient})

	sites, err := dispatch.DefaultSites()
	if err != nil {
		slog.Error("site table invalid", slog.Any("err", err))
		return 1
	}
	dispatcher := dispatch.New(res, market.NewFetcher(esiClient), hub, cat.Name, sites)

	session := chat.NewSession(chat.Options{
		Username:       username,
		Token:          cfg.TwitchOAuthToken,
		Channels:       cfg.TwitchChannels,
		ConnectTimeout: cfg.ConnectTimeout,
		Limiter:        chatLimiter,
	}, dispatcher)

	// HTTP server (liveness/status/metrics); answers 503 until chat is connected.
	httpDone := make(chan struct{})
	if cfg.HTTPAddr != "" {
		go func() {
			defer close(httpDone)
			if err := server.Start(ctx, cfg.HTTPAddr, server.Options{
				Health:   session,
				Limiters: []*ratelimit.Limiter{apiLimiter, chatLimiter},
				Hub:      hub.Name,
				Version:  version,
			}); err != nil {
				slog.Error("http server exited with error", slog.Any("err", err))
			}
		}()
	} else {
		close(httpDone)
	}

	slog.Info("connecting to twitch chat",
		slog.String("username", username),
		slog.Any("channels", cfg.TwitchChannels),
		slog.String("hub", hub.Name),
		slog.Int("catalog_items", cat.Len()))
	if err := session.Connect(ctx); err != nil {
		slog.Error("twitch chat connect failed", slog.Any("err", err))
		stop()
		return 1
	}

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down", slog.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	code := 0
	if err := session.Disconnect(shutdownCtx); err != nil {
		slog.Error("chat shutdown incomplete", slog.Any("err", err))
		code = 1
	}
	select {
	case <-httpDone:
	case <-shutdownCtx.Done():
		slog.Error("http server shutdown timed out")
		code = 1
	}
	if code == 0 {
		slog.Info("shutdown complete")
	}
	return code
}

// setupLogging configures the default logger from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}

// botLogin validates the chat token and returns the login to connect as. Without
// TWITCH_BOT_USERNAME the token's own login is used and a failed check is fatal;
// otherwise the check is best effort.
func botLogin(ctx context.Context, hc *http.Client, cfg *config.Config) (string, error) {
	vctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	info, err := twitchapi.ValidateToken(vctx, hc, cfg.TwitchOAuthToken)
	if err != nil {
		if cfg.TwitchBotUsername == "" || errors.Is(err, twitchapi.ErrInvalidToken) {
			return "", err
		}
		slog.Warn("twitch token validation unavailable, continuing", slog.Any("err", err))
		return cfg.TwitchBotUsername, nil
	}
	if !info.HasScopes(twitchapi.ChatScopes...) {
		slog.Warn("twitch token is missing chat scopes", slog.Any("scopes", info.Scopes), slog.Any("want", twitchapi.ChatScopes))
	}
	if exp := info.ExpiresAt(time.Now()); !exp.IsZero() {
		slog.Info("twitch token validated", slog.String("login", info.Login), slog.Time("expires_at", exp))
	}
	if cfg.TwitchBotUsername != "" && !strings.EqualFold(cfg.TwitchBotUsername, info.Login) {
		slog.Warn("TWITCH_BOT_USERNAME differs from token owner, using token owner",
			slog.String("configured", cfg.TwitchBotUsername), slog.String("token_login", info.Login))
	}
	return strings.ToLower(info.Login), nil
}

// loadCatalog loads the static catalog. Without CATALOG_SOURCE, or when the source cannot
// be read, the embedded seed catalog is used.
func loadCatalog(ctx context.Context, hc *http.Client, cfg *config.Config) *catalog.Catalog {
	if cfg.CatalogSource == "" {
		cat := catalog.Default()
		slog.Info("static catalog loaded", slog.Int("items", cat.Len()), slog.String("source", "embedded"))
		return cat
	}
	cat, err := catalog.Load(ctx, cfg.CatalogSource, hc, cfg.UserAgent)
	if err != nil {
		slog.Warn("static catalog load failed, using embedded seed list", slog.Any("err", err), slog.String("source", cfg.CatalogSource))
		return catalog.Default()
	}
	slog.Info("static catalog loaded", slog.Int("items", cat.Len()), slog.String("source", cfg.CatalogSource))
	return cat
}

// openCache returns the Postgres-backed cache when DB_DSN is set and reachable, and the
// in-memory cache otherwise.
func openCache(ctx context.Context, cfg *config.Config) (resolver.Cache, *sql.DB) {
	if cfg.DBDsn == "" {
		return resolver.NewMemoryCache(cfg.ResolveCacheTTL), nil
	}
	database, err := db.Connect(ctx, cfg.DBDsn)
	if err != nil {
		slog.Warn("resolution cache db unavailable, using memory", slog.Any("err", err))
		return resolver.NewMemoryCache(cfg.ResolveCacheTTL), nil
	}
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Migrate(ctx, database); err != nil {
		slog.Warn("resolution cache migration failed, using memory", slog.Any("err", err))
		_ = database.Close()
		return resolver.NewMemoryCache(cfg.ResolveCacheTTL), nil
	}
	return resolver.NewPostgresCache(database, cfg.ResolveCacheTTL), database
}
