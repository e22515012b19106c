package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/linkbot/internal/api"
	"github.com/nidhogg/linkbot/internal/command"
	"github.com/nidhogg/linkbot/internal/config"
	"github.com/nidhogg/linkbot/internal/gateway"
	"github.com/nidhogg/linkbot/internal/ratelimit"
	"github.com/nidhogg/linkbot/internal/shortener"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/linkbot.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Starting linkbot...", zap.String("config", cfgPath))

	client := shortener.NewClient(shortener.Config{
		BaseURL:     cfg.Shortener.BaseURL,
		ShortenPath: cfg.Shortener.ShortenPath,
		HealthPath:  cfg.Shortener.HealthPath,
		Timeout:     cfg.Shortener.Timeout(),
	}, logger)

	// Optional per-user rate limit
	var limiter ratelimit.Limiter = ratelimit.Nop{}
	var redisLimiter *ratelimit.RedisLimiter
	if cfg.RateLimit.Enabled {
		rl, rlErr := ratelimit.NewRedisLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.Limit, cfg.RateLimit.Window(), logger)
		if rlErr != nil {
			logger.Warn("Redis unavailable, running without rate limiting", zap.Error(rlErr))
		} else {
			limiter = rl
			redisLimiter = rl
			logger.Info("Rate limiting enabled",
				zap.Int("limit", cfg.RateLimit.Limit),
				zap.Duration("window", cfg.RateLimit.Window()))
		}
	}

	registry := command.NewRegistry()
	registry.Register(command.NewShortenHandler(client, limiter, logger).Command())

	// Wire handler, commands and ready hook BEFORE registering adapters
	// (Register captures them)
	probe := healthProbe(client, logger)
	gw := gateway.NewGateway(logger)
	gw.SetHandler(registry.Dispatch)
	gw.SetCommands(registry.List())
	gw.SetReadyHook(func(ctx context.Context, platform string) { probe(ctx) })

	var restAdapter *gateway.RESTAdapter
	if cfg.Gateway.REST.Enabled {
		restAdapter = gateway.NewRESTAdapter(logger)
		gw.Register(restAdapter)
	}
	if cfg.Gateway.Slack.Enabled {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, cfg.Gateway.Discord.GuildID, logger))
	}

	gwCtx, cancelGW := context.WithCancel(context.Background())
	defer cancelGW()
	if err := gw.ConnectAll(gwCtx); err != nil {
		logger.Fatal("no gateway adapter connected", zap.Error(err))
	}
	if !cfg.Gateway.Discord.Enabled && !cfg.Gateway.Slack.Enabled {
		probe(gwCtx)
	}

	// Start server
	var srv *http.Server
	if restAdapter != nil {
		port := fmt.Sprintf("%d", cfg.Server.Port)
		if port == "0" {
			port = "3210"
		}
		handler := api.NewHandler(gw, restAdapter, registry, client, logger)
		srv = &http.Server{
			Addr:    ":" + port,
			Handler: handler.Router(),
		}
		go func() {
			logger.Info("linkbot listening", zap.String("port", port))
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				logger.Fatal("server error", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down linkbot...")
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		srv.Shutdown(ctx)
		cancel()
	}
	cancelGW()
	gw.Close()
	if redisLimiter != nil {
		redisLimiter.Close()
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

// healthProbe returns a best-effort check of the shortening service that
// runs at most once, on the first platform that becomes ready.
func healthProbe(client *shortener.Client, logger *zap.Logger) func(context.Context) {
	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			if err := client.CheckHealth(ctx); err != nil {
				logger.Warn("URL shortener not reachable. Make sure it is running.",
					zap.String("base_url", client.BaseURL()), zap.Error(err))
				return
			}
			logger.Info("Connected to the URL shortener", zap.String("base_url", client.BaseURL()))
		})
	}
}
