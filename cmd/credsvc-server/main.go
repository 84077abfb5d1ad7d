package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	credsvc "github.com/codekids/credsvc"
	"github.com/codekids/credsvc/httpapi"
	"github.com/codekids/credsvc/identity"
)

type serverConfig struct {
	Addr        string `env:"CREDSVC_ADDR" envDefault:":8080"`
	RedisAddr   string `env:"CREDSVC_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Env         string `env:"CREDSVC_ENV" envDefault:"production"`
	EmailDomain string `env:"CREDSVC_EMAIL_DOMAIN" envDefault:"codekids.com"`
	TokenSecret string `env:"CREDSVC_TOKEN_SECRET,required"`
}

func main() {
	// Local development convenience; absence of a .env file is normal.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "credsvc").Logger()

	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid environment")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{cfg.RedisAddr},
	})
	defer client.Close()

	connectBackoff := backoff.NewExponentialBackOff()
	connectBackoff.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}, connectBackoff); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
	}

	tokens, err := identity.NewTokenManager(identity.TokenConfig{
		TTL:           time.Hour,
		SigningMethod: identity.MethodHS256,
		Secret:        []byte(cfg.TokenSecret),
		Issuer:        "credsvc",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("token manager init failed")
	}

	engineConfig := credsvc.DefaultConfig()
	engineConfig.EmailDomain = cfg.EmailDomain

	engine, err := credsvc.New().
		WithConfig(engineConfig).
		WithRedis(client).
		WithIdentityProvider(identity.NewRedisProvider(client, engineConfig.Storage.RedisPrefix, tokens)).
		WithAuditSink(credsvc.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}
	defer engine.Close()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(engine, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("env", cfg.Env).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}
}
