package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gatherkit/walletgate/adapters/accounts"
	"github.com/gatherkit/walletgate/adapters/chains/ethereum"
	"github.com/gatherkit/walletgate/adapters/chains/solana"
	"github.com/gatherkit/walletgate/adapters/events"
	"github.com/gatherkit/walletgate/adapters/ratelimit"
	"github.com/gatherkit/walletgate/adapters/store"
	"github.com/gatherkit/walletgate/config"
	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/metrics"
	"github.com/gatherkit/walletgate/ports"
	"github.com/gatherkit/walletgate/service"
	transport "github.com/gatherkit/walletgate/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg)

	// Postgres holds the wallet challenges.
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open postgres")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to ping postgres")
	}
	cancel()

	nonceStore := store.NewPostgresStore(db)
	if err := nonceStore.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	// Redis backs the rate-limit counters and the event stream.
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis URL")
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	accountClient := accounts.NewClient(cfg.AccountAPIURL, []byte(cfg.AccountAPISecret), 10*time.Second)

	registry := prometheus.NewRegistry()
	authMetrics := metrics.New(registry)

	authService := service.NewAuthService(
		[]core.ChainStrategy{ethereum.New(), solana.New()},
		nonceStore,
		ratelimit.NewRedisLimiter(redisClient),
		accountClient,
		events.NewWatermillPublisher(publisher),
		authMetrics,
		log,
		service.Options{
			ChallengeTTL: cfg.ChallengeTTL,
			RatePolicy: ports.RatePolicy{
				MaxAttempts: cfg.RateMaxAttempts,
				Window:      cfg.RateWindow,
				Block:       cfg.RateBlock,
			},
			StrictDomainCheck: cfg.StrictDomainCheck,
			RedirectURL:       cfg.RedirectURL,
		},
	)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.SetupRouter(authService, log, registry)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Environment == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "walletgate").Logger()
}
