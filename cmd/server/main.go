package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/ticket-exchange/internal/config"
	"github.com/iliyamo/ticket-exchange/internal/database"
	"github.com/iliyamo/ticket-exchange/internal/exchange"
	"github.com/iliyamo/ticket-exchange/internal/handler"
	"github.com/iliyamo/ticket-exchange/internal/logger"
	"github.com/iliyamo/ticket-exchange/internal/matching"
	"github.com/iliyamo/ticket-exchange/internal/middleware"
	"github.com/iliyamo/ticket-exchange/internal/queue"
	"github.com/iliyamo/ticket-exchange/internal/repository"
	"github.com/iliyamo/ticket-exchange/internal/router"
	"github.com/iliyamo/ticket-exchange/internal/service"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	store := repository.NewStore(db)
	tokens := repository.NewTokenRepo(db)

	matchmaker := matching.NewMatchmaker(store, store, matching.Config{
		Weights:     config.LoadScoring(),
		Concurrency: cfg.PairingConcurrency,
	}, logger.Component(log, "matchmaker"))

	publisher := service.NewLifecyclePublisher(cfg.RabbitURL, logger.Component(log, "publisher"))
	defer publisher.Close()

	engine := exchange.NewEngine(store, store, store, publisher, exchange.Config{
		MatchTTL:       cfg.MatchTTL,
		PublishTimeout: cfg.EventPublishTimeout,
	}, logger.Component(log, "exchange"))

	consumer := queue.NewConsumer(cfg.RabbitURL, logger.Component(log, "consumer"),
		queue.NewAuditLog(cfg.AuditLogDir),
		queue.Notify{Notifier: service.NewNotifier(cfg.PubNub, logger.Component(log, "notifier"))},
	)

	// Redis is optional: without it requests are neither limited nor cached.
	var limiter, cache echo.MiddlewareFunc
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.Component(log, "ratelimit"))
		cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger.Component(log, "cache"))
	}

	httpLog := logger.Component(log, "http")
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			httpLog.Info().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, store.Users, tokens, httpLog),
		Tickets:  handler.NewTicketHandler(store.Tickets, store.Users, store.Games, httpLog),
		Pairings: handler.NewPairingHandler(matchmaker, store.Tickets, httpLog),
		Matches:  handler.NewMatchHandler(engine, httpLog),
		Admin:    handler.NewAdminHandler(store.Games, engine, httpLog),
		Board:    handler.NewBoardHandler(store.Games, store.Tickets, httpLog),
		DB:       db,
	}, router.Options{JWTSecret: cfg.JWTSecret, Limiter: limiter, Cache: cache})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := consumer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		// lifecycle events still in flight are delivered before exit
		engine.Wait()
		return err
	})
	return g.Wait()
}
