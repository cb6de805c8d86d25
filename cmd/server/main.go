package main // Entry point package

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ev-charging-reservation/internal/booking"
	"github.com/iliyamo/ev-charging-reservation/internal/config"
	"github.com/iliyamo/ev-charging-reservation/internal/database"
	"github.com/iliyamo/ev-charging-reservation/internal/handler"
	"github.com/iliyamo/ev-charging-reservation/internal/metrics"
	"github.com/iliyamo/ev-charging-reservation/internal/queue"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
	"github.com/iliyamo/ev-charging-reservation/internal/router"
)

func main() {
	// .env is optional; real deployments set variables in the environment.
	_ = godotenv.Load()

	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "ev-charging").Logger()
	if cfg.Env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// A nil client disables caching and rate limiting; the API stays up.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn().Msg("redis unavailable; cache and rate limiting disabled")
	}

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	stationRepo := repository.NewStationRepo(db)
	bookingRepo := repository.NewBookingRepo(db)

	engine := booking.NewEngine(bookingRepo, logger)
	m := metrics.New("evcharge")

	publishEvents := cfg.AMQPURL != "" || os.Getenv("RABBITMQ_URL") != ""
	if publishEvents {
		go func() {
			if err := queue.StartBookingConsumer(); err != nil {
				logger.Error().Err(err).Msg("booking consumer stopped")
			}
		}()
	} else {
		logger.Info().Msg("no broker configured; booking events disabled")
	}

	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	stationHandler := handler.NewStationHandler(stationRepo)
	bookingHandler := handler.NewBookingHandler(engine, bookingRepo, m, logger, publishEvents)

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, stationHandler, config.LoadCacheConfig(), rdb)
	router.RegisterBookings(e, bookingHandler, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)
	router.RegisterOperator(e, stationHandler, cfg.JWTSecret)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
