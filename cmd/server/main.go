package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/booking"
	"github.com/iliyamo/event-seat-reservation/internal/clock"
	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/database"
	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
	"github.com/iliyamo/event-seat-reservation/internal/notifier"
	"github.com/iliyamo/event-seat-reservation/internal/queue"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/router"
)

func main() {
	// Load .env when present; real deployments set the environment
	// directly and have no .env file.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it seat fanout stays in-process and
	// rate limiting is disabled.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := notifier.New(rdb)
	if rdb != nil {
		go reg.Run(ctx)
	}

	ledger := repository.NewLedgerRepo(db)
	svc := booking.NewService(ledger, reg, clock.NewSystem(), booking.WithHoldTTL(cfg.HoldTTL))

	users := repository.NewUserRepo(db)
	events := repository.NewEventRepo(db)
	seats := repository.NewSeatRepo(db)
	sessions := repository.NewSessionRepo(db, seats)

	authH := handler.NewAuthHandler(cfg, users)
	eventH := handler.NewEventHandler(events, sessions)
	sessionH := handler.NewSessionHandler(sessions, svc, reg)
	reservationH := handler.NewReservationHandler(svc, ledger, sessions)
	adminH := handler.NewAdminHandler(events, sessions, ledger)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e, eventH, sessionH)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterReservations(e, reservationH, cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	// Background consumer for confirmed-reservation events.  It keeps
	// reconnecting on its own; a missing broker only disables the audit
	// log.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
