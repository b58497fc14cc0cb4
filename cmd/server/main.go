package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/eventhorizon/eventhorizon/internal/analytics"
	"github.com/eventhorizon/eventhorizon/internal/config"
	"github.com/eventhorizon/eventhorizon/internal/database"
	"github.com/eventhorizon/eventhorizon/internal/handler"
	"github.com/eventhorizon/eventhorizon/internal/middleware"
	"github.com/eventhorizon/eventhorizon/internal/queue"
	"github.com/eventhorizon/eventhorizon/internal/repository"
	"github.com/eventhorizon/eventhorizon/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: rate limiting, caching and analytics all degrade
	// to no-ops on a nil client.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting, caching and analytics disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	bookings := repository.NewBookingRepo(db)
	referrals := repository.NewReferralRepo(db)
	waitlist := repository.NewWaitlistRepo(db)
	recorder := analytics.NewRecorder(rdb)

	authH := handler.NewAuthHandler(cfg, users, tokens, referrals)
	publicH := handler.NewEventPublicHandler(events, recorder)
	organizerH := handler.NewEventOrganizerHandler(events, bookings, waitlist, recorder)
	bookingH := handler.NewBookingHandler(cfg, events, bookings, users, referrals, waitlist, recorder)
	waitlistH := handler.NewWaitlistHandler(cfg, events, waitlist)
	referralH := handler.NewReferralHandler(users, referrals)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterHealth(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, publicH, referralH, config.LoadCacheConfig(), rdb)
	router.RegisterUser(e, bookingH, waitlistH, referralH, cfg.JWTSecret)
	router.RegisterOrganizer(e, organizerH, cfg.JWTSecret)

	// Email worker; reconnects forever on broker trouble.
	go func() {
		if err := queue.StartEmailConsumer(cfg.AMQPURL); err != nil {
			log.Printf("email consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
