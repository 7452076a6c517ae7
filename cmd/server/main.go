package main // Entry point package

import (
	"context" // Cancellation for background workers
	"log"     // Logging library
	"time"    // Durations for reservation TTL and sweeper

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/parking-spot-reservation/internal/availability" // In-memory availability projection
	"github.com/iliyamo/parking-spot-reservation/internal/config"       // Internal config loader
	"github.com/iliyamo/parking-spot-reservation/internal/database"     // MySQL pool
	"github.com/iliyamo/parking-spot-reservation/internal/gate"         // Gate pass issuing
	"github.com/iliyamo/parking-spot-reservation/internal/handler"      // HTTP handlers
	"github.com/iliyamo/parking-spot-reservation/internal/middleware"   // Rate limit and cache middleware
	"github.com/iliyamo/parking-spot-reservation/internal/queue"        // Spot status feed consumer
	"github.com/iliyamo/parking-spot-reservation/internal/repository"   // DB repositories
	"github.com/iliyamo/parking-spot-reservation/internal/reservation"  // Reservation coordinator
	"github.com/iliyamo/parking-spot-reservation/internal/router"       // Route registration
	queue_publisher "github.com/iliyamo/parking-spot-reservation/internal/service" // Spot status feed publisher
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

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	spots := repository.NewSpotRepo(db)
	reservations := repository.NewReservationRepo(db)
	vehicles := repository.NewVehicleRepo(db)

	avail := availability.New(spots)

	coord := reservation.New(
		spots,
		reservations,
		avail,
		queue_publisher.PublishSpotChanged,
		time.Duration(cfg.ReservationTTLSec)*time.Second,
		cfg.ReservationAttempts,
	)

	passes := gate.NewIssuer(cfg.JWTSecret, spots, reservations, time.Duration(cfg.GateTokenTTLMin)*time.Minute)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Consume the spot status feed so the projection tracks peers.  The
	// feed resyncs from the store before every consume loop, so a broker
	// outage only costs freshness, never correctness.
	go func() {
		if err := queue.StartSpotFeed(ctx, avail.Resync, avail.Apply); err != nil {
			log.Printf("spot feed stopped: %v", err)
		}
	}()

	// Expire overdue reservations.  Every instance runs the sweeper; the
	// guarded status updates keep concurrent sweeps idempotent.
	go coord.RunSweeper(ctx, time.Duration(cfg.SweepIntervalSec)*time.Second)

	// Redis backs the request rate limiter and the public response cache.
	rdb := config.NewRedisClient()
	var limiter, cache echo.MiddlewareFunc
	if rdb != nil {
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewSpotHandler(spots, avail), cache)
	router.RegisterDriver(e, handler.NewReservationHandler(coord, reservations, passes), handler.NewVehicleHandler(vehicles), cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, handler.NewAdminSpotHandler(spots, coord), cfg.JWTSecret)
	router.RegisterGate(e, handler.NewGateHandler(passes, coord), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
