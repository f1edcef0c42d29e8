package main

import (
	"context"
	"courier-route-service/internal/adapters/cache"
	"courier-route-service/internal/adapters/dispatcher"
	"courier-route-service/internal/adapters/distance"
	"courier-route-service/internal/adapters/maplink"
	"courier-route-service/internal/adapters/position"
	"courier-route-service/internal/api"
	"courier-route-service/internal/config"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/platform/db"
	"courier-route-service/internal/platform/obs"
	"courier-route-service/internal/ports"
	"courier-route-service/internal/services"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const geocodeParallelism = 4

// main is the application composition root.
// It wires concrete adapters (routing provider, caches, dispatcher socket) behind
// ports, then runs the session loop, the dispatcher client, the position locator
// and the HTTP server until a signal arrives.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	obs.SetupLogger(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	obs.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		if sqlDB, err = db.Open(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		defer sqlDB.Close()
		if err := cache.InitSchema(ctx, sqlDB); err != nil {
			log.Fatal().Err(err).Msg("init cache schema")
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse redis url")
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	routing, geocoder, err := newProviders(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init providers")
	}

	if cfg.Routing.RatePerSecond > 0 {
		routing = distance.NewRateLimitedClient(routing, cfg.Routing.RatePerSecond, cfg.Routing.Burst)
	}
	switch {
	case rdb != nil:
		routing = distance.NewCachedClient(routing, cache.NewRedisDistanceCache(rdb, cfg.Routing.CacheTTL))
	case sqlDB != nil:
		routing = distance.NewCachedClient(routing, cache.NewSQLDistanceCache(sqlDB, cfg.Routing.CacheTTL))
	}

	var store distance.GeocodeStore
	if sqlDB != nil {
		store = cache.NewSQLGeocodeCache(sqlDB, cfg.Geocoder.CacheTTL)
	}
	geocoder = distance.NewCachedGeocoder(geocoder, cfg.Geocoder.CacheTTL, store)

	client := dispatcher.NewClient(cfg.Dispatcher.URL, cfg.Dispatcher.DriverName,
		dispatcher.WithMaxBackoff(cfg.Dispatcher.ReconnectMaxDelay),
		dispatcher.WithOnConnected(func() {
			log.Info().Str("driver", cfg.Dispatcher.DriverName).Msg("dispatcher handshake sent")
		}),
	)

	builder := services.NewMatrixBuilder(routing,
		services.WithQueryTimeout(cfg.Routing.QueryTimeout),
		services.WithMaxInFlight(cfg.Routing.MaxInFlight),
	)
	session := services.NewSession(builder, client, services.WithStatusReporter(client))

	intake := services.NewIntake(session, services.NewResolver(geocoder, geocodeParallelism), client)
	intake.Bind(client, client)

	locator := services.NewLocator(newPositionSource(cfg, rdb), session, cfg.Position.RetryDelay, cfg.Position.Refresh)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(session, maplink.NewYandex()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error { return locator.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("agent stopped")
		os.Exit(1)
	}
	log.Info().Msg("agent stopped")
}

// newProviders builds the routing client and the geocoder for the configured providers.
// When both use the same provider a single client serves both ports.
func newProviders(cfg config.Config) (ports.RoutingClient, ports.Geocoder, error) {
	var (
		ors    *distance.ORSClient
		google *distance.GoogleClient
		err    error
	)

	if cfg.Routing.Provider == "ors" || cfg.Geocoder.Provider == "ors" {
		ors, err = distance.NewORSClient(cfg.Routing.ORSAPIKey, distance.WithORSCountry(cfg.Geocoder.Country))
		if err != nil {
			return nil, nil, err
		}
	}
	if cfg.Routing.Provider == "google" || cfg.Geocoder.Provider == "google" {
		google, err = distance.NewGoogleClient(cfg.Routing.GoogleAPIKey)
		if err != nil {
			return nil, nil, err
		}
	}

	var routing ports.RoutingClient = ors
	if cfg.Routing.Provider == "google" {
		routing = google
	}
	var geocoder ports.Geocoder = ors
	if cfg.Geocoder.Provider == "google" {
		geocoder = google
	}

	return routing, geocoder, nil
}

func newPositionSource(cfg config.Config, rdb *redis.Client) ports.PositionSource {
	switch {
	case cfg.Position.Lat != nil && cfg.Position.Lon != nil:
		return position.NewStatic(domain.Coordinates{Lat: *cfg.Position.Lat, Lon: *cfg.Position.Lon})
	case rdb != nil && cfg.Position.RedisKey != "":
		return position.NewRedisGeo(rdb, cfg.Position.RedisKey, cfg.Position.RedisMember)
	default:
		log.Warn().Msg("no position source configured")
		return position.Unavailable{}
	}
}
