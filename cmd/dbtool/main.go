package main

import (
	"context"
	"courier-route-service/internal/adapters/cache"
	"courier-route-service/internal/config"
	"courier-route-service/internal/platform/db"
	"courier-route-service/internal/platform/obs"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// dbtool creates the Postgres tables backing the distance and geocode caches.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found (using environment variables)")
	}
	obs.SetupLogger(config.Get("LOG_LEVEL", "info"), true)

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	conn, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info().Msg("initializing cache schema")
	if err := cache.InitSchema(ctx, conn); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}
	log.Info().Msg("schema ready")
}
