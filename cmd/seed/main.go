package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/appointment-booking/internal/config"
	"github.com/hackgods/appointment-booking/internal/db"
	"github.com/hackgods/appointment-booking/internal/logging"
	"github.com/hackgods/appointment-booking/internal/user"
)

// seedPassword lets seeded accounts sign in during local testing.
const seedPassword = "123456"

func main() {
	providers := flag.Int("providers", 20, "number of providers to create")
	clients := flag.Int("clients", 500, "number of clients to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("seed", cfg.Env, cfg.LogLevel)
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	dir := user.NewDirectory(pool)

	if err := seedUsers(ctx, dir, "providers", *providers, true); err != nil {
		log.Fatal().Err(err).Msg("seed providers")
	}
	if err := seedUsers(ctx, dir, "clients", *clients, false); err != nil {
		log.Fatal().Err(err).Msg("seed clients")
	}

	log.Info().Msg("seed complete")
}

func seedUsers(ctx context.Context, dir *user.Directory, kind string, count int, provider bool) error {
	log.Info().Int("count", count).Msgf("seeding %s", kind)

	const progressEvery = 100

	created := 0
	for created < count {
		// gofakeit repeats emails on large runs; a uuid suffix keeps them unique
		name := gofakeit.Name()
		email := fmt.Sprintf("%s.%s@%s",
			strings.ToLower(gofakeit.FirstName()),
			gofakeit.UUID()[:8],
			gofakeit.DomainName(),
		)

		_, err := dir.Create(ctx, user.NewUser{
			Name:     name,
			Email:    email,
			Password: seedPassword,
			Provider: provider,
		})
		if errors.Is(err, user.ErrEmailTaken) {
			continue
		}
		if err != nil {
			return err
		}

		created++
		if created%progressEvery == 0 {
			log.Info().Msgf("%s seeded: %d/%d", kind, created, count)
		}
	}

	log.Info().Msgf("%s seeded", kind)
	return nil
}
