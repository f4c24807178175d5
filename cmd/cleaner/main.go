package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	csvad "listing_price/internal/adapters/csv"
	"listing_price/internal/adapters/observability"
	"listing_price/internal/app"
	"listing_price/internal/config"
	"listing_price/internal/pipeline"
	"listing_price/internal/shared"
	mysqlrepo "listing_price/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "cleaner")
	cfg.LogWarnings()

	fl, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}

	b, err := config.LoadBundle(cfg.ConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	pipe, err := pipeline.New(b.Preprocessing.Preprocessing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build preprocessing pipeline")
	}

	in := []string{b.Preprocessing.Paths.Raw}
	if len(fl.inputs) > 0 {
		in = fl.inputs
	}
	out := b.Preprocessing.Paths.Clean
	if fl.output != "" {
		out = fl.output
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := app.CleanOptions{Workers: cfg.CleanWorkers, MapCategorical: fl.mapCategorical}
	var repo *mysqlrepo.Repo
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		repo = mysqlrepo.New(db)
		opts.Repo = repo
	}

	log.Info().Strs("inputs", in).Str("output", out).Int("workers", cfg.CleanWorkers).Msg("cleaner starting")
	rep, err := app.NewCleanService(pipe, csvad.Store{}, opts).Run(ctx, in, out)
	if err != nil {
		log.Fatal().Err(err).Msg("cleaning failed")
	}

	if repo != nil {
		n, err := repo.CountCleanListings(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("count clean listings failed")
		}
		byCat, err := repo.CountByCategory(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("category distribution failed")
		}
		dist := make(map[string]int, len(byCat))
		for c, k := range byCat {
			name, err := pipe.CategoryName(c)
			if err != nil {
				name = "unknown"
			}
			dist[name] += k
		}
		log.Info().Int("stored", n).Interface("categories", dist).Msg("clean listing store updated")
	}
	log.Info().Int("files", rep.Files).Int("read", rep.Read).Int("kept", rep.Kept).Msg("cleaning completed")
}
