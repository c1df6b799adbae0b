// Command pricestats loads the historical price table CSV into PostgreSQL
// so the server can run with PRICE_STATS_SOURCE=postgres.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"oliv/internal/config"
	"oliv/internal/logger"
	"oliv/internal/repository"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	csvPath := flag.String("csv", cfg.PriceStats.CSVPath, "price table CSV to import")
	migrate := flag.Bool("migrate", cfg.PostgreSQL.RunMigrations, "apply database migrations first")
	flag.Parse()

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format).Named("pricestats")
	defer func() { _ = zlog.Sync() }()

	if !cfg.PostgreSQL.Enabled {
		zlog.Fatal("DATABASE_URL or PG_HOST must be set")
	}
	dsn := cfg.GetPostgreSQLDSN()

	if *migrate {
		version, err := repository.RunMigrations(dsn, cfg.PostgreSQL.MigrationsPath)
		if err != nil {
			zlog.Fatal("migrations failed", zap.Error(err))
		}
		zlog.Info("database migrations applied", zap.Uint("version", version))
	}

	table, err := repository.LoadCSVPriceTable(*csvPath)
	if err != nil {
		zlog.Fatal("reading price table failed", zap.Error(err))
	}

	repo, err := repository.NewPostgresRepository(dsn, cfg.PostgreSQL.MaxConnections, cfg.PostgreSQL.MaxIdleConnections)
	if err != nil {
		zlog.Fatal("connecting to database failed", zap.Error(err))
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	n, err := repo.UpsertPriceStats(ctx, table.All())
	if err != nil {
		zlog.Fatal("importing price table failed", zap.Error(err))
	}
	zlog.Info("price table imported",
		zap.String("csv", *csvPath),
		zap.Int("rows", n),
		zap.Duration("took", time.Since(start)))
}
