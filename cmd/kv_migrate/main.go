package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/fittrack/internal"
	"github.com/2beens/fittrack/internal/config"
	"github.com/2beens/fittrack/internal/db"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/logging"
	"github.com/2beens/fittrack/internal/migrate"
)

// copies the user accounts, workouts, meals and userProfile records between storage
// backends, e.g. from the disk store of a dev machine into redis:
//
//	kv_migrate -env development -from disk -to redis
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	fromBackend := flag.String("from", config.StorageBackendDisk, "source backend [redis | postgres | disk]")
	toBackend := flag.String("to", config.StorageBackendRedis, "target backend [redis | postgres | disk]")
	dryRun := flag.Bool("dry-run", false, "decode and re-encode only, write nothing")
	flag.Parse()

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    "debug",
	})

	if *fromBackend == *toBackend {
		log.Fatalf("source and target backend are the same: %s", *fromBackend)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: os.Getenv("FITTRACK_REDIS_PASS"),
		DB:       0,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Errorf("close redis client: %s", err)
		}
	}()

	var dbPool *pgxpool.Pool
	if *fromBackend == config.StorageBackendPostgres || *toBackend == config.StorageBackendPostgres {
		dbPool, err = db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:     cfg.PostgresHost,
			DBPort:     cfg.PostgresPort,
			DBName:     cfg.PostgresDBName,
			DBUser:     os.Getenv("FITTRACK_POSTGRES_USER"),
			DBPassword: os.Getenv("FITTRACK_POSTGRES_PASS"),
		})
		if err != nil {
			log.Fatalf("new db pool: %s", err)
		}
		defer dbPool.Close()
	}

	from, err := openBackend(ctx, cfg, *fromBackend, rdb, dbPool)
	if err != nil {
		log.Fatalf("open source: %s", err)
	}
	source, ok := from.(migrate.Source)
	if !ok {
		log.Fatalf("backend %s cannot list keys", *fromBackend)
	}

	to, err := openBackend(ctx, cfg, *toBackend, rdb, dbPool)
	if err != nil {
		log.Fatalf("open target: %s", err)
	}

	results, err := migrate.Run(ctx, source, to, *dryRun)
	total := 0
	for _, r := range results {
		total += r.Records
	}
	fmt.Printf("migrated %d keys, %d records (dry run: %t)\n", len(results), total, *dryRun)
	if err != nil {
		log.Errorf("some keys were not migrated: %s", err)
		os.Exit(1)
	}
}

func openBackend(
	ctx context.Context,
	cfg *config.Config,
	backend string,
	rdb *redis.Client,
	dbPool *pgxpool.Pool,
) (kvstore.Store, error) {
	backendCfg := *cfg
	backendCfg.StorageBackend = backend
	if err := backendCfg.Validate(); err != nil {
		return nil, fmt.Errorf("backend %s: %w", backend, err)
	}
	return internal.NewRecordBackend(ctx, &backendCfg, rdb, dbPool)
}
