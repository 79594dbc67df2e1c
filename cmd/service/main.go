package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/fittrack/internal"
	"github.com/2beens/fittrack/internal/config"
	"github.com/2beens/fittrack/internal/logging"
	"github.com/2beens/fittrack/pkg"
)

// secrets never live in config.toml
type secrets struct {
	redisPassword    string
	postgresUser     string
	postgresPassword string
	sentryDSN        string
	honeycombEnabled bool
}

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	if err := run(*env, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fittrack: %s\n", err)
		os.Exit(1)
	}
}

func run(env, configPath string) error {
	cfg, err := config.Load(env, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	versionInfo, versionErr := tryGetLastCommitHash()
	sec := readSecrets()

	flushLogs := logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		Release:          versionInfo,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sec.sentryDSN,
		SentryServerName: "fittrack-service",
	})
	defer flushLogs()

	log.Warnf("---->> running in [%s] environment", cfg.Environment)
	log.Debugf("using port: %d, storage backend: [%s], partition by user: %t",
		cfg.Port, cfg.StorageBackend, cfg.PartitionByUser)
	if versionErr != nil {
		log.Tracef("failed to get last commit hash / version info: %s", versionErr)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}
	warnMissingSecrets(cfg, sec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             versionInfo,
			RedisPassword:           sec.redisPassword,
			PostgresUser:            sec.postgresUser,
			PostgresPassword:        sec.postgresPassword,
			HoneycombTracingEnabled: sec.honeycombEnabled,
		},
	)
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	server.Serve(ctx, cfg.Host, cfg.Port)

	<-ctx.Done()
	log.Warnln("shutdown signal received, stopping ...")
	server.GracefulShutdown()

	return nil
}

func readSecrets() secrets {
	return secrets{
		redisPassword:    os.Getenv("FITTRACK_REDIS_PASS"),
		postgresUser:     os.Getenv("FITTRACK_POSTGRES_USER"),
		postgresPassword: os.Getenv("FITTRACK_POSTGRES_PASS"),
		sentryDSN:        os.Getenv("SENTRY_DSN"),
		honeycombEnabled: os.Getenv("HONEYCOMB_ENABLED") == "true",
	}
}

func warnMissingSecrets(cfg *config.Config, sec secrets) {
	if sec.redisPassword == "" {
		log.Errorln("redis password not set. use FITTRACK_REDIS_PASS")
	}
	if cfg.StorageBackend == config.StorageBackendPostgres && sec.postgresPassword == "" {
		log.Warnln("postgres password not set. use FITTRACK_POSTGRES_PASS")
	}
	if cfg.SentryEnabled && sec.sentryDSN == "" {
		log.Warnln("sentry enabled but SENTRY_DSN not set")
	}
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}
	if !sec.honeycombEnabled {
		log.Debugln("honeycomb tracing disabled")
	} else if os.Getenv("HONEYCOMB_API_KEY") == "" {
		log.Warnln("HONEYCOMB_API_KEY env var not set")
	}
}

// tryGetLastCommitHash assumes the binary runs from the project root.
func tryGetLastCommitHash() (string, error) {
	stdout, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(pkg.BytesToString(stdout))
	if hash == "" {
		return "", errors.New("empty commit hash")
	}
	return hash, nil
}
