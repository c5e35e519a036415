package main

import (
	"log"
	"os"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/variousplug/vp/cmd/vp/cmd"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var err error

	// Determine running environment and initialize structural logger
	if os.Getenv("VP_ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	// A .env next to the project is optional; platform API keys may come
	// from it or from the config file.
	_ = godotenv.Load()

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     dsn,
			Release: Version,
		}); err != nil {
			logger.Warn("Cannot initialize Sentry",
				zap.Error(err),
			)
		} else {
			cfg := zapsentry.Configuration{
				Level: zapcore.ErrorLevel,
				Tags: map[string]string{
					"component": "vp",
				},
			}
			core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
			if err != nil {
				logger.Warn("Cannot attach Sentry to logger",
					zap.Error(err),
				)
			} else {
				logger = zapsentry.AttachCoreToLogger(core, logger)
			}
		}
	}

	cmd.SetVersion(Version)
	if err := cmd.Execute(logger); err != nil {
		os.Exit(1)
	}
}
