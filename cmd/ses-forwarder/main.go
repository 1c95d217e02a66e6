// Package main is the entry point for the SES mail forwarder Lambda.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/shineum/ses-forwarder-lite/internal/config"
	"github.com/shineum/ses-forwarder-lite/internal/handler"
	"github.com/shineum/ses-forwarder-lite/internal/mailer"
	"github.com/shineum/ses-forwarder-lite/internal/mailer/ses"
	"github.com/shineum/ses-forwarder-lite/internal/mailer/stdout"
	"github.com/shineum/ses-forwarder-lite/internal/notify"
	"github.com/shineum/ses-forwarder-lite/internal/route"
	"github.com/shineum/ses-forwarder-lite/internal/store"
)

func main() {
	// Load configuration
	cfg, err := loadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	// A forwarder without a mail bucket cannot do anything; fail loudly
	// before accepting any event.
	if !cfg.BucketConfigured() {
		slog.Error("MAIL_BUCKET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	// The execution role grants bucket access; static keys are only for
	// the outbound SES account.
	fetcher, err := store.New(ctx, store.StoreConfig{
		Region: cfg.S3.Region,
	})
	if err != nil {
		slog.Error("failed to create message fetcher", "error", err)
		os.Exit(1)
	}

	sender := selectSender(ctx, cfg)
	router := route.New(cfg.Forward.Mapping, cfg.AllowPlusSign())
	webhook := notify.New(cfg.Notify.WebhookURL)

	h := handler.New(handler.Config{
		Bucket:         cfg.S3.Bucket,
		EmailKeyPrefix: cfg.Forward.EmailKeyPrefix,
		FromEmail:      cfg.Forward.FromEmail,
		SubjectPrefix:  cfg.Forward.SubjectPrefix,
		RewriteTo:      cfg.Forward.RewriteTo,
		Trailer:        cfg.Forward.Trailer,
		RejectSpam:     cfg.RejectSpam(),
		NotifyRequired: cfg.Notify.Required,
	}, router, fetcher, sender, webhook)

	slog.Info("starting ses-forwarder-lite",
		"bucket", cfg.S3.Bucket,
		"key_prefix", cfg.Forward.EmailKeyPrefix,
		"transport", sender.Name(),
		"mapping_rules", len(cfg.Forward.Mapping),
		"notify_enabled", cfg.NotifyConfigured(),
	)

	lambda.Start(h.Handle)
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectSender chooses the outbound transport based on configuration.
// "stdout" prints the would-be submission for dry runs; anything else
// defaults to SES.
func selectSender(ctx context.Context, cfg *config.Config) mailer.Sender {
	switch cfg.Sender {
	case "stdout":
		slog.Info("using stdout transport (dry run)")
		return stdout.New()

	case "", "ses":
		s, err := ses.New(ctx, ses.SESSenderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			slog.Error("failed to create SES transport", "error", err)
			os.Exit(1)
		}
		return s

	default:
		slog.Error("unknown sender", "sender", cfg.Sender)
		os.Exit(1)
		return nil
	}
}
