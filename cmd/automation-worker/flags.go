package main

import (
	"fmt"

	"github.com/crewdesk/automation/pkg/config"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// engineFlags builds a fresh flag set. Defaults live in config.Default so that
// a flag only overrides the config file when it was explicitly set.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			Sources: cli.EnvVars("AUTOMATION_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL (postgres://... or file://path)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Lifecycle event bus (none, gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers (host:port)",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the shared execution lock",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "http-addr",
			Usage:   "Address of the admin HTTP server (disabled when empty)",
			Sources: cli.EnvVars("HTTP_ADDR"),
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "Time between processing passes",
			Sources: cli.EnvVars("POLL_INTERVAL"),
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Usage:   "Maximum execution logs fetched per pass",
			Sources: cli.EnvVars("BATCH_SIZE"),
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "Workflow cache lifetime",
			Sources: cli.EnvVars("WORKFLOW_CACHE_TTL"),
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Usage:   "Retries allowed for transient failures",
			Sources: cli.EnvVars("MAX_RETRIES"),
		},
		&cli.DurationFlag{
			Name:    "pending-expiry",
			Usage:   "Age after which pending logs expire",
			Sources: cli.EnvVars("PENDING_EXPIRY"),
		},
		&cli.StringFlag{
			Name:    "sweep-schedule",
			Usage:   "Cron schedule of the pending-log sweep",
			Sources: cli.EnvVars("SWEEP_SCHEDULE"),
		},
		&cli.StringFlag{
			Name:    "default-timezone",
			Usage:   "Timezone used when a company has none",
			Sources: cli.EnvVars("DEFAULT_TIMEZONE"),
		},
		&cli.DurationFlag{
			Name:    "inline-delay-threshold",
			Usage:   "Delays up to this long are slept inline; longer ones suspend the log",
			Sources: cli.EnvVars("INLINE_DELAY_THRESHOLD"),
		},
		&cli.DurationFlag{
			Name:    "lock-ttl",
			Usage:   "Lifetime of a per-trigger execution lock",
			Sources: cli.EnvVars("LOCK_TTL"),
		},
		&cli.StringFlag{
			Name:    "sms-provider",
			Usage:   "SMS provider (log, twilio)",
			Sources: cli.EnvVars("SMS_PROVIDER"),
		},
		&cli.StringFlag{
			Name:    "twilio-account-sid",
			Usage:   "Twilio account SID",
			Sources: cli.EnvVars("TWILIO_ACCOUNT_SID"),
		},
		&cli.StringFlag{
			Name:    "twilio-auth-token",
			Usage:   "Twilio auth token",
			Sources: cli.EnvVars("TWILIO_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "twilio-from",
			Usage:   "Twilio sender number",
			Sources: cli.EnvVars("TWILIO_FROM"),
		},
		&cli.StringFlag{
			Name:    "email-provider",
			Usage:   "Email provider (log, sendgrid)",
			Sources: cli.EnvVars("EMAIL_PROVIDER"),
		},
		&cli.StringFlag{
			Name:    "sendgrid-api-key",
			Usage:   "SendGrid API key",
			Sources: cli.EnvVars("SENDGRID_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "email-from",
			Usage:   "Sender address of outbound email",
			Sources: cli.EnvVars("EMAIL_FROM"),
		},
		&cli.StringFlag{
			Name:    "email-from-name",
			Usage:   "Sender display name of outbound email",
			Sources: cli.EnvVars("EMAIL_FROM_NAME"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry traces over OTLP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// loadConfig overlays explicitly set flags on the config file and validates the result.
func loadConfig(command *cli.Command) (config.Engine, error) {
	engine, err := config.Load(command.String("config"))
	if err != nil {
		return engine, err
	}

	stringFlags := map[string]*string{
		"worker-id":          &engine.WorkerID,
		"database-url":       &engine.DatabaseURL,
		"event-bus":          &engine.EventBus,
		"redis-url":          &engine.RedisURL,
		"http-addr":          &engine.HTTPAddr,
		"sweep-schedule":     &engine.SweepSchedule,
		"default-timezone":   &engine.DefaultTimezone,
		"sms-provider":       &engine.SMS.Provider,
		"twilio-account-sid": &engine.SMS.AccountSID,
		"twilio-auth-token":  &engine.SMS.AuthToken,
		"twilio-from":        &engine.SMS.From,
		"email-provider":     &engine.Email.Provider,
		"sendgrid-api-key":   &engine.Email.APIKey,
		"email-from":         &engine.Email.From,
		"email-from-name":    &engine.Email.FromName,
		"log-level":          &engine.LogLevel,
		"log-format":         &engine.LogFormat,
	}
	for name, target := range stringFlags {
		if command.IsSet(name) {
			*target = command.String(name)
		}
	}

	if command.IsSet("kafka-brokers") {
		engine.KafkaBrokers = command.StringSlice("kafka-brokers")
	}

	if command.IsSet("poll-interval") {
		engine.PollInterval = command.Duration("poll-interval")
	}

	if command.IsSet("batch-size") {
		engine.BatchSize = command.Int("batch-size")
	}

	if command.IsSet("cache-ttl") {
		engine.CacheTTL = command.Duration("cache-ttl")
	}

	if command.IsSet("max-retries") {
		engine.MaxRetries = command.Int("max-retries")
	}

	if command.IsSet("pending-expiry") {
		engine.PendingExpiry = command.Duration("pending-expiry")
	}

	if command.IsSet("inline-delay-threshold") {
		engine.InlineDelayThreshold = command.Duration("inline-delay-threshold")
	}

	if command.IsSet("lock-ttl") {
		engine.LockTTL = command.Duration("lock-ttl")
	}

	if command.IsSet("tracing") {
		engine.Tracing = command.Bool("tracing")
	}

	if engine.WorkerID == "" {
		engine.WorkerID = "worker-" + uuid.New().String()[:8]
	}

	err = engine.Validate()
	if err != nil {
		return engine, fmt.Errorf("configuration rejected: %w", err)
	}

	return engine, nil
}
