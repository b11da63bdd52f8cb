// Package config holds the tunables of the automation worker.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type SMS struct {
	Provider   string `yaml:"provider"    validate:"oneof=log twilio"`
	AccountSID string `yaml:"account_sid" validate:"required_if=Provider twilio"`
	AuthToken  string `yaml:"auth_token"  validate:"required_if=Provider twilio"`
	From       string `yaml:"from"        validate:"required_if=Provider twilio"`
}

type Email struct {
	Provider string `yaml:"provider"  validate:"oneof=log sendgrid"`
	APIKey   string `yaml:"api_key"   validate:"required_if=Provider sendgrid"`
	From     string `yaml:"from"      validate:"required_if=Provider sendgrid,omitempty,email"`
	FromName string `yaml:"from_name"`
}

// Engine is the complete worker configuration. Defaults come from Default, a YAML file
// may override them, and command line flags override both.
type Engine struct {
	WorkerID     string   `yaml:"worker_id"`
	DatabaseURL  string   `yaml:"database_url"  validate:"required"`
	EventBus     string   `yaml:"event_bus"     validate:"oneof=none gochannel kafka"`
	KafkaBrokers []string `yaml:"kafka_brokers" validate:"required_if=EventBus kafka,dive,hostname_port"`
	RedisURL     string   `yaml:"redis_url"     validate:"omitempty,url"`
	HTTPAddr     string   `yaml:"http_addr"     validate:"omitempty,hostname_port"`

	PollInterval         time.Duration `yaml:"poll_interval"          validate:"gt=0"`
	BatchSize            int           `yaml:"batch_size"             validate:"gte=1,lte=500"`
	CacheTTL             time.Duration `yaml:"cache_ttl"              validate:"gt=0"`
	MaxRetries           int           `yaml:"max_retries"            validate:"gte=0,lte=10"`
	PendingExpiry        time.Duration `yaml:"pending_expiry"         validate:"gt=0"`
	SweepSchedule        string        `yaml:"sweep_schedule"         validate:"required,cronspec"`
	DefaultTimezone      string        `yaml:"default_timezone"       validate:"required,timezone"`
	InlineDelayThreshold time.Duration `yaml:"inline_delay_threshold" validate:"gte=0"`
	LockTTL              time.Duration `yaml:"lock_ttl"               validate:"gt=0"`

	SMS   SMS   `yaml:"sms"`
	Email Email `yaml:"email"`

	Tracing   bool   `yaml:"tracing"`
	LogLevel  string `yaml:"log_level"  validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
}

func Default() Engine {
	return Engine{
		DatabaseURL:     "file://./data",
		EventBus:        "none",
		PollInterval:    30 * time.Second,
		BatchSize:       10,
		CacheTTL:        5 * time.Minute,
		MaxRetries:      3,
		PendingExpiry:   time.Hour,
		SweepSchedule:   "@every 10m",
		DefaultTimezone: "America/New_York",
		LockTTL:         5 * time.Minute,
		SMS:             SMS{Provider: "log"},
		Email:           Email{Provider: "log"},
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty path yields the defaults.
func Load(path string) (Engine, error) {
	engine := Default()

	if path == "" {
		return engine, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return engine, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	err = yaml.Unmarshal(data, &engine)
	if err != nil {
		return engine, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return engine, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	err := v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())

		return err == nil
	})
	if err != nil {
		panic(err)
	}

	return v
}

// Validate checks every field and reports all violations at once.
func (e Engine) Validate() error {
	err := validate.Struct(e)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s failed %q", fieldErr.Namespace(), fieldErr.Tag()))
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, ", "))
}
