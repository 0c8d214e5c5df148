package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the bot, the dispatcher and the CLI.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Review   ReviewConfig   `mapstructure:"review"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Push     PushConfig     `mapstructure:"push"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type ReviewConfig struct {
	DueLimit   int `mapstructure:"due_limit" validate:"min=1,max=500"`
	MaxRetries int `mapstructure:"max_retries" validate:"min=1,max=20"`
}

type DispatchConfig struct {
	Schedule         string        `mapstructure:"schedule" validate:"required,cronspec"`
	PruneAt          string        `mapstructure:"prune_at" validate:"required,clock"`
	SendTimeout      time.Duration `mapstructure:"send_timeout" validate:"gt=0"`
	Concurrency      int           `mapstructure:"concurrency" validate:"min=1,max=256"`
	EveningHour      int           `mapstructure:"evening_hour" validate:"min=0,max=23"`
	MorningHour      int           `mapstructure:"morning_hour" validate:"min=0,max=23"`
	LogRetentionDays int           `mapstructure:"log_retention_days" validate:"min=1"`
	LockLease        time.Duration `mapstructure:"lock_lease" validate:"gt=0"`
}

type PushConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url" validate:"omitempty,url"`
	AccessToken   string        `mapstructure:"access_token"`
	RetryAttempts uint          `mapstructure:"retry_attempts" validate:"min=1,max=10"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Load reads an optional YAML file, applies defaults and environment
// overrides and validates the result. TELEGRAM_TOKEN and DATABASE_URL are
// honoured directly; every other key can be set as SRS_<SECTION>_<KEY>.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/srs-planner")
	}

	setDefaults(v)

	v.SetEnvPrefix("SRS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("telegram.token", "SRS_TELEGRAM_TOKEN", "TELEGRAM_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_TOKEN environment variable: %w", err)
	}
	if err := v.BindEnv("database.url", "SRS_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}
	if err := v.BindEnv("push.access_token", "SRS_PUSH_ACCESS_TOKEN", "EXPO_ACCESS_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind EXPO_ACCESS_TOKEN environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	cfg.Database.URL = strings.TrimSpace(cfg.Database.URL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "srs_planner.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("review.due_limit", 20)
	v.SetDefault("review.max_retries", 5)
	v.SetDefault("dispatch.schedule", "0 */15 * * * *")
	v.SetDefault("dispatch.prune_at", "03:30")
	v.SetDefault("dispatch.send_timeout", 15*time.Second)
	v.SetDefault("dispatch.concurrency", 8)
	v.SetDefault("dispatch.evening_hour", 20)
	v.SetDefault("dispatch.morning_hour", 8)
	v.SetDefault("dispatch.log_retention_days", 90)
	v.SetDefault("dispatch.lock_lease", 10*time.Minute)
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.url", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("push.retry_attempts", 3)
	v.SetDefault("push.timeout", 15*time.Second)
}

// Validate checks the loaded values and reports every problem in one error.
func (c *Config) Validate() error {
	validate, trans, err := newValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		messages := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			messages = append(messages, fe.Translate(trans))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
	}
	return nil
}

// RequireTelegram is checked by commands that talk to Telegram.
func (c *Config) RequireTelegram() error {
	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}
