// Package config provides configuration loading, validation, and defaults for
// the ride bot. Values come from defaults, an optional config.yaml, and BOT_*
// environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Wizard    WizardConfig    `mapstructure:"wizard"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// BroadcastConfig tunes the card fan-out.
type BroadcastConfig struct {
	// MaxParallel bounds concurrent deliveries per synchronize so the bot
	// stays under platform rate limits.
	MaxParallel int    `mapstructure:"max_parallel" validate:"min=1,max=16"`
	DateLayout  string `mapstructure:"date_layout"`
}

// WizardConfig tunes the ride creation conversation.
type WizardConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl" validate:"min=1m,max=24h"`
}

// TaskConfig enables and schedules one background task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names onto their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds every user-facing string so deployments can rephrase
// them without rebuilding.
type MessagesConfig struct {
	Welcome          string `mapstructure:"welcome"`
	Help             string `mapstructure:"help"`
	GeneralError     string `mapstructure:"general_error"`
	RideNotFound     string `mapstructure:"ride_not_found"`
	NotCreator       string `mapstructure:"not_creator"`
	AlreadyCancelled string `mapstructure:"already_cancelled"`
	NotCancelled     string `mapstructure:"not_cancelled"`
	AlreadyAnnounced string `mapstructure:"already_announced"`
	NoRides          string `mapstructure:"no_rides"`
	RideIDUsage      string `mapstructure:"ride_id_usage"`
	RideDeleted      string `mapstructure:"ride_deleted"`

	// Format strings taking the refreshed message count.
	RideCancelledFmt string `mapstructure:"ride_cancelled_fmt"`
	RideResumedFmt   string `mapstructure:"ride_resumed_fmt"`
	// Format string taking the pruned destination count, appended when > 0.
	RemovedSuffixFmt string `mapstructure:"removed_suffix_fmt"`
}

// Load reads configuration from config.yaml (optional) and BOT_* environment
// variables, applies defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine; defaults plus env cover everything.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	// Registered empty so the BOT_TELEGRAM_TOKEN env var is visible to
	// Unmarshal even without a config file.
	v.SetDefault("telegram.token", "")

	v.SetDefault("database.path", "ridebot.db")

	v.SetDefault("broadcast.max_parallel", 4)
	v.SetDefault("broadcast.date_layout", "Mon, 02 Jan 2006 15:04")

	v.SetDefault("wizard.session_ttl", 30*time.Minute)

	v.SetDefault("scheduler.tasks.session_sweep.enabled", true)
	v.SetDefault("scheduler.tasks.session_sweep.schedule", "*/5 * * * *")
	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 4 * * *")

	v.SetDefault("messages.welcome", "👋 I coordinate group rides. Use /newride to announce one, or tap the buttons on a ride card to join.")
	v.SetDefault("messages.help", strings.Join([]string{
		"/newride — announce a new ride (I'll ask a few questions)",
		"/editride <id> — edit a ride you created",
		"/dupride <id> — duplicate a ride (same time next day)",
		"/cancelride <id> — cancel a ride",
		"/resumeride <id> — un-cancel a ride",
		"/deleteride <id> — delete a ride and its announcements",
		"/announce <id> — post the ride card into this chat",
		"/myrides — list rides you created",
		"",
		"During the wizard: send - to keep the shown value, or 'cancel' to stop.",
	}, "\n"))
	v.SetDefault("messages.general_error", "❌ Something went wrong. Please try again later.")
	v.SetDefault("messages.ride_not_found", "🤷 I don't know that ride.")
	v.SetDefault("messages.not_creator", "🚫 Only the ride creator can do that.")
	v.SetDefault("messages.already_cancelled", "This ride is already cancelled.")
	v.SetDefault("messages.not_cancelled", "This ride is not cancelled.")
	v.SetDefault("messages.already_announced", "This ride is already announced here.")
	v.SetDefault("messages.no_rides", "You haven't created any rides yet.")
	v.SetDefault("messages.ride_id_usage", "Send the command followed by a ride id, e.g. '%s 42'.")
	v.SetDefault("messages.ride_deleted", "Ride deleted. I removed its announcements where I could.")
	v.SetDefault("messages.ride_cancelled_fmt", "Ride cancelled. %d message(s) updated.")
	v.SetDefault("messages.ride_resumed_fmt", "Ride resumed. %d message(s) updated.")
	v.SetDefault("messages.removed_suffix_fmt", " Removed %d unavailable message(s).")
}
