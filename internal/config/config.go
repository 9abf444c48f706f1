package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Env
	// LocalTimezone is time.Local until ResolveTimezone succeeds.
	LocalTimezone *time.Location
}

// Env is the raw environment read by cleanenv.
type Env struct {
	Port         string `env:"PORT" env-default:"8080"`
	DatabaseURL  string `env:"DATABASE_URL" env-default:""`
	SQLitePath   string `env:"SQLITE_PATH" env-default:"pocketlog.db"`
	TimezoneName string `env:"LOCAL_TIMEZONE" env-default:"Local"`
	LogLevel     string `env:"LOG_LEVEL" env-default:"info"`

	// SweepSpec is the cron spec of the timer catch-up sweep.
	SweepSpec string `env:"TIMER_SWEEP_SPEC" env-default:"@every 1m"`

	TwilioAccountSID     string `env:"TWILIO_ACCOUNT_SID" env-default:""`
	TwilioAuthToken      string `env:"TWILIO_AUTH_TOKEN" env-default:""`
	TwilioWhatsAppNumber string `env:"TWILIO_WHATSAPP_NUMBER" env-default:""`
	ReminderWhatsAppTo   string `env:"REMINDER_WHATSAPP_TO" env-default:""`

	OpenAIAPIKey string `env:"OPENAI_API_KEY" env-default:""`
}

// Load reads configuration values and prepares defaults where applicable.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var env Env
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &Config{
		Env:           env,
		LocalTimezone: time.Local,
	}, nil
}

// ResolveTimezone loads LOCAL_TIMEZONE into LocalTimezone. On an unknown zone
// name LocalTimezone stays time.Local and the error is returned for the caller to report.
func (c *Config) ResolveTimezone() error {
	location, err := time.LoadLocation(c.TimezoneName)
	if err != nil {
		c.LocalTimezone = time.Local
		return fmt.Errorf("invalid LOCAL_TIMEZONE %q: %w", c.TimezoneName, err)
	}
	c.LocalTimezone = location
	return nil
}

// WhatsAppEnabled reports whether every Twilio setting needed for reminder delivery is present.
func (c *Config) WhatsAppEnabled() bool {
	return c.TwilioAccountSID != "" &&
		c.TwilioAuthToken != "" &&
		c.TwilioWhatsAppNumber != "" &&
		c.ReminderWhatsAppTo != ""
}
