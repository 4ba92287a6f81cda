package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config carries every externally administered setting the service needs.
// All values come from the environment at bootstrap; nothing is re-read at
// runtime.
type Config struct {
	DatabaseURL string
	HTTPAddr    string

	// Sandbox selects the provider's sandbox validation host instead of the
	// production one.
	Sandbox bool

	JWTSecret string

	// KafkaBrokers is empty when the outbox relay is disabled.
	KafkaBrokers []string

	// RedisAddr is empty when access-decision caching is disabled.
	RedisAddr string

	// Mail toggles for the notifications emitted on an accepted payment.
	MailStudents bool
	MailTeachers bool
	MailAdmins   bool
}

// FromEnv loads the configuration from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		HTTPAddr:     os.Getenv("HTTP_ADDR"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		Sandbox:      boolEnv("IPN_SANDBOX"),
		MailStudents: boolEnv("MAIL_STUDENTS"),
		MailTeachers: boolEnv("MAIL_TEACHERS"),
		MailAdmins:   boolEnv("MAIL_ADMINS"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	// An empty HMAC key would make reporting tokens forgeable.
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg, nil
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
