// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DB             database.Options
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	RabbitURL string
	PubNub    PubNubConfig

	MatchTTL            time.Duration // zero disables expiry
	EventPublishTimeout time.Duration
	AuditLogDir         string
	LogLevel            string
	PairingConcurrency  int
}

// PubNubConfig carries the in-app alert keys.  An empty PublishKey selects
// the log-only notifier.
type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
}

// Enabled reports whether alerts can be published.
func (p PubNubConfig) Enabled() bool { return p.PublishKey != "" && p.SubscribeKey != "" }

// Load reads configuration values from environment variables.  Every missing
// or malformed required variable is reported in the returned error.
func Load() (Config, error) {
	var r reader
	cfg := Config{
		Env:  r.must("APP_ENV"),
		Port: r.must("APP_PORT"),
		DB: database.Options{
			User:     r.must("DB_USER"),
			Password: os.Getenv("DB_PASS"), // empty allowed
			Host:     r.must("DB_HOST"),
			Port:     r.must("DB_PORT"),
			Name:     r.must("DB_NAME"),
		},
		JWTSecret:      r.must("JWT_SECRET"),
		AccessTTLMin:   r.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: r.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     r.mustInt("BCRYPT_COST"),

		RabbitURL: envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		PubNub: PubNubConfig{
			PublishKey:   os.Getenv("PUBNUB_PUBLISH_KEY"),
			SubscribeKey: os.Getenv("PUBNUB_SUBSCRIBE_KEY"),
			SecretKey:    os.Getenv("PUBNUB_SECRET_KEY"),
		},

		MatchTTL:            envDur("MATCH_TTL", 0),
		EventPublishTimeout: envDur("EVENT_PUBLISH_TIMEOUT", 5*time.Second),
		AuditLogDir:         envStr("AUDIT_LOG_DIR", "logs"),
		LogLevel:            envStr("LOG_LEVEL", "info"),
		PairingConcurrency:  envInt("PAIRING_CONCURRENCY", 4),
	}
	if cfg.MatchTTL < 0 {
		cfg.MatchTTL = 0
	}
	if cfg.PairingConcurrency < 1 {
		cfg.PairingConcurrency = 1
	}
	if err := r.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// reader collects problems with required variables so a single start-up
// failure lists all of them.
type reader struct {
	missing []string
	invalid []string
}

func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *reader) mustInt(key string) int {
	s := r.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.invalid = append(r.invalid, key)
	}
	return n
}

func (r *reader) err() error {
	var parts []string
	if len(r.missing) > 0 {
		parts = append(parts, "missing required env vars: "+strings.Join(r.missing, ", "))
	}
	if len(r.invalid) > 0 {
		parts = append(parts, "invalid int env vars: "+strings.Join(r.invalid, ", "))
	}
	if len(parts) == 0 {
		return nil
	}
	return eris.New(strings.Join(parts, "; "))
}
