package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	TokenTTL       time.Duration
	EnableSignup   bool

	// login and signup attempts allowed per client IP per minute
	AuthRatePerMinute int

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	LogLevel string
	LogFile  string

	SeedDemo bool

	ShutdownTimeout time.Duration
}

// CORSOrigins picks the origin list for the running mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func defaults(v *viper.Viper) {
	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SITE_ID", "local")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("AUTH_HMAC_SECRET", "dev-secret-change-me")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("ENABLE_SIGNUP", true)
	v.SetDefault("AUTH_RATE_PER_MINUTE", 20)
	v.SetDefault("CORS_ORIGINS_ONLINE", "https://assess.mindengage.ai")
	v.SetDefault("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("SEED_DEMO", false)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

// FromEnv reads configuration from the environment. When CONFIG_FILE names a
// file (yaml, json, toml, env) its values sit under the environment.
func FromEnv() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	defaults(v)
	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	mode := Mode(strings.ToLower(v.GetString("MODE")))
	if mode != ModeOffline && mode != ModeOnline {
		return Config{}, fmt.Errorf("MODE must be %q or %q, got %q", ModeOffline, ModeOnline, mode)
	}
	ttl := v.GetDuration("TOKEN_TTL")
	if ttl <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL must be positive")
	}
	secret := v.GetString("AUTH_HMAC_SECRET")
	if mode == ModeOnline && secret == "dev-secret-change-me" {
		return Config{}, fmt.Errorf("AUTH_HMAC_SECRET must be set in online mode")
	}

	return Config{
		Mode:               mode,
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		SiteID:             v.GetString("SITE_ID"),
		DBDriver:           v.GetString("DB_DRIVER"),
		DBDSN:              v.GetString("DB_DSN"),
		AuthHMACSecret:     secret,
		TokenTTL:           ttl,
		EnableSignup:       v.GetBool("ENABLE_SIGNUP"),
		AuthRatePerMinute:  v.GetInt("AUTH_RATE_PER_MINUTE"),
		CORSOriginsOnline:  csv(v.GetString("CORS_ORIGINS_ONLINE")),
		CORSOriginsOffline: csv(v.GetString("CORS_ORIGINS_OFFLINE")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFile:            v.GetString("LOG_FILE"),
		SeedDemo:           v.GetBool("SEED_DEMO"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
	}, nil
}

func csv(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
