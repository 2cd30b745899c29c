package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string
	RedisURL            string
	HubURL              string // home-automation hub base URL, e.g. http://homeassistant.local:8123
	HubToken            string // long-lived hub access token
	GeocodeURL          string // geocoding endpoint for postal-code lookups
	FrontendURLEndsWith string
	DevPassword         string
	DebounceInterval    time.Duration // delay between the last investment edit and its write
	SnapshotTTL         time.Duration // how long an abandoned wizard session survives in Redis
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	debounce := viper.GetDuration("DEBOUNCE_INTERVAL")
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	snapshotTTL := viper.GetDuration("SNAPSHOT_TTL")
	if snapshotTTL <= 0 {
		snapshotTTL = 30 * 24 * time.Hour
	}

	return &Config{
		Env:                 env,
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		HubURL:              strings.TrimRight(viper.GetString("HUB_URL"), "/"),
		HubToken:            viper.GetString("HUB_TOKEN"),
		GeocodeURL:          strings.TrimRight(viper.GetString("GEOCODE_URL"), "/"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		DebounceInterval:    debounce,
		SnapshotTTL:         snapshotTTL,
	}, nil
}
