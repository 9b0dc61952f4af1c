// Package config defines process configuration for the room server, the
// historian and the headless player, and how it is loaded.
package config

import (
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/cache"
	"github.com/jason-s-yu/tokenrivals/internal/pricefeed"
	"github.com/jason-s-yu/tokenrivals/internal/room"
	"github.com/jason-s-yu/tokenrivals/internal/tournament"
)

// Config contains process configuration. Each binary reads the keys it needs.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8001".
	Addr string `koanf:"addr"`

	// AllowedOrigins lists CORS and websocket origin patterns.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// RoomTTL bounds how long a room may wait for a guest; 0 disables expiry.
	RoomTTL       time.Duration `koanf:"room_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// RedisAddr enables the room event stream when set.
	RedisAddr  string `koanf:"redis_addr"`
	RedisDB    int    `koanf:"redis_db"`
	EventQueue string `koanf:"event_queue"`

	// DatabaseURL is the Postgres DSN used by the historian.
	DatabaseURL string `koanf:"database_url"`

	HistorianBatchSize     int           `koanf:"historian_batch_size"`
	HistorianFlushInterval time.Duration `koanf:"historian_flush_interval"`
	// HistorianAbandonAfter closes rooms whose last event is older than this.
	HistorianAbandonAfter time.Duration `koanf:"historian_abandon_after"`

	// ServerURL is the websocket endpoint the player dials.
	ServerURL string `koanf:"server_url"`

	HermesURL        string        `koanf:"hermes_url"`
	PriceCacheWindow time.Duration `koanf:"price_cache_window"`

	TournamentDuration time.Duration `koanf:"tournament_duration"`
	TickInterval       time.Duration `koanf:"tick_interval"`

	ReconnectAttempts  int           `koanf:"reconnect_attempts"`
	ReconnectBaseDelay time.Duration `koanf:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `koanf:"reconnect_max_delay"`

	// SettlementURL is the escrow relay; empty keeps settlement in-process.
	SettlementURL    string `koanf:"settlement_url"`
	SettlementSecret string `koanf:"settlement_secret"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":8001",
		AllowedOrigins:     []string{"*"},
		RoomTTL:            room.DefaultTTL,
		SweepInterval:      room.DefaultSweepInterval,
		RedisDB:            0,
		EventQueue:         cache.DefaultQueueName,

		HistorianBatchSize:     20,
		HistorianFlushInterval: 500 * time.Millisecond,
		HistorianAbandonAfter:  10 * time.Minute,

		ServerURL:          "ws://localhost:8001/ws",
		HermesURL:          pricefeed.DefaultHermesURL,
		PriceCacheWindow:   pricefeed.DefaultCacheWindow,
		TournamentDuration: tournament.DefaultDuration,
		TickInterval:       tournament.DefaultInterval,
		ReconnectAttempts:  5,
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  10 * time.Second,
	}
}
