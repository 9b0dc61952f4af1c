package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"RIVALS_CONFIG",
	"RIVALS_ADDR",
	"RIVALS_LOG_LEVEL",
	"RIVALS_ROOM_TTL",
	"RIVALS_ALLOWED_ORIGINS",
	"RIVALS_REDIS_ADDR",
	"RIVALS_TOURNAMENT_DURATION",
	"RIVALS_RECONNECT_ATTEMPTS",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8001")
				convey.So(cfg.RoomTTL, convey.ShouldEqual, 30*time.Minute)
				convey.So(cfg.TournamentDuration, convey.ShouldEqual, 60*time.Second)
				convey.So(cfg.TickInterval, convey.ShouldEqual, time.Second)
				convey.So(cfg.PriceCacheWindow, convey.ShouldEqual, time.Second)
				convey.So(cfg.ReconnectAttempts, convey.ShouldEqual, 5)
				convey.So(cfg.ReconnectMaxDelay, convey.ShouldEqual, 10*time.Second)
				convey.So(cfg.AllowedOrigins, convey.ShouldResemble, []string{"*"})
				convey.So(cfg.RedisAddr, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RIVALS_ADDR", ":9000")
			_ = os.Setenv("RIVALS_ROOM_TTL", "0s")
			_ = os.Setenv("RIVALS_ALLOWED_ORIGINS", "app.example.com, *.example.org")
			_ = os.Setenv("RIVALS_REDIS_ADDR", "redis:6379")
			_ = os.Setenv("RIVALS_RECONNECT_ATTEMPTS", "3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
				convey.So(cfg.RoomTTL, convey.ShouldEqual, time.Duration(0))
				convey.So(cfg.AllowedOrigins, convey.ShouldResemble, []string{"app.example.com", "*.example.org"})
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis:6379")
				convey.So(cfg.ReconnectAttempts, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "rivals.yaml")
			yamlContent := `
addr: ":7000"
log_level: debug
tournament_duration: 2m
tick_interval: 500ms
settlement_url: "http://escrow.local"
`
			convey.So(os.WriteFile(path, []byte(yamlContent), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("RIVALS_CONFIG", path)
			_ = os.Setenv("RIVALS_ADDR", ":7100")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7100")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.TournamentDuration, convey.ShouldEqual, 2*time.Minute)
				convey.So(cfg.TickInterval, convey.ShouldEqual, 500*time.Millisecond)
				convey.So(cfg.SettlementURL, convey.ShouldEqual, "http://escrow.local")
			})
		})

		convey.Convey("When the config file is missing", func() {
			_ = os.Setenv("RIVALS_CONFIG", "/nonexistent/rivals.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("RIVALS_LOG_LEVEL", "chatty")

			_, err := config.Load(ctx)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
