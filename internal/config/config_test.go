package config_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/unirank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.Alpha, convey.ShouldEqual, 0.5)
			convey.So(cfg.Beta, convey.ShouldEqual, 0.3)
			convey.So(cfg.Gamma, convey.ShouldEqual, 0.2)
			convey.So(cfg.DecayLambda, convey.ShouldEqual, 0.01)
			convey.So(cfg.HistoryLimit, convey.ShouldEqual, 256)
			convey.So(cfg.RedisAddr, convey.ShouldBeEmpty)
			convey.So(len(cfg.Platforms), convey.ShouldEqual, 5)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the catalogue should carry CodeChef's calibration", func() {
			var found bool
			for _, p := range cfg.Platforms {
				if p.Name == "CodeChef" {
					found = true
					convey.So(p.MaxRating, convey.ShouldEqual, 1800)
					convey.So(p.Difficulty, convey.ShouldEqual, 3100)
					convey.So(p.Participation, convey.ShouldEqual, 0.5)
				}
			}
			convey.So(found, convey.ShouldBeTrue)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"negative alpha", func(c *config.Config) { c.Alpha = -1 }},
			{"NaN lambda", func(c *config.Config) { c.DecayLambda = math.NaN() }},
			{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"redis without key", func(c *config.Config) { c.RedisAddr = "localhost:6379"; c.RedisKey = "" }},
			{"zero max rating", func(c *config.Config) { c.Platforms[0].MaxRating = 0 }},
			{"duplicate platform", func(c *config.Config) { c.Platforms[1].Name = c.Platforms[0].Name }},
			{"unnamed platform", func(c *config.Config) { c.Platforms[2].Name = "" }},
			{"zero leaderboard cap", func(c *config.Config) { c.MaxLeaderboardLimit = 0 }},
		}

		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				tc.mutate(cfg)

				convey.Convey("Then Validate should return ErrInvalidConfig", func() {
					err := cfg.Validate()
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When several coefficients are invalid", func() {
			cfg.Alpha = -1
			cfg.Gamma = math.Inf(1)
			cfg.DecayLambda = math.NaN()

			convey.Convey("Then Validate should always report alpha first", func() {
				for i := 0; i < 50; i++ {
					err := cfg.Validate()
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(err.Error(), convey.ShouldContainSubstring, "alpha")
					convey.So(err.Error(), convey.ShouldNotContainSubstring, "gamma")
				}
			})
		})
	})
}
