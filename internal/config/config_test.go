package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/diarisk/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.DedupeWindow(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.NarratorTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.MaxDatasetRows, convey.ShouldEqual, 5_000)
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.Validate(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestConfig_ResolvedNarrator(t *testing.T) {
	convey.Convey("Given the auto narrator", t, func() {
		cfg := config.New()

		convey.Convey("Without an API key it falls back to the template", func() {
			convey.So(cfg.ResolvedNarrator(), convey.ShouldEqual, config.NarratorTemplate)
		})

		convey.Convey("With an API key it uses gemini", func() {
			cfg.GeminiAPIKey = "k"
			convey.So(cfg.ResolvedNarrator(), convey.ShouldEqual, config.NarratorGemini)
		})

		convey.Convey("An explicit choice is kept", func() {
			cfg.GeminiAPIKey = "k"
			cfg.Narrator = config.NarratorNone
			convey.So(cfg.ResolvedNarrator(), convey.ShouldEqual, config.NarratorNone)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":           func(c *config.Config) { c.Addr = " " },
			"unknown store":        func(c *config.Config) { c.StoreBackend = "redis" },
			"bolt without path":    func(c *config.Config) { c.StoreBackend = config.StoreBolt; c.BoltPath = "" },
			"mongo without uri":    func(c *config.Config) { c.StoreBackend = config.StoreMongo },
			"unknown narrator":     func(c *config.Config) { c.Narrator = "gpt" },
			"gemini without key":   func(c *config.Config) { c.Narrator = config.NarratorGemini },
			"zero queue":           func(c *config.Config) { c.QueueSize = 0 },
			"bad log format":       func(c *config.Config) { c.LogFormat = "xml" },
			"negative retries":     func(c *config.Config) { c.NarratorRetries = -1 },
			"zero history limit":   func(c *config.Config) { c.MaxHistoryLimit = 0 },
			"negative dedupe time": func(c *config.Config) { c.DedupeWindowMS = -5 },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			_ = name
		}
	})

	convey.Convey("Given mixed-case enum values", t, func() {
		cfg := config.New()
		cfg.StoreBackend = " Bolt "
		cfg.Narrator = "TEMPLATE"
		convey.So(cfg.Validate(context.Background()), convey.ShouldBeNil)
		convey.So(cfg.StoreBackend, convey.ShouldEqual, config.StoreBolt)
		convey.So(cfg.Narrator, convey.ShouldEqual, config.NarratorTemplate)
	})
}
