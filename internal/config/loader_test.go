package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/epcforward/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config without an upstream URL", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with only the upstream URL set", func() {
			_ = os.Setenv("EPC_UPSTREAM_URL", testUpstream)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.UpstreamURL, convey.ShouldEqual, testUpstream)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.UpstreamTimeoutMS, convey.ShouldEqual, 30_000)
				convey.So(cfg.StatusRules, convey.ShouldHaveLength, 4)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("EPC_UPSTREAM_URL", testUpstream)
			_ = os.Setenv("EPC_ADDR", ":9090")
			_ = os.Setenv("EPC_UPSTREAM_TIMEOUT_MS", "5000")
			_ = os.Setenv("EPC_SUBMIT_PATHS", "/api/submit, /intake")
			_ = os.Setenv("EPC_CORS_ALLOW_ORIGINS", "https://epc.saberrenewable.energy")
			_ = os.Setenv("EPC_METRICS_ENABLED", "false")
			_ = os.Setenv("EPC_UNEXPECTED_STATUS_ACTION", "acknowledge")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.UpstreamTimeoutMS, convey.ShouldEqual, 5000)
				convey.So(cfg.SubmitPaths, convey.ShouldResemble, []string{"/api/submit", "/intake"})
				convey.So(cfg.CORSAllowOrigins, convey.ShouldResemble, []string{"https://epc.saberrenewable.energy"})
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.UnexpectedStatusAction, convey.ShouldEqual, "acknowledge")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":7070"
upstream_url: "https://flow.example.com/run?sig=file"
default_response: text
status_rules:
  - from: 200
    to: 299
    action: relay_json
  - from: 400
    to: 499
    action: acknowledge
    note: "Queued for review"
`
			tmpFile := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("EPC_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.UpstreamURL, convey.ShouldEqual, "https://flow.example.com/run?sig=file")
				convey.So(cfg.DefaultResponse, convey.ShouldEqual, config.DefaultResponseText)
			})

			convey.Convey("Then the rule table should replace the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.StatusRules, convey.ShouldResemble, []config.StatusRule{
					{From: 200, To: 299, Action: "relay_json"},
					{From: 400, To: 499, Action: "acknowledge", Note: "Queued for review"},
				})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":7070"
upstream_url: "https://flow.example.com/run?sig=file"
`)
			_ = os.Setenv("EPC_CONFIG", tmpFile)
			_ = os.Setenv("EPC_UPSTREAM_URL", testUpstream)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.UpstreamURL, convey.ShouldEqual, testUpstream)
			})
		})

		convey.Convey("When loading config with a dotenv file", func() {
			envFile := filepath.Join(t.TempDir(), "forwarder.env")
			content := "EPC_UPSTREAM_URL=" + testUpstream + "\nEPC_SOURCE=staging.example.com\n"
			convey.So(os.WriteFile(envFile, []byte(content), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("EPC_ENV_FILE", envFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the dotenv values should be applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.UpstreamURL, convey.ShouldEqual, testUpstream)
				convey.So(cfg.Source, convey.ShouldEqual, "staging.example.com")
			})
		})

		convey.Convey("When the named dotenv file does not exist", func() {
			_ = os.Setenv("EPC_ENV_FILE", "/non/existent/.env")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("EPC_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("EPC_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("EPC_UPSTREAM_URL", testUpstream)
			_ = os.Setenv("EPC_UPSTREAM_TIMEOUT_MS", "soon")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"EPC_CONFIG",
		"EPC_ENV_FILE",
		"EPC_ADDR",
		"EPC_SOURCE",
		"EPC_UPSTREAM_URL",
		"EPC_UPSTREAM_TIMEOUT_MS",
		"EPC_SUBMIT_PATHS",
		"EPC_CORS_ALLOW_ORIGINS",
		"EPC_METRICS_ENABLED",
		"EPC_UNEXPECTED_STATUS_ACTION",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "epc-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
