package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/crmflow/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.RulesPath, convey.ShouldBeEmpty)
			convey.So(cfg.RulesWatch, convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CRMFLOW_ADDR", ":8080")
			_ = os.Setenv("CRMFLOW_QUEUE_SIZE", "500")
			_ = os.Setenv("CRMFLOW_WORKER_COUNT", "16")
			_ = os.Setenv("CRMFLOW_DEDUPE_BACKEND", "redis")
			_ = os.Setenv("CRMFLOW_REDIS_ADDR", "redis://cache:6379/2")
			_ = os.Setenv("CRMFLOW_RULES_WATCH", "false")
			_ = os.Setenv("CRMFLOW_CRM_RATE_LIMIT", "2.5")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
			convey.So(cfg.DedupeBackend, convey.ShouldEqual, config.DedupeRedis)
			convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis://cache:6379/2")
			convey.So(cfg.RulesWatch, convey.ShouldBeFalse)
			convey.So(cfg.CRMRateLimit, convey.ShouldEqual, 2.5)
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
# comments are fine
addr: ":9090"
queue_size: 300
rules_path: /etc/crmflow/rules.yaml
crm_enabled: true
crm_client_id: cid
crm_client_secret: secret
crm_refresh_token: rt
deadletter_backend: s3
s3_bucket: letters
s3_path_style: true
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CRMFLOW_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
			convey.So(cfg.RulesPath, convey.ShouldEqual, "/etc/crmflow/rules.yaml")
			convey.So(cfg.CRMEnabled, convey.ShouldBeTrue)
			convey.So(cfg.S3PathStyle, convey.ShouldBeTrue)

			convey.Convey("And environment variables override file values", func() {
				_ = os.Setenv("CRMFLOW_ADDR", ":8080")
				_ = os.Setenv("CRMFLOW_S3_BUCKET", "other")

				cfg, err := config.Load(ctx)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.S3Bucket, convey.ShouldEqual, "other")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
			})
		})

		convey.Convey("When a partial YAML file is loaded", func() {
			tmpFile := createTempConfigFile("worker_count: 3\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CRMFLOW_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DeadLetterDir, convey.ShouldEqual, "./deadletters")
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CRMFLOW_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("CRMFLOW_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a numeric variable is not a number", func() {
			_ = os.Setenv("CRMFLOW_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the result fails validation", func() {
			_ = os.Setenv("CRMFLOW_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "crmflow-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
