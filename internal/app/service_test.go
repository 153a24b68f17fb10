package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/crmflow/internal/app"
	"github.com/okian/crmflow/internal/config"
	"github.com/okian/crmflow/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New(context.Background())
	cfg.DeadLetterDir = t.TempDir()
	cfg.WorkerCount = 2
	cfg.QueueSize = 100
	return cfg
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without a CRM", t, func() {
		ctx := context.Background()
		svc := service.New(testConfig(t))

		Convey("It is not ready before Start", func() {
			So(errors.Is(svc.Ready(ctx), service.ErrNotStarted), ShouldBeTrue)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
		})

		Convey("When started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("It is ready and reports its setup", func() {
				So(svc.Ready(ctx), ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["crmEnabled"], ShouldEqual, false)
				So(stats["workerCount"], ShouldEqual, 0)
				So(stats, ShouldNotContainKey, "queueLength")
				So(svc.Processor(), ShouldNotBeNil)
			})

			Convey("It stops once", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a CRM client", t, func() {
		ctx := context.Background()
		svc := service.New(testConfig(t), service.WithCRMClient(newFakeCRM()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("The worker pool and queue are running", func() {
			stats := svc.GetStats()
			So(stats["crmEnabled"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueLength"], ShouldEqual, 0)
		})
	})
}

func TestService_StartErrors(t *testing.T) {
	Convey("Given broken configuration", t, func() {
		ctx := context.Background()

		Convey("A missing rules file fails Start", func() {
			cfg := testConfig(t)
			cfg.RulesPath = "/non/existent/rules.json"
			So(service.New(cfg).Start(ctx), ShouldNotBeNil)
		})

		Convey("CRM enabled without credentials fails Start", func() {
			cfg := testConfig(t)
			cfg.CRMEnabled = true
			So(service.New(cfg).Start(ctx), ShouldNotBeNil)
		})

		Convey("An unreachable redis fails Start", func() {
			cfg := testConfig(t)
			cfg.DedupeBackend = config.DedupeRedis
			cfg.RedisAddr = "127.0.0.1:1"
			So(service.New(cfg).Start(ctx), ShouldNotBeNil)
		})
	})
}

func TestService_RedisDedupe(t *testing.T) {
	Convey("Given a redis dedupe backend", t, func() {
		ctx := context.Background()
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.DedupeBackend = config.DedupeRedis
		cfg.RedisAddr = mr.Addr()

		svc := service.New(cfg)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Readiness follows the redis connection", func() {
			So(svc.Ready(ctx), ShouldBeNil)
			mr.Close()
			So(svc.Ready(ctx), ShouldNotBeNil)
		})
	})
}
