package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	app "github.com/okian/modelmarket/internal/app"
	"github.com/okian/modelmarket/internal/config"
	"github.com/okian/modelmarket/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.So(logger.Init(), convey.ShouldBeNil)

		convey.Convey("When the system metrics updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("When system metrics are sampled", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When an HTTP server is built for a started service", func() {
			cfg := config.New()
			cfg.WorkerCount = 1
			cfg.MaxLeaderboardLimit = 5
			svc := app.New(app.WithConfig(cfg))
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			srv := newHTTPServer(cfg, svc, logger.Get())

			convey.Convey("Then it listens on the configured address with timeouts", func() {
				convey.So(srv.Addr, convey.ShouldEqual, ":9080")
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			})

			convey.Convey("Then health and stats are routed", func() {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				w = httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"started":true`)
			})

			convey.Convey("Then the configured leaderboard cap applies", func() {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=6", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			})

			convey.Convey("Then a mint round-trips through the router", func() {
				body := `{"to":"0x00000000000000000000000000000000000000a1","uri":"ipfs://x"}`
				req := httptest.NewRequest(http.MethodPost, "/assets", strings.NewReader(body))
				req.Header.Set("X-Caller", "0x00000000000000000000000000000000000000a1")
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given an invalid configuration in the environment", t, func() {
		t.Setenv("MODELMARKET_FEE_BPS", "20000")

		convey.Convey("Then run fails before serving", func() {
			err := run(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "failed to load config")
		})
	})

	convey.Convey("Given a valid configuration and a cancelled context", t, func() {
		t.Setenv("MODELMARKET_ADDR", "127.0.0.1:0")
		t.Setenv("MODELMARKET_WORKER_COUNT", "1")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		convey.Convey("Then run shuts down cleanly", func() {
			convey.So(run(ctx), convey.ShouldBeNil)
		})
	})
}
