package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	app "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/config"
	"github.com/okian/judgeboard/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func newService(t *testing.T) *app.Service {
	cfg := config.New()
	cfg.DataDir = t.TempDir()
	cfg.SaveDebounceMS = 10
	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})
	return svc
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a started service behind the process mux", t, func() {
		svc := newService(t)
		srv := httptest.NewServer(newMux(context.Background(), svc))
		defer srv.Close()

		get := func(path string) *http.Response {
			resp, err := http.Get(srv.URL + path)
			convey.So(err, convey.ShouldBeNil)
			return resp
		}

		convey.Convey("Then the API, docs and scoreboard are all reachable", func() {
			for _, path := range []string{"/healthz", "/api/state", "/api/leaderboard", "/openapi.yaml", "/api-docs", "/"} {
				resp := get(path)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then /stats reports the default dataset", func() {
			resp := get("/stats")
			defer resp.Body.Close()
			var stats types.Stats
			convey.So(json.NewDecoder(resp.Body).Decode(&stats), convey.ShouldBeNil)
			convey.So(stats.Candidates, convey.ShouldEqual, 3)
			convey.So(stats.Judges, convey.ShouldEqual, 3)
			convey.So(stats.LoadedFallback, convey.ShouldBeTrue)
		})

		convey.Convey("Then the socket endpoint refuses plain requests", func() {
			resp := get("/ws")
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldBeGreaterThanOrEqualTo, http.StatusBadRequest)
		})

		convey.Convey("Then an invalid stream role is rejected", func() {
			resp := get("/events/stream?role=root")
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRunRejectsBadConfig(t *testing.T) {
	convey.Convey("Given an invalid configuration in the environment", t, func() {
		t.Setenv(config.EnvPrefix+"ADDR", "")
		t.Setenv(config.EnvPrefix+"SEND_QUEUE_SIZE", "0")

		convey.Convey("When run is invoked", func() {
			err := run(context.Background())

			convey.Convey("Then it fails before serving", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "load config")
			})
		})
	})
}
