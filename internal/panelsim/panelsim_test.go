package panelsim_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/judgeboard/internal/adapters/http/api"
	app "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/config"
	"github.com/okian/judgeboard/internal/panelsim"
	. "github.com/smartystreets/goconvey/convey"
)

func newServer(t *testing.T) (*app.Service, *httptest.Server) {
	cfg := config.New()
	cfg.DataDir = t.TempDir()
	cfg.SaveDebounceMS = 10
	cfg.ChurnDebounceMS = 10
	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ws", svc.SocketHandler())
	api.NewServer(svc.Store(), svc.Batches(), svc).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
		srv.Close()
	})
	return svc, srv
}

func TestRun(t *testing.T) {
	Convey("Given a running server with the default dataset", t, func() {
		svc, srv := newServer(t)
		out := filepath.Join(t.TempDir(), "subs", "submissions.json")

		Convey("When two judges are simulated", func() {
			stats, err := panelsim.Run(context.Background(), &panelsim.Config{
				BaseURL:    srv.URL,
				Judges:     2,
				Workers:    4,
				Timeout:    5 * time.Second,
				Settle:     5 * time.Second,
				OutputFile: out,
			})

			Convey("Then every submission is accepted and ranked", func() {
				So(err, ShouldBeNil)
				So(stats.JudgesSeated, ShouldEqual, 2)
				So(stats.Submitted, ShouldEqual, 2*stats.Candidates)
				So(stats.Accepted, ShouldEqual, stats.Submitted)
				So(stats.Rejected, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldEqual, stats.Candidates)

				for _, e := range svc.Store().Leaderboard() {
					So(e.Judged, ShouldEqual, 2)
				}
			})

			Convey("Then the submissions are written out", func() {
				So(err, ShouldBeNil)
				info, statErr := os.Stat(out)
				So(statErr, ShouldBeNil)
				So(info.Size(), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestRunUnreachable(t *testing.T) {
	Convey("Given no server", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("When the simulator runs", func() {
			_, err := panelsim.Run(context.Background(), &panelsim.Config{BaseURL: url, Timeout: time.Second})

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health check")
			})
		})
	})
}
