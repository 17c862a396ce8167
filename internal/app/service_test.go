package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/config"
	"github.com/okian/judgeboard/internal/domain/batch"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/protocol"
)

type nopTransport struct{}

func (nopTransport) WriteFrame(context.Context, []byte) error { return nil }
func (nopTransport) Ping(context.Context) error               { return nil }
func (nopTransport) Close() error                             { return nil }

func testConfig(dir string) *config.Config {
	cfg := config.New()
	cfg.DataDir = dir
	cfg.SaveDebounceMS = 10
	cfg.ChurnDebounceMS = 10
	return cfg
}

func newStarted(dir string) *service.Service {
	svc, err := service.New(testConfig(dir))
	So(err, ShouldBeNil)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestServiceNew(t *testing.T) {
	Convey("Given service construction", t, func() {
		Convey("When the config is nil", func() {
			svc, err := service.New(nil)

			Convey("Then defaults are used", func() {
				So(err, ShouldBeNil)
				So(svc, ShouldNotBeNil)
			})
		})

		Convey("When the config is invalid", func() {
			cfg := config.New()
			cfg.SendQueueSize = 0
			_, err := service.New(cfg)

			Convey("Then construction fails", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given an empty data directory", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		svc := newStarted(dir)

		Convey("When the service starts", func() {
			Convey("Then it falls back to the default dataset", func() {
				loaded := svc.Loaded()
				So(loaded.Fallback, ShouldBeTrue)
				So(loaded.Source, ShouldEqual, repository.SourceDefaults)
				So(len(svc.Store().Judges()), ShouldEqual, 3)
				So(len(svc.Store().Candidates()), ShouldEqual, 3)

				stats := svc.GetStats()
				So(stats.Candidates, ShouldEqual, 3)
				So(stats.Judges, ShouldEqual, 3)
				So(stats.WeightSum, ShouldEqual, 100)
				So(stats.LoadedFallback, ShouldBeTrue)
				So(stats.Connections, ShouldContainKey, string(protocol.RoleDisplay))
				So(svc.Stop(ctx), ShouldBeNil)
			})

			Convey("Then starting twice is harmless", func() {
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})

		Convey("When state changes and the service stops", func() {
			added, err := svc.Store().AddCandidate(model.Candidate{Name: "Late Arrival"})
			So(err, ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then both snapshot files are written", func() {
				_, err := os.Stat(filepath.Join(dir, "data.json"))
				So(err, ShouldBeNil)
				_, err = os.Stat(filepath.Join(dir, "data-enhanced.json"))
				So(err, ShouldBeNil)
			})

			Convey("Then a restarted service picks the state back up", func() {
				again := newStarted(dir)
				defer func() { _ = again.Stop(ctx) }()

				So(again.Loaded().Source, ShouldEqual, repository.SourceEnhanced)
				So(again.Loaded().Fallback, ShouldBeFalse)
				got, err := again.Store().Candidate(added.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Late Arrival")
			})
		})
	})
}

func TestServiceBatches(t *testing.T) {
	Convey("Given a running service with a connected judge", t, func() {
		ctx := context.Background()
		svc := newStarted(t.TempDir())
		Reset(func() { _ = svc.Stop(ctx) })

		batches := svc.Batches()
		b, err := batches.CreateFromCurrent("Morning", "")
		So(err, ShouldBeNil)
		_, err = batches.Apply(ctx, b.ID, batch.ActionStart)
		So(err, ShouldBeNil)

		judge := svc.Store().Judges()[0]
		conn, err := svc.Registry().Accept(ctx, nopTransport{}, "")
		So(err, ShouldBeNil)
		_, err = svc.Registry().Authenticate(ctx, conn.ID, protocol.RoleJudge, judge.ID)
		So(err, ShouldBeNil)
		online, _ := svc.Store().Judge(judge.ID)
		So(online.IsOnline, ShouldBeTrue)

		Convey("When the batch is paused and resumed", func() {
			_, err := batches.Apply(ctx, b.ID, batch.ActionPause)
			So(err, ShouldBeNil)
			resumed, err := batches.Apply(ctx, b.ID, batch.ActionResume)
			So(err, ShouldBeNil)

			Convey("Then the judge is still reported online", func() {
				So(resumed.Status, ShouldEqual, model.BatchActive)
				j, err := svc.Store().Judge(judge.ID)
				So(err, ShouldBeNil)
				So(j.IsOnline, ShouldBeTrue)
				So(svc.GetStats().ActiveBatchID, ShouldEqual, b.ID)
			})
		})

		Convey("When an invalid transition is applied", func() {
			_, err := batches.Apply(ctx, b.ID, batch.ActionStart)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, batch.ErrInvalidTransition), ShouldBeTrue)
			})
		})
	})
}
