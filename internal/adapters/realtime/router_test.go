package realtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/judgeboard/internal/adapters/realtime"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/protocol"
)

func TestRouter(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("Given a router over three connections", t, func() {
		ctx := context.Background()
		reg := realtime.NewRegistry(realtime.WithIDGenerator(seqIDs("c")))
		router := realtime.NewRouter(reg, realtime.WithChurnDebounce(time.Hour))
		Reset(func() {
			router.Close()
			So(reg.Close(ctx), ShouldBeNil)
		})

		admin, judge, display := &fakeTransport{}, &fakeTransport{}, &fakeTransport{}
		a, _ := reg.Accept(ctx, admin, "")
		j, _ := reg.Accept(ctx, judge, "")
		d, _ := reg.Accept(ctx, display, "")
		_, _ = reg.Authenticate(ctx, j.ID, protocol.RoleJudge, "j1")
		_, _ = reg.Authenticate(ctx, d.ID, protocol.RoleDisplay, "")
		// drop the greetings
		So(eventually(func() bool {
			return len(admin.envelopes()) == 1 && len(judge.envelopes()) == 1 && len(display.envelopes()) == 1
		}), ShouldBeTrue)

		last := func(tr *fakeTransport) protocol.EventType {
			envs := tr.envelopes()
			return envs[len(envs)-1].EventType
		}

		Convey("When broadcasting with an exclusion", func() {
			env, _ := protocol.NewEvent(protocol.EventStageChanged, map[string]string{"stage": "qa"})
			n := router.Broadcast(env, a.ID)

			Convey("Then everyone else receives it", func() {
				So(n, ShouldEqual, 2)
				So(eventually(func() bool { return len(judge.envelopes()) == 2 && len(display.envelopes()) == 2 }), ShouldBeTrue)
				So(last(judge), ShouldEqual, protocol.EventStageChanged)
				So(len(admin.envelopes()), ShouldEqual, 1)
			})
		})

		Convey("When broadcasting to one role", func() {
			env, _ := protocol.NewEvent(protocol.EventTimerChanged, map[string]int{"remaining": 30})
			n := router.BroadcastToRole(env, protocol.RoleJudge, "")

			Convey("Then only that role receives it", func() {
				So(n, ShouldEqual, 1)
				So(eventually(func() bool { return len(judge.envelopes()) == 2 }), ShouldBeTrue)
				time.Sleep(20 * time.Millisecond)
				So(len(display.envelopes()), ShouldEqual, 1)
				So(len(admin.envelopes()), ShouldEqual, 1)
			})
		})

		Convey("When sending to a single client", func() {
			So(router.SendToClient(d.ID, protocol.NewHeartbeat()), ShouldBeNil)
			err := router.SendToClient("gone", protocol.NewHeartbeat())

			Convey("Then only it receives it and unknown ids fail", func() {
				So(errors.Is(err, realtime.ErrUnknownConnection), ShouldBeTrue)
				So(eventually(func() bool { return len(display.envelopes()) == 2 }), ShouldBeTrue)
				So(display.envelopes()[1].Kind, ShouldEqual, protocol.KindHeartbeat)
			})
		})

		Convey("When a domain event is forwarded", func() {
			at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			router.Forward(model.Event{
				Type: model.EventCandidateChanged,
				Data: map[string]string{"action": "updated", "id": "cand-1"},
				At:   at,
			})

			Convey("Then every connection gets an event envelope stamped with its time", func() {
				for _, tr := range []*fakeTransport{admin, judge, display} {
					So(eventually(func() bool { return len(tr.envelopes()) == 2 }), ShouldBeTrue)
					env := tr.envelopes()[1]
					So(env.Kind, ShouldEqual, protocol.KindEvent)
					So(env.EventType, ShouldEqual, protocol.EventType(model.EventCandidateChanged))
					So(env.Timestamp, ShouldEqual, at.UnixMilli())
				}
			})
		})

		Convey("When churn is flushed", func() {
			reg.Terminate(a.ID, realtime.ReasonClientGone)
			router.FlushChurn()

			Convey("Then remaining connections receive one status update", func() {
				So(eventually(func() bool { return len(judge.envelopes()) == 2 }), ShouldBeTrue)
				env := judge.envelopes()[1]
				So(env.EventType, ShouldEqual, protocol.EventConnectionStatus)

				var st protocol.ConnectionStatus
				So(env.DecodeData(&st), ShouldBeNil)
				So(st.Total, ShouldEqual, 2)
				So(st.Connected, ShouldEqual, 3)
				So(st.Disconnected, ShouldEqual, 1)
				So(st.Counts[protocol.RoleAdmin], ShouldEqual, 0)
				So(st.Counts[protocol.RoleJudge], ShouldEqual, 1)
				So(st.OnlineJudges, ShouldResemble, []string{"j1"})
			})
		})

		Convey("When a stream subscribes for the display role", func() {
			s := router.AddStream(protocol.RoleDisplay)
			So(router.Streams(), ShouldEqual, 1)

			toJudges, _ := protocol.NewEvent(protocol.EventTimerChanged, map[string]int{"remaining": 5})
			router.BroadcastToRole(toJudges, protocol.RoleJudge, "")
			router.Forward(model.Event{Type: model.EventScoreUpdated, Data: map[string]string{"candidateId": "x"}})

			Convey("Then it receives domain events but not other roles' traffic", func() {
				f := <-s.Frames()
				So(f.EventType, ShouldEqual, string(model.EventScoreUpdated))
				So(len(s.Frames()), ShouldEqual, 0)
			})

			Convey("Then removing it closes its channel", func() {
				router.RemoveStream(s.ID)
				So(router.Streams(), ShouldEqual, 0)
				for range s.Frames() {
				}
				_, ok := <-s.Frames()
				So(ok, ShouldBeFalse)
			})
		})
	})
}
