package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/judgeboard/internal/client"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/protocol"
)

type inbox struct {
	mu   sync.Mutex
	envs []protocol.Envelope
}

func (i *inbox) add(env protocol.Envelope) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.envs = append(i.envs, env)
}

func (i *inbox) find(t protocol.EventType) (protocol.Envelope, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, env := range i.envs {
		if env.EventType == t {
			return env, true
		}
	}
	return protocol.Envelope{}, false
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func runAgent(ctx context.Context, a *client.Agent) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()
	return done
}

func TestScoringOverSockets(t *testing.T) {
	Convey("Given a service behind a socket endpoint", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		dir := t.TempDir()
		svc := newStarted(dir)

		mux := http.NewServeMux()
		mux.Handle("/ws", svc.SocketHandler())
		mux.Handle("/events/stream", svc.StreamHandler())
		srv := httptest.NewServer(mux)
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

		st := svc.Store()
		judge := st.Judges()[0]
		candidate := st.Candidates()[0]
		_, err := st.SetCurrentCandidate(candidate.ID)
		So(err, ShouldBeNil)
		values := map[string]float64{}
		for _, d := range st.Dimensions() {
			values[d.ID] = d.MaxScore - 5
		}

		display := client.New(url, client.WithRole(protocol.RoleDisplay), client.WithBackoff(5*time.Millisecond, 20*time.Millisecond, 1.5))
		seen := &inbox{}
		display.SubscribeAll(seen.add)
		panel := client.New(url,
			client.WithRole(protocol.RoleJudge),
			client.WithJudgeID(judge.ID),
			client.WithBackoff(5*time.Millisecond, 20*time.Millisecond, 1.5),
		)
		acks := &inbox{}
		panel.SubscribeAll(acks.add)

		displayDone := runAgent(ctx, display)
		panelDone := runAgent(ctx, panel)
		Reset(func() {
			cancel()
			<-displayDone
			<-panelDone
			_ = svc.Stop(context.Background())
			srv.Close()
		})
		So(waitUntil(func() bool {
			return display.Status() == client.StatusConnected && panel.Status() == client.StatusConnected
		}), ShouldBeTrue)

		Convey("When the judge submits a score", func() {
			id, err := panel.SubmitScore(candidate.ID, values)
			So(err, ShouldBeNil)

			Convey("Then the judge gets an acknowledgement", func() {
				So(waitUntil(func() bool {
					_, ok := acks.find(protocol.EventScoreAccepted)
					return ok
				}), ShouldBeTrue)
				env, _ := acks.find(protocol.EventScoreAccepted)
				var sa protocol.ScoreAccepted
				So(env.DecodeData(&sa), ShouldBeNil)
				So(sa.ReplyTo, ShouldEqual, id)
				So(sa.TotalScore, ShouldEqual, 80)
			})

			Convey("Then the display sees score_updated and the store has the total", func() {
				So(waitUntil(func() bool {
					_, ok := seen.find(protocol.EventType(model.EventScoreUpdated))
					return ok
				}), ShouldBeTrue)
				got, err := st.Candidate(candidate.ID)
				So(err, ShouldBeNil)
				So(got.TotalScore, ShouldEqual, 80)
			})

			Convey("Then the judge shows as online", func() {
				j, err := st.Judge(judge.ID)
				So(err, ShouldBeNil)
				So(j.IsOnline, ShouldBeTrue)
				So(svc.GetStats().JudgesOnline, ShouldEqual, 1)
			})
		})

		Convey("When the connections settle", func() {
			Convey("Then the display receives a coalesced status update", func() {
				So(waitUntil(func() bool {
					return display.Connections().Counts[protocol.RoleJudge] == 1 &&
						display.Connections().Counts[protocol.RoleDisplay] == 1
				}), ShouldBeTrue)
				So(display.Connections().OnlineJudges, ShouldResemble, []string{judge.ID})
			})
		})
	})
}
