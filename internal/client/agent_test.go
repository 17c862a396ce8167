package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/judgeboard/internal/adapters/realtime"
	"github.com/okian/judgeboard/internal/client"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/protocol"
)

type scorer struct{}

func (scorer) SubmitScore(candidateID, judgeID string, values map[string]float64) (model.Score, error) {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return model.Score{ID: "s-" + candidateID, CandidateID: candidateID, JudgeID: judgeID, TotalScore: total}, nil
}

type server struct {
	srv    *httptest.Server
	reg    *realtime.Registry
	router *realtime.Router
	url    string
}

func newServer() *server {
	reg := realtime.NewRegistry()
	router := realtime.NewRouter(reg, realtime.WithChurnDebounce(10*time.Millisecond))
	srv := httptest.NewServer(realtime.NewHandler(reg, router, scorer{}, nil, nil))
	return &server{
		srv:    srv,
		reg:    reg,
		router: router,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (s *server) close() {
	s.router.Close()
	_ = s.reg.Close(context.Background())
	s.srv.Close()
}

type statusLog struct {
	mu  sync.Mutex
	all []client.Status
}

func (l *statusLog) add(s client.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, s)
}

func (l *statusLog) has(s client.Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, x := range l.all {
		if x == s {
			return true
		}
	}
	return false
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func fastRetry() client.Option {
	return client.WithBackoff(5*time.Millisecond, 20*time.Millisecond, 1.5)
}

func TestAgent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	Convey("Given a running server", t, func() {
		s := newServer()
		Reset(s.close)

		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)

		Convey("When a judge agent connects", func() {
			statuses := &statusLog{}
			a := client.New(s.url,
				client.WithRole(protocol.RoleJudge),
				client.WithJudgeID("j1"),
				client.WithHeartbeatInterval(20*time.Millisecond),
				fastRetry(),
			)
			a.OnStatus(statuses.add)

			accepted := make(chan protocol.ScoreAccepted, 1)
			a.Subscribe(protocol.EventScoreAccepted, func(env protocol.Envelope) {
				var sa protocol.ScoreAccepted
				if env.DecodeData(&sa) == nil {
					accepted <- sa
				}
			})

			var runErr error
			done := make(chan struct{})
			go func() {
				runErr = a.Run(ctx)
				close(done)
			}()
			Reset(func() {
				cancel()
				<-done
			})
			So(eventually(func() bool { return a.Status() == client.StatusConnected }), ShouldBeTrue)

			Convey("Then it is registered as a judge and learns its id", func() {
				So(statuses.has(client.StatusConnecting), ShouldBeTrue)
				So(a.ClientID(), ShouldNotBeEmpty)
				c, ok := s.reg.Get(a.ClientID())
				So(ok, ShouldBeTrue)
				So(c.Role(), ShouldEqual, protocol.RoleJudge)
				So(c.JudgeID(), ShouldEqual, "j1")
			})

			Convey("Then heartbeats keep the connection fresh", func() {
				c, _ := s.reg.Get(a.ClientID())
				first := c.LastHeartbeat()
				So(eventually(func() bool { return c.LastHeartbeat().After(first) }), ShouldBeTrue)
			})

			Convey("Then connection counts are mirrored", func() {
				So(eventually(func() bool { return a.Connections().Counts[protocol.RoleJudge] == 1 }), ShouldBeTrue)
			})

			Convey("Then a submitted score is acknowledged", func() {
				id, err := a.SubmitScore("c1", map[string]float64{"d1": 12, "d2": 8})
				So(err, ShouldBeNil)

				select {
				case sa := <-accepted:
					So(sa.ReplyTo, ShouldEqual, id)
					So(sa.TotalScore, ShouldEqual, 20)
				case <-time.After(2 * time.Second):
					So("no score_accepted", ShouldBeEmpty)
				}
			})

			Convey("Then it reconnects with a new session after being dropped", func() {
				first := a.ClientID()
				So(s.reg.Terminate(first, realtime.ReasonShutdown), ShouldBeTrue)

				So(eventually(func() bool {
					return a.Status() == client.StatusConnected && a.ClientID() != first
				}), ShouldBeTrue)
				So(statuses.has(client.StatusReconnecting), ShouldBeTrue)
				c, ok := s.reg.Get(a.ClientID())
				So(ok, ShouldBeTrue)
				So(c.JudgeID(), ShouldEqual, "j1")
			})

			Convey("Then cancelling stops it cleanly", func() {
				cancel()
				<-done
				So(runErr, ShouldBeNil)
				So(a.Status(), ShouldEqual, client.StatusDisconnected)
				_, err := a.SubmitScore("c1", nil)
				So(errors.Is(err, client.ErrNotConnected), ShouldBeTrue)
			})
		})

		Convey("When the agent asks for a role that does not exist", func() {
			a := client.New(s.url, client.WithRole("root"), fastRetry())
			err := a.Run(ctx)

			Convey("Then it stops without retrying", func() {
				So(errors.Is(err, client.ErrAuthRejected), ShouldBeTrue)
				So(a.Status(), ShouldEqual, client.StatusDisconnected)
			})
		})
	})

	Convey("Given no server", t, func() {
		s := newServer()
		url := s.url
		s.close()

		Convey("When the agent runs out of attempts", func() {
			statuses := &statusLog{}
			a := client.New(url, client.WithMaxAttempts(3), fastRetry())
			a.OnStatus(statuses.add)
			err := a.Run(context.Background())

			Convey("Then it reports max attempts reached", func() {
				So(errors.Is(err, client.ErrMaxAttempts), ShouldBeTrue)
				So(a.Status(), ShouldEqual, client.StatusMaxAttemptsReached)
				So(statuses.has(client.StatusReconnecting), ShouldBeTrue)
			})
		})
	})
}
