package panelsim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/judgeboard/internal/client"
	"github.com/okian/judgeboard/internal/protocol"
	"github.com/okian/judgeboard/pkg/logger"
)

// seat is one connected socket client.
type seat struct {
	judgeID string
	agent   *client.Agent
}

// panel owns the judge and display clients for one run.
type panel struct {
	judges  map[string]*seat
	display *client.Agent

	accepted   atomic.Int64
	rejected   atomic.Int64
	broadcasts atomic.Int64

	cancel context.CancelFunc
	g      *errgroup.Group
}

// seatPanel connects a display and one client per judge id and waits until
// every one of them is authenticated.
func seatPanel(ctx context.Context, socketURL string, judgeIDs []string, timeout time.Duration) (*panel, error) {
	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	p := &panel{judges: make(map[string]*seat, len(judgeIDs)), cancel: cancel, g: g}

	log := logger.GetOr(logger.NewNop()).Named("panelsim")
	opts := []client.Option{
		client.WithMaxAttempts(3),
		client.WithHandshakeTimeout(timeout),
		client.WithLogger(log),
	}

	p.display = client.New(socketURL, append(opts, client.WithRole(protocol.RoleDisplay))...)
	p.display.Subscribe(protocol.EventScoreUpdated, func(protocol.Envelope) { p.broadcasts.Add(1) })

	agents := []*client.Agent{p.display}
	for _, id := range judgeIDs {
		a := client.New(socketURL, append(opts, client.WithRole(protocol.RoleJudge), client.WithJudgeID(id))...)
		a.SubscribeAll(p.acknowledge)
		p.judges[id] = &seat{judgeID: id, agent: a}
		agents = append(agents, a)
	}
	for _, a := range agents {
		g.Go(func() error { return a.Run(gctx) })
	}

	deadline := time.Now().Add(timeout)
	for _, a := range agents {
		for a.Status() != client.StatusConnected {
			if time.Now().After(deadline) {
				p.close()
				return nil, fmt.Errorf("client did not connect within %s (status %s)", timeout, a.Status())
			}
			select {
			case <-gctx.Done():
				err := p.close()
				if err == nil {
					err = ctx.Err()
				}
				return nil, fmt.Errorf("seating panel: %w", err)
			case <-time.After(pollInterval):
			}
		}
	}
	return p, nil
}

func (p *panel) acknowledge(env protocol.Envelope) {
	switch {
	case env.EventType == protocol.EventScoreAccepted:
		p.accepted.Add(1)
	case env.Kind == protocol.KindError:
		p.rejected.Add(1)
	}
}

// submitAll sends every submission through its judge's client using a pool
// of workers and returns how many could not be written.
func (p *panel) submitAll(ctx context.Context, subs []Submission, workers int, verbose bool) int {
	if workers < 1 {
		workers = 1
	}
	ch := make(chan Submission, workers*WorkerChannelMultiplier)
	var (
		failed atomic.Int64
		wg     sync.WaitGroup
	)
	log := logger.GetOr(logger.NewNop())

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range ch {
				s, ok := p.judges[sub.JudgeID]
				if !ok {
					failed.Add(1)
					continue
				}
				if _, err := s.agent.SubmitScore(sub.CandidateID, sub.DimensionScores); err != nil {
					failed.Add(1)
					if verbose {
						log.Warn(ctx, "submit failed",
							logger.String("judge", sub.JudgeID),
							logger.String("candidate", sub.CandidateID),
							logger.Error(err))
					}
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, sub := range subs {
			select {
			case <-ctx.Done():
				return
			case ch <- sub:
			}
		}
	}()
	wg.Wait()
	return int(failed.Load())
}

// settle waits until want acknowledgements arrived or the window elapsed.
func (p *panel) settle(ctx context.Context, want int, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for int(p.accepted.Load()+p.rejected.Load()) < want {
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
	return true
}

// close disconnects every client.
func (p *panel) close() error {
	p.cancel()
	return p.g.Wait()
}
