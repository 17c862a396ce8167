// Package service wires the domain store, the batch manager, persistence and
// the realtime layer into one process and exposes what the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/judgeboard/internal/adapters/realtime"
	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/config"
	"github.com/okian/judgeboard/internal/domain/batch"
	"github.com/okian/judgeboard/internal/domain/bus"
	"github.com/okian/judgeboard/internal/domain/dedupe"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/store"
	"github.com/okian/judgeboard/internal/domain/types"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

const systemMetricsInterval = 15 * time.Second

// Service is the process context object. Construct it with New, call Start
// once, Run the background loops and Stop on shutdown.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store   *store.Store
	batches *batch.Manager
	repo    repository.Store
	flusher *repository.Flusher
	reg     *realtime.Registry
	router  *realtime.Router
	sockets *realtime.Handler
	streams *realtime.StreamHandler
	seen    dedupe.Deduper

	forward   bus.Token
	loaded    repository.Loaded
	started   bool
	startedAt time.Time

	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRepository replaces the file store built from the config.
func WithRepository(r repository.Store) Option {
	return func(s *Service) {
		if r != nil {
			s.repo = r
		}
	}
}

// WithClock sets the time source used by the store, batches and files.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the entity and connection id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New builds every component from cfg. Nothing is loaded or started yet.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.GetOr(logger.NewNop()),
	}
	for _, opt := range opts {
		opt(s)
	}

	markDirty := func() { s.flusher.MarkDirty() }
	s.store = store.New(
		store.WithClock(s.now),
		store.WithIDGenerator(s.newID),
		store.WithOnChange(markDirty),
		store.WithLogger(s.logger.Named("store")),
	)
	s.batches = batch.New(s.store,
		batch.WithBus(s.store.Bus()),
		batch.WithClock(s.now),
		batch.WithIDGenerator(s.newID),
		batch.WithOnChange(markDirty),
		batch.WithLogger(s.logger.Named("batch")),
	)
	if s.repo == nil {
		s.repo = repository.NewFileStore(cfg.DataDir,
			repository.WithPrimaryFile(cfg.PrimaryPath()),
			repository.WithEnhancedFile(cfg.EnhancedPath()),
			repository.WithBackupDir(cfg.BackupPath()),
			repository.WithBackupRetention(cfg.BackupRetention),
			repository.WithClock(s.now),
			repository.WithIDGenerator(s.newID),
			repository.WithLogger(s.logger.Named("repository")),
		)
	}
	s.flusher = repository.NewFlusher(s.repo, s.batches.Document,
		repository.WithDebounce(cfg.SaveDebounce()),
		repository.WithFlusherLogger(s.logger.Named("flusher")),
	)

	s.reg = realtime.NewRegistry(
		realtime.WithHeartbeatTimeout(cfg.HeartbeatTimeout()),
		realtime.WithSweepInterval(cfg.HeartbeatInterval()),
		realtime.WithPingInterval(cfg.PingInterval()),
		realtime.WithQueueSize(cfg.SendQueueSize),
		realtime.WithJudgeStatus(s.store),
		realtime.WithIDGenerator(s.newID),
		realtime.WithLogger(s.logger.Named("registry")),
	)
	s.router = realtime.NewRouter(s.reg,
		realtime.WithChurnDebounce(cfg.ChurnDebounce()),
		realtime.WithRouterLogger(s.logger.Named("router")),
	)
	s.seen = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))
	s.sockets = realtime.NewHandler(s.reg, s.router, s.store, s.seen, s.logger.Named("socket"))
	s.streams = realtime.NewStreamHandler(s.router, s.logger.Named("stream"))
	return s, nil
}

// Start loads the persisted document and begins forwarding domain events.
// An unreadable or invalid document falls back to the built-in defaults.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting judgeboard service...")
	loaded := s.repo.Load(ctx)
	if err := s.batches.Restore(loaded.Document); err != nil {
		s.logger.Error(ctx, "loaded document rejected, using defaults", logger.Error(err))
		metrics.RecordLoadFallback()
		loaded = repository.Loaded{
			Document: repository.DefaultDocument(s.now(), s.newID),
			Source:   repository.SourceDefaults,
			Fallback: true,
			Reason:   err,
		}
		if err := s.batches.Restore(loaded.Document); err != nil {
			return fmt.Errorf("restore defaults: %w", err)
		}
	}
	if loaded.Fallback {
		s.logger.Warn(ctx, "starting from defaults", logger.Error(loaded.Reason))
		s.flusher.MarkDirty()
	}
	s.loaded = loaded

	s.forward = s.store.Bus().SubscribeAll(s.router.Forward)
	s.started = true
	s.startedAt = s.now()

	st := s.store.Snapshot()
	s.logger.Info(ctx, "judgeboard service started",
		logger.String("source", string(loaded.Source)),
		logger.Int("candidates", len(st.Candidates)),
		logger.Int("judges", len(st.Judges)),
		logger.Int("batches", s.batches.Len()),
	)
	return nil
}

// Run drives the liveness sweep and the system gauges until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.reg.Run(gctx)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(systemMetricsInterval)
		defer ticker.Stop()
		for {
			updateSystemMetrics()
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}

// Stop closes every socket with a normal closure, ends the streams and
// writes the document one last time.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping judgeboard service...")

	var errs []error
	if err := s.reg.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close connections: %w", err))
	}
	s.router.Close()
	s.store.Bus().Unsubscribe(s.forward)
	if err := s.flusher.ForceSave(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final save: %w", err))
	}
	if err := s.flusher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close flusher: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "judgeboard service stopped")
	return errors.Join(errs...)
}

// Store returns the authoritative state store.
func (s *Service) Store() *store.Store { return s.store }

// Registry returns the connection registry.
func (s *Service) Registry() *realtime.Registry { return s.reg }

// Router returns the broadcast router.
func (s *Service) Router() *realtime.Router { return s.router }

// SocketHandler serves GET /ws.
func (s *Service) SocketHandler() http.Handler { return s.sockets }

// StreamHandler serves GET /events/stream.
func (s *Service) StreamHandler() http.Handler { return s.streams }

// Loaded reports where the document came from at Start.
func (s *Service) Loaded() repository.Loaded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Save writes the document now.
func (s *Service) Save(ctx context.Context) error {
	return s.flusher.ForceSave(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	started, startedAt, fallback := s.started, s.startedAt, s.loaded.Fallback
	s.mu.RUnlock()

	st := s.store.Snapshot()
	stats := types.Stats{
		Candidates:     len(st.Candidates),
		Judges:         len(st.Judges),
		Connections:    make(map[string]int),
		StreamClients:  s.router.Streams(),
		ActiveBatchID:  s.batches.ActiveID(),
		Batches:        s.batches.Len(),
		Dirty:          s.flusher.Dirty(),
		LoadedFallback: fallback,
		WeightSum:      s.store.WeightSum(),
	}
	for _, c := range st.Candidates {
		if c.Status == model.StatusCompleted {
			stats.Completed++
		}
	}
	for _, j := range st.Judges {
		if j.IsOnline {
			stats.JudgesOnline++
		}
	}
	for role, n := range s.reg.Counts() {
		stats.Connections[string(role)] = n
	}
	if at, _ := s.flusher.LastFlush(); !at.IsZero() {
		stats.LastFlush = at.UTC().Format(time.RFC3339)
	}
	if started {
		stats.UptimeSeconds = s.now().Sub(startedAt).Seconds()
	}

	metrics.UpdateCandidatesTotal(stats.Candidates)
	metrics.UpdateJudgesOnline(stats.JudgesOnline)
	return stats
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
