// Package service wires the rating engine to its ingestion pipeline and
// implements the dependencies required by the HTTP API.
//
// Writes flow HTTP -> dedupe -> bounded queue -> single worker -> engine, so
// updates are applied one at a time in arrival order. Reads go straight to
// the engine, which hands out copies.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/unirank/internal/adapters/mirror"
	eventqueue "github.com/okian/unirank/internal/adapters/mq/queue"
	"github.com/okian/unirank/internal/adapters/mq/worker"
	"github.com/okian/unirank/internal/adapters/scheduler"
	"github.com/okian/unirank/internal/domain/dedupe"
	"github.com/okian/unirank/internal/domain/model"
	"github.com/okian/unirank/internal/domain/ranking"
	"github.com/okian/unirank/internal/domain/types"
	"github.com/okian/unirank/pkg/logger"
	"github.com/okian/unirank/pkg/metrics"
)

const (
	defaultQueueSize    = 10_000
	defaultDedupeSize   = 50_000
	defaultMirrorTopN   = 100
	defaultPublishWait  = 2 * time.Second
	drainTimeout        = 5 * time.Second
	schedulerStopWindow = 5 * time.Second
)

// Calibration holds a platform's pre-agreed difficulty and participation,
// used when an update omits them.
type Calibration struct {
	Difficulty    float64
	Participation float64
}

// PlatformSpec describes a platform to register.
type PlatformSpec struct {
	Name        string
	MaxRating   float64
	Calibration *Calibration
}

// Submission is an update as received from a collector. Nil calibration
// fields fall back to the platform's registered calibration.
type Submission struct {
	UpdateID      string
	Platform      string
	Difficulty    *float64
	Participation *float64
	Ratings       map[string]float64
	TS            time.Time
}

// SubmitResult reports what happened to a submission.
type SubmitResult struct {
	UpdateID  string
	Duplicate bool
}

// Service implements the API dependencies for the unified rating system.
type Service struct {
	mu sync.RWMutex

	// Core components
	system  *ranking.System
	deduper dedupe.Deduper
	queue   eventqueue.Queue
	worker  *worker.InMemoryWorker
	sched   *scheduler.Scheduler
	mirror  mirror.Publisher

	// Configuration
	queueSize       int
	dedupeSize      int
	coefficients    *[3]float64
	decayLambda     *float64
	historyLimit    *int
	refreshSchedule string
	seed            []PlatformSpec
	mirrorTopN      int
	publishTimeout  time.Duration
	now             func() time.Time

	calibMu      sync.RWMutex
	calibrations map[string]Calibration

	// Serializes snapshot+publish so the mirror never regresses.
	mirrorMu sync.Mutex

	// State
	started bool
	seeded  bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		mirrorTopN:     defaultMirrorTopN,
		publishTimeout: defaultPublishWait,
		now:            time.Now,
		calibrations:   make(map[string]Calibration),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	rankingOpts := []ranking.Option{ranking.WithClock(s.now)}
	if c := s.coefficients; c != nil {
		rankingOpts = append(rankingOpts, ranking.WithCoefficients(c[0], c[1], c[2]))
	}
	if s.decayLambda != nil {
		rankingOpts = append(rankingOpts, ranking.WithDecayLambda(*s.decayLambda))
	}
	if s.historyLimit != nil {
		rankingOpts = append(rankingOpts, ranking.WithHistoryLimit(*s.historyLimit))
	}
	s.system = ranking.New(rankingOpts...)

	return s
}

// Start registers the configured platforms and starts the worker and scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting rating service...")

	if !s.seeded {
		for _, p := range s.seed {
			if err := s.RegisterPlatform(ctx, p); err != nil {
				return fmt.Errorf("register %q: %w", p.Name, err)
			}
		}
		s.seeded = true
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if s.refreshSchedule != "" {
		sched, err := scheduler.New(s.refreshSchedule, s.scheduledRefresh,
			scheduler.WithLogger(s.logger.Named("scheduler")))
		if err != nil {
			cancel()
			return fmt.Errorf("refresh schedule: %w", err)
		}
		s.sched = sched
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker(s.queue, s,
		worker.WithLogger(s.logger.Named("worker")))
	go s.worker.Run(runCtx)

	if s.sched != nil {
		s.sched.Start(runCtx)
	}

	s.cancel = cancel
	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("refreshSchedule", s.refreshSchedule),
		logger.Bool("mirror", s.mirror != nil),
	)
	return nil
}

// Stop drains the queue and shuts the pipeline down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")

	if s.sched != nil {
		stopCtx, cancel := context.WithTimeout(ctx, schedulerStopWindow)
		if err := s.sched.Stop(stopCtx); err != nil {
			s.logger.Warn(ctx, "scheduler stop", logger.Error(err))
		}
		cancel()
		s.sched = nil
	}

	// Closing the queue lets the worker apply what is pending and exit.
	_ = s.queue.Close()
	select {
	case <-s.worker.Done():
	case <-time.After(drainTimeout):
		shutdownCtx, cancel := context.WithTimeout(ctx, drainTimeout)
		if err := s.worker.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "worker shutdown", logger.Error(err))
		}
		cancel()
	}

	s.cancel()
	s.started = false
	s.logger.Info(ctx, "rating service stopped")
}

// RegisterPlatform adds a platform to the engine.
func (s *Service) RegisterPlatform(ctx context.Context, p PlatformSpec) error {
	if c := p.Calibration; c != nil {
		if err := validateSignals(c.Difficulty, c.Participation); err != nil {
			return fmt.Errorf("register platform %q: %w", p.Name, err)
		}
	}
	if err := s.system.AddPlatform(p.Name, p.MaxRating); err != nil {
		return err
	}
	if p.Calibration != nil {
		s.calibMu.Lock()
		s.calibrations[p.Name] = *p.Calibration
		s.calibMu.Unlock()
	}
	platforms, _ := s.system.Counts()
	metrics.UpdatePlatforms(platforms)
	s.logger.Info(ctx, "platform registered",
		logger.String("platform", p.Name),
		logger.Float64("maxRating", p.MaxRating),
		logger.Bool("calibrated", p.Calibration != nil),
	)
	return nil
}

// Calibration returns the registered calibration of a platform.
func (s *Service) Calibration(name string) (Calibration, bool) {
	s.calibMu.RLock()
	defer s.calibMu.RUnlock()
	c, ok := s.calibrations[name]
	return c, ok
}

// RegisterUser adds a user. It reports whether the user was new.
func (s *Service) RegisterUser(ctx context.Context, userID string) (bool, error) {
	created, err := s.system.AddUser(userID)
	if err != nil {
		return false, err
	}
	if created {
		_, users := s.system.Counts()
		metrics.UpdateUsers(users)
		s.publish(ctx)
	}
	return created, nil
}

// SetCourseBonus records a user's course bonus.
func (s *Service) SetCourseBonus(ctx context.Context, userID string, bonus float64) error {
	if err := s.system.SetCourseBonus(userID, bonus); err != nil {
		return err
	}
	s.logger.Debug(ctx, "course bonus set", logger.String("userID", userID), logger.Float64("bonus", bonus))
	return nil
}

// Submit validates an update, drops replays and queues it for the worker.
func (s *Service) Submit(ctx context.Context, sub Submission) (SubmitResult, error) { //nolint:gocritic // hugeParam: value semantics
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return SubmitResult{}, ErrNotStarted
	}

	u, err := s.resolve(sub)
	if err != nil {
		metrics.RecordUpdateRejected()
		return SubmitResult{}, err
	}
	res := SubmitResult{UpdateID: u.UpdateID}

	if s.deduper.SeenAndRecord(ctx, u.UpdateID) {
		metrics.RecordUpdateDuplicate()
		s.logger.Debug(ctx, "duplicate update dropped", logger.String("updateID", u.UpdateID))
		res.Duplicate = true
		return res, nil
	}

	if err := s.queue.TryEnqueue(ctx, u); err != nil {
		// Let the collector retry the same id.
		s.deduper.Unrecord(ctx, u.UpdateID)
		switch {
		case errors.Is(err, eventqueue.ErrFull):
			return res, fmt.Errorf("%w: %w", ErrBackpressure, err)
		case errors.Is(err, eventqueue.ErrClosed):
			return res, fmt.Errorf("%w: %w", ErrNotStarted, err)
		default:
			return res, err
		}
	}

	s.logger.Debug(ctx, "update queued",
		logger.String("updateID", u.UpdateID),
		logger.String("platform", u.Platform),
		logger.Int("users", u.Users()),
	)
	return res, nil
}

// resolve fills defaults and validates a submission.
func (s *Service) resolve(sub Submission) (model.PlatformUpdate, error) { //nolint:gocritic // hugeParam: value semantics
	if _, err := s.system.Platform(sub.Platform); err != nil {
		return model.PlatformUpdate{}, err
	}

	calib, hasCalib := s.Calibration(sub.Platform)
	difficulty, participation := calib.Difficulty, calib.Participation
	if sub.Difficulty != nil {
		difficulty = *sub.Difficulty
	}
	if sub.Participation != nil {
		participation = *sub.Participation
	}
	if !hasCalib && (sub.Difficulty == nil || sub.Participation == nil) {
		return model.PlatformUpdate{}, fmt.Errorf("platform %q has no calibration; difficulty and participation are required: %w",
			sub.Platform, ranking.ErrInvalidInput)
	}
	if err := validateSignals(difficulty, participation); err != nil {
		return model.PlatformUpdate{}, fmt.Errorf("platform %q: %w", sub.Platform, err)
	}

	ratings := make(map[string]float64, len(sub.Ratings))
	for userID, r := range sub.Ratings {
		if userID == "" {
			return model.PlatformUpdate{}, fmt.Errorf("empty user id: %w", ranking.ErrInvalidInput)
		}
		if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
			return model.PlatformUpdate{}, fmt.Errorf("rating %v for %q: %w", r, userID, ranking.ErrInvalidInput)
		}
		ratings[userID] = r
	}

	id := sub.UpdateID
	if id == "" {
		id = uuid.NewString()
	}
	ts := sub.TS
	if ts.IsZero() {
		ts = s.now()
	}

	return model.PlatformUpdate{
		UpdateID:      id,
		Platform:      sub.Platform,
		Difficulty:    difficulty,
		Participation: participation,
		Ratings:       ratings,
		TS:            ts,
	}, nil
}

func validateSignals(difficulty, participation float64) error {
	if math.IsNaN(difficulty) || math.IsInf(difficulty, 0) || difficulty < 0 {
		return fmt.Errorf("difficulty %v: %w", difficulty, ranking.ErrInvalidInput)
	}
	if math.IsNaN(participation) || participation < 0 || participation > 1 {
		return fmt.Errorf("participation %v outside [0,1]: %w", participation, ranking.ErrInvalidInput)
	}
	return nil
}

// Apply runs one update through the engine. The worker is its only caller
// outside tests.
func (s *Service) Apply(ctx context.Context, u model.PlatformUpdate) error { //nolint:gocritic // hugeParam: value semantics
	start := time.Now()
	if err := s.system.UpdatePlatformStats(u.Platform, u.Difficulty, u.Participation, u.Ratings); err != nil {
		metrics.RecordUpdateRejected()
		return fmt.Errorf("apply %s: %w", u.UpdateID, err)
	}
	latency := float64(time.Since(start).Microseconds()) / 1000

	metrics.RecordUpdateProcessed()
	metrics.RecordApplyLatency(latency)
	// TS is the collector's snapshot time; the engine stamps history with its own clock.
	var lag time.Duration
	if !u.TS.IsZero() {
		lag = max(s.now().Sub(u.TS), 0)
		metrics.RecordUpdateLag(lag.Seconds())
	}
	s.observe()
	s.publish(ctx)

	s.logger.Debug(ctx, "update applied",
		logger.String("updateID", u.UpdateID),
		logger.String("platform", u.Platform),
		logger.Int("users", u.Users()),
		logger.String("ts", u.TS.UTC().Format(time.RFC3339)),
		logger.Float64("lag_s", lag.Seconds()),
		logger.Float64("latency_ms", latency),
	)
	return nil
}

// Refresh re-applies time decay without a new snapshot.
func (s *Service) Refresh(ctx context.Context) {
	s.system.Refresh()
	metrics.RecordRefresh()
	s.observe()
	s.publish(ctx)
	s.logger.Debug(ctx, "weights refreshed")
}

func (s *Service) scheduledRefresh(ctx context.Context) {
	s.Refresh(ctx)
}

// observe mirrors engine state into gauges.
func (s *Service) observe() {
	w := s.system.Weights()
	for name, v := range w.Raw {
		metrics.UpdatePlatformWeight(name, metrics.WeightRaw, v)
	}
	for name, v := range w.Softmax {
		metrics.UpdatePlatformWeight(name, metrics.WeightSoftmax, v)
	}
	for name, v := range w.Final {
		metrics.UpdatePlatformWeight(name, metrics.WeightFinal, v)
	}
	platforms, users := s.system.Counts()
	metrics.UpdatePlatforms(platforms)
	metrics.UpdateUsers(users)
}

// publish pushes the current leaders to the mirror. Failures are logged only.
// Each publish is bounded by publishTimeout so a stalled mirror cannot hold
// up the writer for longer than that.
func (s *Service) publish(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.mirror.Publish(pctx, toEntries(s.system.TopN(s.mirrorTopN))); err != nil {
		s.logger.Warn(ctx, "leaderboard mirror failed", logger.Error(err))
	}
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return toEntries(s.system.TopN(n)), nil
}

// Rank returns the leaderboard entry of a user.
func (s *Service) Rank(ctx context.Context, userID string) (types.Entry, error) {
	r, err := s.system.Rank(userID)
	if err != nil {
		return types.Entry{}, err
	}
	return toEntry(r), nil
}

// Weights returns the weights of the last recompute.
func (s *Service) Weights(ctx context.Context) types.WeightsView {
	w := s.system.Weights()
	return types.WeightsView{Raw: w.Raw, Softmax: w.Softmax, Final: w.Final}
}

// Platforms returns every registered platform sorted by name.
func (s *Service) Platforms(ctx context.Context) []types.PlatformView {
	stats := s.system.Platforms()
	out := make([]types.PlatformView, len(stats))
	for i, p := range stats {
		out[i] = types.PlatformView{
			Name:          p.Name,
			MaxRating:     p.MaxRating,
			Difficulty:    p.Difficulty,
			Participation: p.Participation,
			Drift:         p.Drift,
			Updates:       p.Updates,
			LastUpdate:    p.LastUpdate,
		}
	}
	return out
}

// User returns a user's account.
func (s *Service) User(ctx context.Context, userID string) (types.UserView, error) {
	a, err := s.system.User(userID)
	if err != nil {
		return types.UserView{}, err
	}
	return types.UserView{
		UserID:          a.UserID,
		PlatformRatings: a.PlatformRatings,
		UnifiedRating:   a.UnifiedRating,
		CourseBonus:     a.CourseBonus,
		TotalRating:     a.TotalRating,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	platforms, users := s.system.Counts()
	stats := map[string]interface{}{
		"started":         s.started,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"platforms":       platforms,
		"users":           users,
		"refreshSchedule": s.refreshSchedule,
		"mirror":          s.mirror != nil,
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		if s.sched != nil {
			stats["nextRefresh"] = s.sched.Next()
		}
		metrics.UpdateQueueSize(queueLen)
	}
	metrics.UpdatePlatforms(platforms)
	metrics.UpdateUsers(users)

	return stats
}

func toEntries(rs []ranking.Ranking) []types.Entry {
	out := make([]types.Entry, len(rs))
	for i, r := range rs {
		out[i] = toEntry(r)
	}
	return out
}

func toEntry(r ranking.Ranking) types.Entry {
	return types.Entry{
		Rank:          r.Rank,
		UserID:        r.UserID,
		UnifiedRating: r.UnifiedRating,
		CourseBonus:   r.CourseBonus,
		TotalRating:   r.TotalRating,
	}
}
