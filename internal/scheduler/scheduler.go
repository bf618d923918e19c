package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/LJTian/GiftNewsHub/internal/backoff"
	"github.com/LJTian/GiftNewsHub/internal/collector"
	"github.com/LJTian/GiftNewsHub/internal/processor"
	"github.com/LJTian/GiftNewsHub/internal/storage"
)

const (
	defaultStartupDelay  = 15 * time.Second
	defaultPersistTries  = 3
	defaultPersistBase   = 200 * time.Millisecond
	defaultPersistMaxGap = 2 * time.Second
)

// Store is what an ingestion cycle needs from the item store.
type Store interface {
	ListActiveSources(ctx context.Context) ([]storage.Source, error)
	InsertIfAbsent(ctx context.Context, n *storage.News) (bool, error)
	MarkFetched(ctx context.Context, ids []uint, at time.Time) error
}

// CycleReport summarizes one ingestion cycle.
type CycleReport struct {
	ID       string        `json:"id"`
	Sources  int           `json:"sources"`
	Fetched  int           `json:"fetched"`
	Unique   int           `json:"unique"`
	Inserted int           `json:"inserted"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

type Scheduler struct {
	cron      *cron.Cron
	job       cron.Job // runScheduled behind Recover and SkipIfStillRunning
	collector *collector.Collector
	processor *processor.Processor
	store     Store
	logger    *slog.Logger

	retry        func() backoff.Policy
	attempts     int
	sleeper      backoff.Sleeper
	startupDelay time.Duration

	mu      sync.Mutex
	baseCtx context.Context
}

type Option func(*Scheduler)

// WithRetry sets the policy and attempt cap for persistence writes.
func WithRetry(policy func() backoff.Policy, attempts int) Option {
	return func(s *Scheduler) {
		s.retry = policy
		s.attempts = attempts
	}
}

func WithSleeper(sl backoff.Sleeper) Option {
	return func(s *Scheduler) { s.sleeper = sl }
}

func WithStartupDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.startupDelay = d }
}

func New(spec string, c *collector.Collector, p *processor.Processor, store Store, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(cl)),
		collector: c,
		processor: p,
		store:     store,
		logger:    logger,
		retry: func() backoff.Policy {
			return backoff.Exponential(defaultPersistBase, defaultPersistMaxGap)
		},
		attempts:     defaultPersistTries,
		sleeper:      backoff.RealSleeper{},
		startupDelay: defaultStartupDelay,
		baseCtx:      context.Background(),
	}
	for _, o := range opts {
		o(s)
	}

	// The startup run and cron ticks share one wrapped job, so they never overlap.
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.runScheduled))
	if _, err := s.cron.AddJob(spec, s.job); err != nil {
		return nil, fmt.Errorf("scheduler: bad cron spec %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the cron schedule until ctx is done. The first cycle runs
// after the startup delay so it does not compete with server warm-up.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	first := time.AfterFunc(s.startupDelay, s.job.Run)

	go func() {
		<-ctx.Done()
		first.Stop()
		<-s.cron.Stop().Done()
		s.logger.Info("ingestion scheduler stopped")
	}()
}

func (s *Scheduler) runScheduled() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Cycle(ctx); err != nil {
		s.logger.Error("ingestion cycle failed", "err", err)
	}
}

// Cycle fetches every active source, deduplicates the merged batch and
// stores new items. Source and item failures are logged and counted; only
// a failure to list sources aborts the cycle.
func (s *Scheduler) Cycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	report := CycleReport{ID: uuid.NewString()}
	log := s.logger.With("cycle", report.ID)

	sources, err := s.store.ListActiveSources(ctx)
	if err != nil {
		return report, fmt.Errorf("scheduler: list sources: %w", err)
	}
	report.Sources = len(sources)
	log.Info("start collect job", "sources", len(sources))

	specs := make([]collector.Source, 0, len(sources))
	ids := make([]uint, 0, len(sources))
	for _, src := range sources {
		specs = append(specs, src.Spec())
		ids = append(ids, src.ID)
	}

	candidates := s.collector.Collect(ctx, specs)
	report.Fetched = len(candidates)

	processed := s.processor.Process(candidates)
	report.Unique = len(processed)

	for _, pn := range processed {
		if ctx.Err() != nil {
			break
		}
		n := storage.NewsFromProcessed(pn)
		var inserted bool
		err := backoff.Retry(ctx, s.retry(), s.attempts, s.sleeper, func(ctx context.Context) error {
			var err error
			inserted, err = s.store.InsertIfAbsent(ctx, n)
			return err
		})
		switch {
		case err != nil:
			report.Failed++
			log.Warn("persist news failed", "title", pn.Title, "err", err)
		case inserted:
			report.Inserted++
		default:
			report.Skipped++
		}
	}

	if err := s.store.MarkFetched(ctx, ids, time.Now().UTC()); err != nil {
		log.Warn("mark sources fetched failed", "err", err)
	}

	report.Duration = time.Since(start)
	log.Info("collect job done",
		"fetched", report.Fetched, "unique", report.Unique,
		"inserted", report.Inserted, "skipped", report.Skipped, "failed", report.Failed,
		"duration", report.Duration)
	return report, nil
}

// cronLogger routes robfig/cron's logging through slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
