package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Task is one recurring sweep. Runs of the same task never overlap.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) error
}

type Sweeper struct {
	mu      sync.Mutex
	clock   Clock
	logger  *zap.Logger
	tasks   []Task
	timers  map[string]Timer
	ctx     context.Context
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func New(logger *zap.Logger, tasks ...Task) *Sweeper {
	return &Sweeper{
		clock:  realClock{},
		logger: logger,
		tasks:  tasks,
		timers: make(map[string]Timer),
	}
}

func (s *Sweeper) WithClock(clock Clock) {
	s.clock = clock
}

// Start schedules every task. Runs use a context that is not cancelled with ctx so a started
// transition can finish during shutdown; Stop prevents new runs.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx = context.WithoutCancel(ctx)
	for _, task := range s.tasks {
		s.scheduleLocked(task)
	}
	s.logger.Info("sweeper started", zap.Int("tasks", len(s.tasks)))
}

// Stop cancels pending runs and waits for the in-flight ones.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	s.stopped = true
	for name, timer := range s.timers {
		timer.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("sweeper stopped")
}

// RunOnce executes a task immediately, outside of its schedule.
func (s *Sweeper) RunOnce(ctx context.Context, task Task) error {
	runID := uuid.NewString()
	started := s.clock.Now()
	err := task.Run(ctx, started)
	fields := []zap.Field{
		zap.String("task", task.Name),
		zap.String("run_id", runID),
		zap.Duration("took", s.clock.Now().Sub(started)),
	}
	if err != nil {
		s.logger.Error("sweep failed", append(fields, zap.Error(err))...)
		return err
	}
	s.logger.Debug("sweep done", fields...)
	return nil
}

func (s *Sweeper) scheduleLocked(task Task) {
	interval := task.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.timers[task.Name] = s.clock.AfterFunc(interval, func() {
		s.fire(task)
	})
}

func (s *Sweeper) fire(task Task) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	ctx := s.ctx
	s.mu.Unlock()

	defer s.wg.Done()
	_ = s.RunOnce(ctx, task)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.scheduleLocked(task)
	}
}
