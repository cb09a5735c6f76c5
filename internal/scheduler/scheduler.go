// Package scheduler triggers housekeeping jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for a name that was never added.
var ErrUnknownJob = errors.New("unknown job")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Job is a named unit of periodic work. Run usually just enqueues a task.
type Job struct {
	Name     string
	Schedule string // Cron format, five fields
	Run      func(ctx context.Context) error
}

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Scheduler runs Jobs on their cron schedules. Jobs with an empty schedule
// are registered for RunNow only.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]Job
	ids  map[string]cron.EntryID

	mu         sync.RWMutex
	isRunning  bool
	runCtx     context.Context
	cancelFunc context.CancelFunc
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]Job),
		ids:  make(map[string]cron.EntryID),
	}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %q already added", job.Name)
	}

	if job.Schedule != "" {
		if err := ValidateSchedule(job.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s' for %s: %w", job.Schedule, job.Name, err)
		}
		name := job.Name
		id, err := s.cron.AddFunc(job.Schedule, func() { s.run(name) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		s.ids[job.Name] = id
	}
	s.jobs[job.Name] = job
	return nil
}

// Start begins firing jobs. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return
	}

	s.runCtx, s.cancelFunc = context.WithCancel(ctx)
	s.cron.Start()
	s.isRunning = true

	for name, id := range s.ids {
		log.Printf("Scheduler: %s scheduled '%s'. Next run: %v", name, s.jobs[name].Schedule, s.cron.Entry(id).Next)
	}

	runCtx := s.runCtx
	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
}

// Stop waits for running jobs and halts the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	cancel()
	log.Printf("Scheduler: stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named job fires next, or nil when it is not
// scheduled or the scheduler is stopped.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ids[name]
	if !s.isRunning || !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	return &next
}

// Jobs lists registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow runs the named job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return job.Run(ctx)
}

func (s *Scheduler) run(name string) {
	s.mu.RLock()
	job := s.jobs[name]
	ctx := s.runCtx
	s.mu.RUnlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := job.Run(ctx); err != nil {
		log.Printf("Scheduler: %s failed: %v", name, err)
	}
}
