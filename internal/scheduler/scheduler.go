// Package scheduler implements the in-process job scheduler: a priority
// queue with a bounded worker pool, per-job status and progress tracking,
// retry-with-requeue on task failure, and status change subscriptions.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/common"
	"github.com/finsight/reportgen/internal/models"
)

// Scheduler defaults.
const (
	DefaultMaxConcurrentJobs = 3
	DefaultPollInterval      = 1 * time.Second
	DefaultCleanupInterval   = 30 * time.Minute
	DefaultRetentionWindow   = 12 * time.Hour
	DefaultMaxAttempts       = 2
)

// Task is the unit of scheduled work. The progress callback reports 0-100
// completion plus optional metadata. A returned error (or panic) triggers
// the retry/requeue path.
type Task func(ctx context.Context, progress ProgressFunc) error

// ProgressFunc reports task progress to the scheduler.
type ProgressFunc func(progress int, metadata map[string]interface{})

// StatusCallback receives job status snapshots.
type StatusCallback func(status models.JobStatus)

// EnqueueOptions tunes job submission. Zero values fall back to defaults:
// generated job ID, priority 1, the configured default max attempts.
type EnqueueOptions struct {
	JobID       string
	Priority    int
	MaxAttempts int
	Metadata    map[string]interface{}
}

// Config carries the scheduler tuning knobs.
type Config struct {
	MaxConcurrentJobs  int
	PollInterval       time.Duration
	CleanupInterval    time.Duration
	RetentionWindow    time.Duration
	DefaultMaxAttempts int
}

// job is the internal queue entry. Status lives separately in the statuses
// map so it survives the job leaving the queue.
type job struct {
	id          string
	task        Task
	priority    int
	attempts    int
	maxAttempts int
}

type subscription struct {
	callback StatusCallback
}

// Scheduler runs enqueued tasks on a bounded worker pool, highest priority
// first. All mutable state is guarded by mu; subscriber callbacks are
// always invoked outside the lock.
type Scheduler struct {
	cfg    Config
	logger arbor.ILogger

	mu          sync.Mutex
	queue       []*job
	statuses    map[string]*models.JobStatus
	subscribers map[string][]*subscription
	activeJobs  int
	running     bool

	wake   chan struct{}
	stopCh chan struct{}
	cron   *cron.Cron

	// now is overridable for retention tests.
	now func() time.Time
}

// New creates a scheduler. Jobs may be enqueued before Start; they are
// dispatched once the scheduler is running.
func New(cfg Config, logger arbor.ILogger) *Scheduler {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = DefaultRetentionWindow
	}
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = DefaultMaxAttempts
	}

	return &Scheduler{
		cfg:         cfg,
		logger:      logger,
		statuses:    make(map[string]*models.JobStatus),
		subscribers: make(map[string][]*subscription),
		wake:        make(chan struct{}, 1),
		now:         time.Now,
	}
}

// NewFromConfig builds a scheduler from the application configuration.
func NewFromConfig(cfg *common.SchedulerConfig, logger arbor.ILogger) *Scheduler {
	return New(Config{
		MaxConcurrentJobs:  cfg.MaxConcurrentJobs,
		PollInterval:       common.MustDuration(cfg.PollInterval),
		CleanupInterval:    common.MustDuration(cfg.CleanupInterval),
		RetentionWindow:    common.MustDuration(cfg.RetentionWindow),
		DefaultMaxAttempts: cfg.DefaultMaxAttempts,
	}, logger)
}

// Start launches the dispatch loop and the terminal-status cleanup sweep.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.CleanupInterval), s.cleanup); err != nil {
		return fmt.Errorf("failed to schedule cleanup sweep: %w", err)
	}
	s.cron.Start()

	common.SafeGo(s.logger, "schedulerDispatch", s.dispatchLoop)

	s.logger.Info().
		Int("max_concurrent_jobs", s.cfg.MaxConcurrentJobs).
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("cleanup_interval", s.cfg.CleanupInterval).
		Msg("Job scheduler started")

	return nil
}

// Stop halts dispatching. Jobs already picked up run to completion; queued
// jobs stay queued.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh := s.stopCh
	s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
	}
	close(stopCh)

	s.logger.Info().Msg("Job scheduler stopped")
}

// Enqueue submits a task. The job is inserted in descending priority order,
// after existing jobs of equal priority, and its status is immediately
// observable as queued.
func (s *Scheduler) Enqueue(task Task, opts EnqueueOptions) string {
	jobID := opts.JobID
	if jobID == "" {
		jobID = common.NewJobID()
	}
	priority := opts.Priority
	if priority == 0 {
		priority = 1
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.DefaultMaxAttempts
	}

	j := &job{
		id:          jobID,
		task:        task,
		priority:    priority,
		maxAttempts: maxAttempts,
	}

	now := s.now()
	s.mu.Lock()
	s.insertByPriorityLocked(j)
	s.statuses[jobID] = &models.JobStatus{
		JobID:     jobID,
		Status:    models.JobStateQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  opts.Metadata,
	}
	snapshot, callbacks := s.snapshotLocked(jobID)
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", jobID).
		Int("priority", priority).
		Int("max_attempts", maxAttempts).
		Msg("Job enqueued")

	s.fanOut(snapshot, callbacks)
	s.signalWake()
	return jobID
}

// UpdateProgress mutates a job's observable status and fans the change out
// to subscribers. Unknown job IDs are a no-op. Progress is clamped to
// 0-100 and never decreases while the job stays in processing.
func (s *Scheduler) UpdateProgress(jobID string, progress int, status models.JobState, metadata map[string]interface{}) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	s.mu.Lock()
	st, ok := s.statuses[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}

	if st.Status == models.JobStateProcessing && status == models.JobStateProcessing && progress < st.Progress {
		progress = st.Progress
	}
	if status == models.JobStateRetrying {
		progress = 0
	}

	st.Status = status
	st.Progress = progress
	st.UpdatedAt = s.now()
	if metadata != nil {
		if st.Metadata == nil {
			st.Metadata = make(map[string]interface{}, len(metadata))
		}
		for k, v := range metadata {
			st.Metadata[k] = v
		}
	}
	snapshot, callbacks := s.snapshotLocked(jobID)
	s.mu.Unlock()

	s.fanOut(snapshot, callbacks)
}

// GetStatus returns a snapshot of the job's status, or nil if the job is
// unknown or already swept.
func (s *Scheduler) GetStatus(jobID string) *models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[jobID]
	if !ok {
		return nil
	}
	snapshot := st.Clone()
	return &snapshot
}

// Subscribe registers a callback for a job's status changes. The callback
// fires once immediately with the current status when the job is known,
// then on every subsequent update. The returned function removes exactly
// this subscription.
func (s *Scheduler) Subscribe(jobID string, callback StatusCallback) func() {
	sub := &subscription{callback: callback}

	s.mu.Lock()
	s.subscribers[jobID] = append(s.subscribers[jobID], sub)
	var current *models.JobStatus
	if st, ok := s.statuses[jobID]; ok {
		snapshot := st.Clone()
		current = &snapshot
	}
	s.mu.Unlock()

	if current != nil {
		callback(*current)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		subs := s.subscribers[jobID]
		for i, candidate := range subs {
			if candidate == sub {
				s.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(s.subscribers[jobID]) == 0 {
			delete(s.subscribers, jobID)
		}
	}
}

// QueueLength is the number of jobs waiting for a worker slot.
func (s *Scheduler) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ActiveJobs is the number of currently executing tasks.
func (s *Scheduler) ActiveJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeJobs
}

// dispatchLoop wakes on enqueue and worker-free events, with a periodic
// tick as a latency backstop.
func (s *Scheduler) dispatchLoop() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.dispatch()

		select {
		case <-s.stopCh:
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// dispatch starts queued jobs while worker slots are free.
func (s *Scheduler) dispatch() {
	for {
		s.mu.Lock()
		if !s.running || s.activeJobs >= s.cfg.MaxConcurrentJobs || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}

		j := s.queue[0]
		s.queue = s.queue[1:]
		s.activeJobs++
		j.attempts++

		st, ok := s.statuses[j.id]
		if ok {
			startedAt := s.now()
			st.Status = models.JobStateProcessing
			st.Attempts = j.attempts
			// A retried attempt starts with a clean slate; the prior
			// attempt's error is only visible on retrying and failed.
			st.LastError = ""
			st.StartedAt = &startedAt
			st.UpdatedAt = startedAt
		}
		snapshot, callbacks := s.snapshotLocked(j.id)
		s.mu.Unlock()

		if ok {
			s.fanOut(snapshot, callbacks)
		}

		common.SafeGo(s.logger, "jobWorker:"+j.id, func() {
			s.runJob(j)
		})
	}
}

// runJob executes one task attempt and applies the retry/requeue policy.
// A task panic is converted to an error so one job can never take down the
// scheduler or its sibling workers.
func (s *Scheduler) runJob(j *job) {
	start := s.now()
	err := s.execute(j)

	s.mu.Lock()
	s.activeJobs--

	st, tracked := s.statuses[j.id]
	switch {
	case err == nil:
		if tracked {
			finishedAt := s.now()
			st.Status = models.JobStateCompleted
			st.Progress = 100
			st.LastError = ""
			st.CompletedAt = &finishedAt
			st.UpdatedAt = finishedAt
		}
	case j.attempts < j.maxAttempts:
		// Requeue at the front with a priority boost so the retry is not
		// starved behind newly arriving high-priority jobs.
		j.priority++
		s.queue = append([]*job{j}, s.queue...)
		if tracked {
			st.Status = models.JobStateRetrying
			st.Progress = 0
			st.LastError = err.Error()
			st.UpdatedAt = s.now()
		}
	default:
		if tracked {
			finishedAt := s.now()
			st.Status = models.JobStateFailed
			st.LastError = err.Error()
			st.CompletedAt = &finishedAt
			st.UpdatedAt = finishedAt
		}
	}
	snapshot, callbacks := s.snapshotLocked(j.id)
	s.mu.Unlock()

	if tracked {
		s.fanOut(snapshot, callbacks)
	}

	event := s.logger.Info()
	if err != nil {
		event = s.logger.Warn().Err(err)
	}
	event.
		Str("job_id", j.id).
		Int("attempt", j.attempts).
		Int("max_attempts", j.maxAttempts).
		Dur("duration", s.now().Sub(start)).
		Msg("Job attempt finished")

	s.signalWake()
}

// execute runs the task with panic containment.
func (s *Scheduler) execute(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()

	progress := func(p int, metadata map[string]interface{}) {
		s.UpdateProgress(j.id, p, models.JobStateProcessing, metadata)
	}
	return j.task(context.Background(), progress)
}

// cleanup sweeps terminal job statuses older than the retention window,
// along with their subscriber lists.
func (s *Scheduler) cleanup() {
	cutoff := s.now().Add(-s.cfg.RetentionWindow)

	s.mu.Lock()
	removed := 0
	for id, st := range s.statuses {
		if st.Status.IsTerminal() && st.UpdatedAt.Before(cutoff) {
			delete(s.statuses, id)
			delete(s.subscribers, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info().
			Int("removed", removed).
			Dur("retention", s.cfg.RetentionWindow).
			Msg("Swept terminal job statuses")
	}
}

// insertByPriorityLocked places the job before the first lower-priority
// entry, keeping submission order among equal priorities.
func (s *Scheduler) insertByPriorityLocked(j *job) {
	idx := len(s.queue)
	for i, queued := range s.queue {
		if queued.priority < j.priority {
			idx = i
			break
		}
	}
	s.queue = append(s.queue, nil)
	copy(s.queue[idx+1:], s.queue[idx:])
	s.queue[idx] = j
}

// snapshotLocked captures the status clone and subscriber callbacks for a
// job so they can be invoked after the lock is released.
func (s *Scheduler) snapshotLocked(jobID string) (models.JobStatus, []StatusCallback) {
	st, ok := s.statuses[jobID]
	if !ok {
		return models.JobStatus{}, nil
	}
	subs := s.subscribers[jobID]
	callbacks := make([]StatusCallback, 0, len(subs))
	for _, sub := range subs {
		callbacks = append(callbacks, sub.callback)
	}
	return st.Clone(), callbacks
}

func (s *Scheduler) fanOut(snapshot models.JobStatus, callbacks []StatusCallback) {
	for _, cb := range callbacks {
		cb(snapshot)
	}
}

// signalWake nudges the dispatch loop without blocking.
func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
