// Package cron runs the periodic collection, analysis and journal pruning
// jobs. Jobs are persisted as JSON so their last status survives restarts.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/abishchhetri-svg/Tasks/internal/logging"
)

// Handler runs one job and returns a short result line.
type Handler func(ctx context.Context, job CronJob) (string, error)

type Service struct {
	storePath string
	mu        sync.Mutex
	jobs      []CronJob
	OnJob     Handler
	cron      *rcron.Cron
	entries   map[string]rcron.EntryID // job ID -> cron entry ID
	runCtx    context.Context
	cancel    context.CancelFunc
	stopCh    chan struct{}
	log       *logrus.Entry
}

func NewService(storePath string) *Service {
	return &Service{
		storePath: storePath,
		entries:   make(map[string]rcron.EntryID),
		runCtx:    context.Background(),
		log:       logging.For("cron"),
	}
}

// Load reads persisted jobs without starting the scheduler.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	stopCh := make(chan struct{})

	s.mu.Lock()
	s.runCtx = runCtx
	s.cancel = cancel
	s.stopCh = stopCh
	if s.jobs == nil {
		if err := s.load(); err != nil {
			s.log.WithError(err).Warn("failed to load jobs")
		}
	}
	s.cron = rcron.New(rcron.WithSeconds())
	for i := range s.jobs {
		if s.jobs[i].Enabled && s.jobs[i].Schedule.Kind == KindCron {
			s.registerJob(&s.jobs[i])
		}
	}
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Infof("started with %d jobs", count)

	go s.runIntervals(runCtx)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
		}
	}()
	return nil
}

func (s *Service) registerJob(job *CronJob) {
	jobID := job.ID
	id, err := s.cron.AddFunc(job.Schedule.Expr, func() {
		if j, ok := s.Job(jobID); ok {
			s.executeJob(j)
		}
	})
	if err != nil {
		s.log.WithError(err).WithField("job", job.Name).Errorf("invalid schedule %q", job.Schedule.Expr)
		return
	}
	s.entries[job.ID] = id
}

func (s *Service) unregisterJob(id string) {
	if entryID, ok := s.entries[id]; ok && s.cron != nil {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

func (s *Service) executeJob(job CronJob) {
	log := s.log.WithFields(logrus.Fields{"job": job.Name, "task": job.Payload.Task})
	if s.OnJob == nil {
		log.Warn("no job handler set")
		return
	}

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	log.Debug("executing job")
	result, err := s.OnJob(ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID != job.ID {
			continue
		}
		st := &s.jobs[i].State
		st.LastRunAtMs = time.Now().UnixMilli()
		if err != nil {
			st.LastStatus = "error"
			st.LastError = err.Error()
			st.LastResult = ""
			log.WithError(err).Error("job failed")
		} else {
			st.LastStatus = "ok"
			st.LastError = ""
			st.LastResult = truncate(result, 200)
			log.Infof("job finished: %s", truncate(result, 100))
		}
		break
	}
	if err := s.save(); err != nil {
		log.WithError(err).Warn("save jobs")
	}
}

// runIntervals fires "every" jobs once per second tick until ctx ends.
func (s *Service) runIntervals(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, job := range s.dueIntervals(now) {
				s.executeJob(job)
			}
		}
	}
}

// dueIntervals claims every interval job whose period has elapsed at now, so
// a slow run is not picked up again by the next tick.
func (s *Service) dueIntervals(now time.Time) []CronJob {
	ms := now.UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []CronJob
	for i := range s.jobs {
		job := &s.jobs[i]
		if !job.Enabled || job.Schedule.Kind != KindEvery || job.Schedule.EveryMs <= 0 {
			continue
		}
		if ms >= job.State.LastRunAtMs+job.Schedule.EveryMs {
			job.State.LastRunAtMs = ms
			due = append(due, *job)
		}
	}
	return due
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	stopCh := s.stopCh
	s.cancel = nil
	s.stopCh = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if stopCh != nil {
		close(stopCh)
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			s.log.Warn("stop timeout waiting for running jobs")
		}
	}
	s.log.Info("stopped")
}

func (s *Service) AddJob(name string, schedule Schedule, payload Payload) (*CronJob, error) {
	if err := validate(schedule); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("load jobs: %w", err)
		}
	}

	job := NewCronJob(name, schedule, payload)
	s.jobs = append(s.jobs, job)
	if job.Schedule.Kind == KindCron && s.cron != nil {
		s.registerJob(&s.jobs[len(s.jobs)-1])
	}
	if err := s.save(); err != nil {
		return nil, fmt.Errorf("save jobs: %w", err)
	}
	return &job, nil
}

// EnsureJob adds the named job or updates its schedule and payload, keeping
// its ID and last run state.
func (s *Service) EnsureJob(name string, schedule Schedule, payload Payload) (*CronJob, error) {
	if err := validate(schedule); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.jobs == nil {
		if err := s.load(); err != nil {
			s.log.WithError(err).Warn("failed to load jobs")
		}
	}
	for i := range s.jobs {
		if s.jobs[i].Name != name {
			continue
		}
		job := &s.jobs[i]
		if job.Schedule != schedule || job.Payload != payload {
			job.Schedule = schedule
			job.Payload = payload
			s.unregisterJob(job.ID)
			if job.Enabled && job.Schedule.Kind == KindCron && s.cron != nil {
				s.registerJob(job)
			}
			if err := s.save(); err != nil {
				s.mu.Unlock()
				return nil, fmt.Errorf("save jobs: %w", err)
			}
		}
		out := *job
		s.mu.Unlock()
		return &out, nil
	}
	s.mu.Unlock()
	return s.AddJob(name, schedule, payload)
}

func (s *Service) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.jobs {
		if job.ID == id {
			s.unregisterJob(id)
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			_ = s.save()
			return true
		}
	}
	return false
}

func (s *Service) ListJobs() []CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]CronJob, len(s.jobs))
	copy(result, s.jobs)
	return result
}

// Job finds a job by ID or name.
func (s *Service) Job(ref string) (CronJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == ref || j.Name == ref {
			return j, true
		}
	}
	return CronJob{}, false
}

// RunNow executes a job immediately, outside its schedule.
func (s *Service) RunNow(ref string) error {
	job, ok := s.Job(ref)
	if !ok {
		return fmt.Errorf("job %s not found", ref)
	}
	s.executeJob(job)
	return nil
}

func (s *Service) EnableJob(id string, enabled bool) (*CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != id && s.jobs[i].Name != id {
			continue
		}
		s.jobs[i].Enabled = enabled
		if s.jobs[i].Schedule.Kind == KindCron && s.cron != nil {
			if enabled {
				if _, ok := s.entries[s.jobs[i].ID]; !ok {
					s.registerJob(&s.jobs[i])
				}
			} else {
				s.unregisterJob(s.jobs[i].ID)
			}
		}
		_ = s.save()
		job := s.jobs[i]
		return &job, nil
	}
	return nil, fmt.Errorf("job %s not found", id)
}

func validate(schedule Schedule) error {
	switch schedule.Kind {
	case KindCron:
		parser := rcron.NewParser(rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor)
		if _, err := parser.Parse(schedule.Expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", schedule.Expr, err)
		}
	case KindEvery:
		if schedule.EveryMs <= 0 {
			return fmt.Errorf("interval must be positive")
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", schedule.Kind)
	}
	return nil
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.jobs = []CronJob{}
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.jobs)
}

func (s *Service) save() error {
	dir := filepath.Dir(s.storePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.storePath, data, 0644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
