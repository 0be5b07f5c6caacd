package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

var collectEvery = Schedule{Kind: KindEvery, EveryMs: 60000}

func TestNewCronJob(t *testing.T) {
	job := NewCronJob("collect", Schedule{Kind: KindCron, Expr: "0 */30 * * * *"}, Payload{Task: TaskCollect})
	if job.ID == "" {
		t.Error("job ID should not be empty")
	}
	if !job.Enabled {
		t.Error("job should be enabled by default")
	}
	if job.Payload.Task != TaskCollect {
		t.Errorf("task = %q, want collect", job.Payload.Task)
	}
	if !job.LastRun().IsZero() {
		t.Error("new job should never have run")
	}
}

func TestService_AddAndListJobs(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")
	s := NewService(storePath)

	job, err := s.AddJob("collect", collectEvery, Payload{Task: TaskCollect})
	if err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if job.Name != "collect" {
		t.Errorf("name = %q, want collect", job.Name)
	}
	if jobs := s.ListJobs(); len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}

	data, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var stored []CronJob
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(stored) != 1 || stored[0].Payload.Task != TaskCollect {
		t.Errorf("stored = %+v", stored)
	}
}

func TestService_AddJobRejectsBadSchedule(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	for _, sched := range []Schedule{
		{Kind: KindCron, Expr: "invalid"},
		{Kind: KindEvery},
		{Kind: "at"},
	} {
		if _, err := s.AddJob("bad", sched, Payload{Task: TaskCollect}); err == nil {
			t.Errorf("expected error for %+v", sched)
		}
	}
}

func TestService_EnsureJobKeepsIdentity(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")
	s := NewService(storePath)

	first, err := s.EnsureJob("collect", collectEvery, Payload{Task: TaskCollect})
	if err != nil {
		t.Fatalf("EnsureJob error: %v", err)
	}
	again, err := s.EnsureJob("collect", Schedule{Kind: KindCron, Expr: "0 0 * * * *"}, Payload{Task: TaskCollect})
	if err != nil {
		t.Fatalf("EnsureJob error: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("id changed from %s to %s", first.ID, again.ID)
	}
	if again.Schedule.Kind != KindCron {
		t.Errorf("schedule not updated: %+v", again.Schedule)
	}

	// A fresh service sees the persisted job instead of adding a duplicate.
	s2 := NewService(storePath)
	if _, err := s2.EnsureJob("collect", again.Schedule, again.Payload); err != nil {
		t.Fatalf("EnsureJob error: %v", err)
	}
	if jobs := s2.ListJobs(); len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}
}

func TestService_RemoveJob(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	job, _ := s.AddJob("prune", collectEvery, Payload{Task: TaskPrune})

	if !s.RemoveJob(job.ID) {
		t.Error("RemoveJob returned false")
	}
	if len(s.ListJobs()) != 0 {
		t.Error("job not removed")
	}
	if s.RemoveJob("nonexistent") {
		t.Error("RemoveJob should return false for nonexistent")
	}
}

func TestService_EnableJobByName(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	s.AddJob("analyze", collectEvery, Payload{Task: TaskAnalyze})

	updated, err := s.EnableJob("analyze", false)
	if err != nil {
		t.Fatalf("EnableJob error: %v", err)
	}
	if updated.Enabled {
		t.Error("job should be disabled")
	}
	if _, err := s.EnableJob("nonexistent", true); err == nil {
		t.Error("expected error for nonexistent job")
	}
}

func TestService_ExecuteJobRecordsState(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	var got CronJob
	s.OnJob = func(_ context.Context, job CronJob) (string, error) {
		got = job
		return "2026-02-10: 3 commits", nil
	}
	job, _ := s.AddJob("collect", collectEvery, Payload{Task: TaskCollect, Offset: -1})
	s.executeJob(*job)

	if got.Payload.Offset != -1 {
		t.Errorf("payload = %+v", got.Payload)
	}
	jobs := s.ListJobs()
	if jobs[0].State.LastStatus != "ok" || jobs[0].State.LastResult != "2026-02-10: 3 commits" {
		t.Errorf("state = %+v", jobs[0].State)
	}
	if jobs[0].LastRun().IsZero() {
		t.Error("last run not recorded")
	}
}

func TestService_ExecuteJobHandlerError(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	s.OnJob = func(context.Context, CronJob) (string, error) {
		return "", fmt.Errorf("activitywatch unreachable")
	}
	job, _ := s.AddJob("collect", collectEvery, Payload{Task: TaskCollect})
	s.executeJob(*job)

	st := s.ListJobs()[0].State
	if st.LastStatus != "error" || st.LastError != "activitywatch unreachable" {
		t.Errorf("state = %+v", st)
	}
}

func TestService_ExecuteJobNoHandler(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	job, _ := s.AddJob("collect", collectEvery, Payload{Task: TaskCollect})
	s.executeJob(*job)
	if s.ListJobs()[0].State.LastStatus != "" {
		t.Error("job without handler should not record a status")
	}
}

func TestService_RunNow(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	var runs atomic.Int32
	s.OnJob = func(context.Context, CronJob) (string, error) {
		runs.Add(1)
		return "ok", nil
	}
	s.AddJob("prune", collectEvery, Payload{Task: TaskPrune})

	if err := s.RunNow("prune"); err != nil {
		t.Fatalf("RunNow error: %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if err := s.RunNow("missing"); err == nil {
		t.Error("expected error for missing job")
	}
}

func TestService_TickLoopRunsIntervalJobs(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	var runs atomic.Int32
	s.OnJob = func(ctx context.Context, job CronJob) (string, error) {
		if ctx == nil {
			t.Error("handler got nil context")
		}
		runs.Add(1)
		return "tick", nil
	}
	job := NewCronJob("fast", Schedule{Kind: KindEvery, EveryMs: 100}, Payload{Task: TaskCollect})
	job.State.LastRunAtMs = time.Now().UnixMilli() - 200
	s.jobs = append(s.jobs, job)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("expected at least one tick execution before Stop")
	}

	s.Stop()
	after := runs.Load()
	time.Sleep(1300 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("interval loop should stop after Stop; count changed from %d to %d", after, runs.Load())
	}
}

func TestService_CronExpressionFires(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	var runs atomic.Int32
	s.OnJob = func(context.Context, CronJob) (string, error) {
		runs.Add(1)
		return "cron", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	if _, err := s.AddJob("every-second", Schedule{Kind: KindCron, Expr: "* * * * * *"}, Payload{Task: TaskCollect}); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
	if runs.Load() == 0 {
		t.Error("cron job never fired")
	}
}

func TestService_StopsWithParentContext(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		stopped := s.cancel == nil
		s.mu.Unlock()
		if stopped {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected parent context cancellation to trigger Stop")
}

func TestService_InvalidPersistedExprIsSkipped(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")
	jobs := []CronJob{{
		ID:       "bad-cron",
		Name:     "collect",
		Enabled:  true,
		Schedule: Schedule{Kind: KindCron, Expr: "invalid"},
		Payload:  Payload{Task: TaskCollect},
	}}
	data, _ := json.MarshalIndent(jobs, "", "  ")
	os.WriteFile(storePath, data, 0644)

	s := NewService(storePath)
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Start should not error on invalid cron: %v", err)
	}
	defer s.Stop()
	if len(s.ListJobs()) != 1 {
		t.Error("persisted job should still be listed")
	}
	if len(s.entries) != 0 {
		t.Error("invalid expression should not be registered")
	}
}

func TestService_DueIntervalsClaimsOnce(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))
	if _, err := s.AddJob("prune", Schedule{Kind: KindEvery, EveryMs: 60000}, Payload{Task: TaskPrune}); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if _, err := s.AddJob("collect", Schedule{Kind: KindCron, Expr: "0 */30 * * * *"}, Payload{Task: TaskCollect}); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}

	now := time.Now()
	if due := s.dueIntervals(now); len(due) != 1 || due[0].Name != "prune" {
		t.Fatalf("due = %+v, want only the interval job", due)
	}
	if due := s.dueIntervals(now.Add(30 * time.Second)); len(due) != 0 {
		t.Errorf("job claimed again before its period: %+v", due)
	}
	if due := s.dueIntervals(now.Add(time.Minute)); len(due) != 1 {
		t.Errorf("job should be due after a full period, got %d", len(due))
	}
}
