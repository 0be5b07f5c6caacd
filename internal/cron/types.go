package cron

import (
	"time"

	"github.com/google/uuid"
)

// Built-in tasks the gateway knows how to run.
const (
	TaskCollect = "collect"
	TaskAnalyze = "analyze"
	TaskPrune   = "prune"
)

const (
	KindCron  = "cron"
	KindEvery = "every"
)

// Schedule is either a six-field cron expression (seconds first) or a fixed
// interval.
type Schedule struct {
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
}

type Payload struct {
	Task string `json:"task"`
	// Offset selects the day relative to the run time; -1 is yesterday.
	Offset int `json:"offset,omitempty"`
}

type State struct {
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
	LastResult  string `json:"lastResult,omitempty"`
}

type CronJob struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Enabled   bool     `json:"enabled"`
	Schedule  Schedule `json:"schedule"`
	Payload   Payload  `json:"payload"`
	State     State    `json:"state"`
	CreatedAt int64    `json:"createdAtMs"`
}

func NewCronJob(name string, schedule Schedule, payload Payload) CronJob {
	return CronJob{
		ID:        uuid.NewString()[:8],
		Name:      name,
		Enabled:   true,
		Schedule:  schedule,
		Payload:   payload,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// LastRun is the time of the last execution, zero if it never ran.
func (j CronJob) LastRun() time.Time {
	if j.State.LastRunAtMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(j.State.LastRunAtMs)
}
