// Package collector gathers a day's activity from ActivityWatch, tracked git
// repositories and the manual-task journal, and folds it into the log.
package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abishchhetri-svg/Tasks/internal/analysis"
	"github.com/abishchhetri-svg/Tasks/internal/config"
	"github.com/abishchhetri-svg/Tasks/internal/journal"
	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/orchestrator"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

type ActivitySource interface {
	Summary(ctx context.Context, day worklog.Date) (*worklog.ActivitySummary, error)
}

type CommitSource interface {
	CommitsOn(ctx context.Context, repoPath string, day worklog.Date, author string) ([]string, error)
}

// Tasks is the manual-task journal. Claim hands out each pending entry to
// exactly one caller.
type Tasks interface {
	Claim(ctx context.Context, day worklog.Date) ([]journal.Entry, error)
	List(ctx context.Context, day worklog.Date) ([]journal.Entry, error)
	MarkMerged(ctx context.Context, ids ...string) error
	Release(ctx context.Context, ids ...string) error
}

type Applier interface {
	Apply(ctx context.Context, date worklog.Date, source string, updates ...worklog.Update) (*orchestrator.Result, error)
}

// Options wires the sources. Any source may be nil and is then skipped.
type Options struct {
	Activity ActivitySource
	Commits  CommitSource
	Tasks    Tasks
	Analyzer analysis.Analyzer
	Projects []config.ProjectConfig
	Author   string
}

type Collector struct {
	orch Applier
	opts Options
	log  *logrus.Entry
}

func New(orch Applier, opts Options) *Collector {
	return &Collector{orch: orch, opts: opts, log: logging.For("collector")}
}

// Gathered is everything one collection run found.
type Gathered struct {
	Summary *worklog.ActivitySummary
	Commits []worklog.Commit
	// Pending holds the journal tasks Run claimed for this cycle.
	Pending []journal.Entry
	Errors  []error
}

// Snapshot turns the gathered data into a merge update.
func (g Gathered) Snapshot() worklog.Snapshot {
	snap := worklog.Snapshot{Commits: g.Commits, Summary: g.Summary}
	for _, e := range g.Pending {
		snap.Tasks = append(snap.Tasks, e.Task())
	}
	return snap
}

// Gather queries ActivityWatch and the tracked repositories concurrently. A
// failing source is logged and recorded in Errors; the rest of the data is
// still returned. The journal is left alone.
func (c *Collector) Gather(ctx context.Context, day worklog.Date) (*Gathered, error) {
	out := &Gathered{}
	var mu sync.Mutex
	fail := func(source string, err error) {
		c.log.WithError(err).WithField("source", source).Warn("collection source failed")
		mu.Lock()
		out.Errors = append(out.Errors, fmt.Errorf("%s: %w", source, err))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.opts.Activity != nil {
		g.Go(func() error {
			summary, err := c.opts.Activity.Summary(gctx, day)
			if err != nil {
				fail("activitywatch", err)
				return nil
			}
			mu.Lock()
			out.Summary = summary
			mu.Unlock()
			return nil
		})
	}

	commits := make([][]worklog.Commit, len(c.opts.Projects))
	if c.opts.Commits != nil {
		for i, p := range c.opts.Projects {
			g.Go(func() error {
				lines, err := c.opts.Commits.CommitsOn(gctx, p.Path, day, c.opts.Author)
				if err != nil {
					fail("git "+p.Name, err)
					return nil
				}
				for _, line := range lines {
					commits[i] = append(commits[i], worklog.Commit{Project: projectName(p), Message: subject(line)})
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, cs := range commits {
		out.Commits = append(out.Commits, cs...)
	}
	return out, nil
}

// Run collects day and merges the snapshot. Pending journal tasks are
// claimed just before the write and marked merged once it succeeds; on
// failure they go back to the queue.
func (c *Collector) Run(ctx context.Context, day worklog.Date) (*orchestrator.Result, error) {
	gathered, err := c.Gather(ctx, day)
	if err != nil {
		return nil, err
	}

	if c.opts.Tasks != nil {
		gathered.Pending, err = c.opts.Tasks.Claim(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("pending tasks: %w", err)
		}
	}
	ids := make([]string, 0, len(gathered.Pending))
	for _, e := range gathered.Pending {
		ids = append(ids, e.ID)
	}

	res, err := c.orch.Apply(ctx, day, orchestrator.SourceCollect, gathered.Snapshot())
	if err != nil {
		if len(ids) > 0 {
			if rerr := c.opts.Tasks.Release(context.Background(), ids...); rerr != nil {
				c.log.WithError(rerr).Warn("release tasks")
			}
		}
		return nil, err
	}

	if len(ids) > 0 {
		if err := c.opts.Tasks.MarkMerged(ctx, ids...); err != nil {
			c.log.WithError(err).Warn("mark tasks merged")
		}
	}

	c.log.WithFields(logrus.Fields{
		"day":     day,
		"commits": len(gathered.Commits),
		"tasks":   len(gathered.Pending),
		"changed": res.HasChanges,
	}).Info("collection finished")
	return res, nil
}

// Analyze asks the analyzer to categorize the day and merges its answer.
func (c *Collector) Analyze(ctx context.Context, day worklog.Date) (*orchestrator.Result, error) {
	if c.opts.Analyzer == nil {
		return nil, fmt.Errorf("analysis is not configured")
	}
	gathered, err := c.Gather(ctx, day)
	if err != nil {
		return nil, err
	}

	in := analysis.Input{Date: day, Summary: gathered.Summary, Commits: gathered.Commits}
	if c.opts.Tasks != nil {
		entries, err := c.opts.Tasks.List(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, e := range entries {
			in.ManualTasks = append(in.ManualTasks, fmt.Sprintf("[%s] %s: %s", e.CreatedAt.Format("15:04"), e.Bucket, e.Content))
		}
	}

	result, err := c.opts.Analyzer.Analyze(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return c.orch.Apply(ctx, day, orchestrator.SourceAnalyze, *result)
}

// subject drops the abbreviated hash from a --oneline log entry.
func subject(line string) string {
	if _, rest, ok := strings.Cut(strings.TrimSpace(line), " "); ok {
		return strings.TrimSpace(rest)
	}
	return line
}

func projectName(p config.ProjectConfig) string {
	if p.Name != "" {
		return p.Name
	}
	parts := strings.Split(strings.TrimRight(p.Path, "/"), "/")
	return parts[len(parts)-1]
}
