package collector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abishchhetri-svg/Tasks/internal/analysis"
	"github.com/abishchhetri-svg/Tasks/internal/config"
	"github.com/abishchhetri-svg/Tasks/internal/journal"
	"github.com/abishchhetri-svg/Tasks/internal/orchestrator"
	"github.com/abishchhetri-svg/Tasks/internal/store"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

var evening = time.Date(2026, 2, 10, 18, 0, 0, 0, time.Local)

type fakeActivity struct {
	summary *worklog.ActivitySummary
	err     error
}

func (f fakeActivity) Summary(context.Context, worklog.Date) (*worklog.ActivitySummary, error) {
	return f.summary, f.err
}

type fakeCommits map[string][]string

func (f fakeCommits) CommitsOn(_ context.Context, repo string, _ worklog.Date, _ string) ([]string, error) {
	lines, ok := f[repo]
	if !ok {
		return nil, errors.New("not a git repository")
	}
	return lines, nil
}

type fakeAnalyzer struct {
	in  analysis.Input
	out *worklog.Analysis
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in analysis.Input) (*worklog.Analysis, error) {
	f.in = in
	return f.out, nil
}

func setup(t *testing.T) (*orchestrator.Orchestrator, *journal.Journal) {
	t.Helper()
	dir := t.TempDir()
	j, err := journal.Open(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	orch, err := orchestrator.New(orchestrator.Options{
		Store: store.NewFileStore(filepath.Join(dir, "logs")),
		Clock: func() time.Time { return evening },
	})
	require.NoError(t, err)
	return orch, j
}

func TestRunMergesAllSources(t *testing.T) {
	orch, j := setup(t)
	ctx := context.Background()

	_, err := j.Record(ctx, journal.Entry{Day: "2026-02-10", Bucket: worklog.BucketLearning, Content: "Read Go memory model",
		CreatedAt: time.Date(2026, 2, 10, 11, 30, 0, 0, time.Local)})
	require.NoError(t, err)

	c := New(orch, Options{
		Activity: fakeActivity{summary: &worklog.ActivitySummary{ActiveHours: 6.5, TopApps: []worklog.Usage{{Name: "Code", Seconds: 7200}}}},
		Commits: fakeCommits{
			"/src/api": {"a1b2c3d fix login", "d4e5f6a add tests"},
			"/src/web": {"0f0f0f0 bump deps"},
		},
		Tasks:    j,
		Projects: []config.ProjectConfig{{Name: "api", Path: "/src/api"}, {Path: "/src/web"}, {Name: "gone", Path: "/src/gone"}},
	})

	res, err := c.Run(ctx, "2026-02-10")
	require.NoError(t, err)
	require.True(t, res.HasChanges)

	doc := res.Document
	assert.Equal(t, []string{"[api] fix login", "[api] add tests", "[web] bump deps"}, doc.BucketItems(worklog.BucketCompleted))
	assert.Equal(t, []string{"[11:30] Read Go memory model"}, doc.BucketItems(worklog.BucketLearning))
	assert.Equal(t, 3, doc.Meta.CommitsToday)
	assert.Equal(t, []string{"api", "web"}, doc.Meta.ProjectList())
	assert.Equal(t, 6.5, doc.Meta.HoursActive)
	assert.Contains(t, doc.Items(worklog.SectionSummary), "Top apps: Code (120m)")

	pending, err := j.Pending(ctx, "2026-02-10")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A second run finds nothing new.
	res, err = c.Run(ctx, "2026-02-10")
	require.NoError(t, err)
	assert.False(t, res.HasChanges)
}

func TestGatherToleratesFailingSources(t *testing.T) {
	orch, _ := setup(t)
	c := New(orch, Options{
		Activity: fakeActivity{err: errors.New("connection refused")},
		Commits:  fakeCommits{"/src/api": {"a1b2c3d fix login"}},
		Projects: []config.ProjectConfig{{Name: "api", Path: "/src/api"}, {Name: "gone", Path: "/src/gone"}},
	})

	g, err := c.Gather(context.Background(), "2026-02-10")
	require.NoError(t, err)
	assert.Nil(t, g.Summary)
	assert.Len(t, g.Commits, 1)
	assert.Len(t, g.Errors, 2)
}

func TestAnalyze(t *testing.T) {
	orch, j := setup(t)
	ctx := context.Background()
	_, err := j.Record(ctx, journal.Entry{Day: "2026-02-10", Bucket: worklog.BucketBlockers, Content: "VPN down",
		CreatedAt: time.Date(2026, 2, 10, 9, 5, 0, 0, time.Local)})
	require.NoError(t, err)

	analyzer := &fakeAnalyzer{out: &worklog.Analysis{
		HoursCoding: 4.25,
		Insights:    []string{"Deep work before lunch"},
		Plan:        []string{"Write release notes"},
	}}
	c := New(orch, Options{Tasks: j, Analyzer: analyzer})

	res, err := c.Analyze(ctx, "2026-02-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"[09:05] blocker: VPN down"}, analyzer.in.ManualTasks)
	assert.Equal(t, 4.25, res.Document.Meta.HoursCoding)
	assert.Equal(t, []string{"Write release notes"}, res.Document.Items(worklog.SectionPlan))
}

func TestAnalyzeRequiresAnalyzer(t *testing.T) {
	orch, _ := setup(t)
	_, err := New(orch, Options{}).Analyze(context.Background(), "2026-02-10")
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "fix: handle nil", subject("abc1234 fix: handle nil"))
	assert.Equal(t, "solo", subject("solo"))
	assert.Equal(t, "repo", projectName(config.ProjectConfig{Path: "/home/me/repo/"}))
}

// collectDuringHold runs a collection right after a quick add has journaled
// its task and before that task reaches the log.
type collectDuringHold struct {
	*journal.Journal
	during func()
}

func (j collectDuringHold) Hold(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	e, err := j.Journal.Hold(ctx, e)
	if err == nil {
		j.during()
	}
	return e, err
}

func TestRunDuringQuickAddMergesTaskOnce(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	files := store.NewFileStore(filepath.Join(dir, "logs"))
	clock := func() time.Time { return evening }

	colOrch, err := orchestrator.New(orchestrator.Options{Store: files, Clock: clock})
	require.NoError(t, err)
	col := New(colOrch, Options{Tasks: j})

	var collected bool
	apiOrch, err := orchestrator.New(orchestrator.Options{
		Store: files,
		Clock: clock,
		Journal: collectDuringHold{Journal: j, during: func() {
			_, err := col.Run(ctx, "2026-02-10")
			require.NoError(t, err)
			collected = true
		}},
	})
	require.NoError(t, err)

	_, err = apiOrch.QuickAdd(ctx, "completed", "Fixed login bug")
	require.NoError(t, err)
	require.True(t, collected)

	doc, found, err := apiOrch.Document(ctx, "2026-02-10")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"[18:00] Fixed login bug"}, doc.BucketItems(worklog.BucketCompleted))

	res, err := col.Run(ctx, "2026-02-10")
	require.NoError(t, err)
	assert.False(t, res.HasChanges, "the merged task must not come back")
}

type failingApplier struct{}

func (failingApplier) Apply(context.Context, worklog.Date, string, ...worklog.Update) (*orchestrator.Result, error) {
	return nil, errors.New("disk full")
}

func TestRunReleasesTasksOnFailure(t *testing.T) {
	_, j := setup(t)
	ctx := context.Background()
	e, err := j.Record(ctx, journal.Entry{Day: "2026-02-10", Bucket: worklog.BucketCompleted, Content: "Ship it"})
	require.NoError(t, err)

	_, err = New(failingApplier{}, Options{Tasks: j}).Run(ctx, "2026-02-10")
	require.ErrorContains(t, err, "disk full")

	claimed, err := j.Claim(ctx, "2026-02-10")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, e.ID, claimed[0].ID)
}
