package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abishchhetri-svg/Tasks/internal/config"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

type fakeModel struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeModel) Complete(_ context.Context, req model.Request) (*model.Response, error) {
	if len(req.Messages) > 0 {
		f.prompt = req.Messages[0].Content
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.Response{Message: model.Message{Role: "assistant", Content: f.reply}}, nil
}

func (f *fakeModel) CompleteStream(ctx context.Context, req model.Request, cb model.StreamHandler) error {
	resp, err := f.Complete(ctx, req)
	if err != nil {
		return err
	}
	return cb(model.StreamResult{Final: true, Response: resp})
}

func providerFor(m *fakeModel) model.Provider {
	return model.ProviderFunc(func(context.Context) (model.Model, error) { return m, nil })
}

const fencedReply = "```json\n" + `{
  "hours_active": 6.456,
  "hours_coding": 4,
  "hours_meetings": 1.5,
  "hours_research": 0,
  "commits_today": 3,
  "projects": ["api"],
  "tags": ["coding", "debugging"],
  "activity_summary": {"time_distribution": "Mostly coding in the editor", "focus_areas": ["auth", "tests"]},
  "completed_tasks": ["Shipped login fix"],
  "in_progress": ["Refactor session store"],
  "research_learning": [],
  "blockers": ["Waiting on staging access"],
  "ai_insights": ["Long focus blocks in the morning"],
  "tomorrow_plan": ["Finish refactor"]
}` + "\n```"

func TestParseResponse(t *testing.T) {
	got, err := ParseResponse(fencedReply)
	require.NoError(t, err)

	assert.Equal(t, 6.456, got.HoursActive)
	assert.Equal(t, 4.0, got.HoursCoding)
	assert.Equal(t, []worklog.Field{{Key: "hours_meetings", Value: "1.5"}}, got.Extra)
	assert.Equal(t, []string{"api"}, got.Projects)
	assert.Equal(t, []string{"Mostly coding in the editor", "Focus areas: auth, tests"}, got.WorkAnalysis)
	assert.Equal(t, []string{"Shipped login fix"}, got.Completed)
	assert.Empty(t, got.Learning)
	assert.Equal(t, []string{"Finish refactor"}, got.Plan)
}

func TestParseResponseWithoutFence(t *testing.T) {
	got, err := ParseResponse(`{"hours_active": 2, "blockers": ["none"]}`)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.HoursActive)
	assert.Equal(t, []string{"none"}, got.Blockers)
}

func TestParseResponseRejectsProse(t *testing.T) {
	_, err := ParseResponse("Sure! Here is your log.")
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(Input{
		Date: "2026-02-10",
		Summary: &worklog.ActivitySummary{
			ActiveHours: 5.5,
			TopApps:     []worklog.Usage{{Name: "Code", Seconds: 3600}},
			TopWebsites: []worklog.Usage{
				{Name: "a.com", Seconds: 60}, {Name: "b.com", Seconds: 60}, {Name: "c.com", Seconds: 60},
				{Name: "d.com", Seconds: 60}, {Name: "e.com", Seconds: 60}, {Name: "f.com", Seconds: 60},
			},
		},
		Commits: []worklog.Commit{{Project: "api", Message: "fix login"}},
	})

	assert.Contains(t, prompt, "2026-02-10")
	assert.Contains(t, prompt, "- Code: 60 minutes")
	assert.Contains(t, prompt, "- e.com: 1 minutes")
	assert.NotContains(t, prompt, "f.com")
	assert.Contains(t, prompt, "- [api] fix login")
	assert.Contains(t, prompt, "No manual tasks added")
	assert.Contains(t, prompt, "Total Git Commits: 1")
}

func TestBuildPromptWithoutData(t *testing.T) {
	prompt := BuildPrompt(Input{Date: "2026-02-10", ManualTasks: []string{"[09:15] Fixed login bug"}})
	assert.Contains(t, prompt, "No commits today")
	assert.Contains(t, prompt, "No application data")
	assert.Contains(t, prompt, "- [09:15] Fixed login bug")
}

func TestModelAnalyzer(t *testing.T) {
	fake := &fakeModel{reply: fencedReply}
	a := NewModelAnalyzer(providerFor(fake), 1024)

	got, err := a.Analyze(context.Background(), Input{Date: "2026-02-10"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Long focus blocks in the morning"}, got.Insights)
	assert.True(t, strings.Contains(fake.prompt, "2026-02-10"))
}

func TestModelAnalyzerErrors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := NewModelAnalyzer(providerFor(&fakeModel{err: boom}), 0).Analyze(context.Background(), Input{Date: "2026-02-10"})
	assert.ErrorIs(t, err, boom)

	_, err = NewModelAnalyzer(providerFor(&fakeModel{reply: "not json"}), 0).Analyze(context.Background(), Input{Date: "2026-02-10"})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewFromConfig(cfg)
	assert.Error(t, err, "missing key should fail")

	cfg.Provider.APIKey = "sk-test"
	a, err := NewFromConfig(cfg)
	require.NoError(t, err)
	_, ok := a.provider.(*model.AnthropicProvider)
	assert.True(t, ok)

	cfg.Provider.Type = "openai"
	a, err = NewFromConfig(cfg)
	require.NoError(t, err)
	_, ok = a.provider.(*model.OpenAIProvider)
	assert.True(t, ok)
}
