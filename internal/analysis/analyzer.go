// Package analysis asks a language model to categorize a day of activity.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/sirupsen/logrus"

	"github.com/abishchhetri-svg/Tasks/internal/config"
	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

type Analyzer interface {
	Analyze(ctx context.Context, in Input) (*worklog.Analysis, error)
}

// ModelAnalyzer runs the prompt through an agentsdk model provider.
type ModelAnalyzer struct {
	provider  model.Provider
	maxTokens int
	log       *logrus.Entry
}

func NewModelAnalyzer(provider model.Provider, maxTokens int) *ModelAnalyzer {
	return &ModelAnalyzer{provider: provider, maxTokens: maxTokens, log: logging.For("analysis")}
}

// NewFromConfig picks the Anthropic or OpenAI provider like the rest of the
// configuration does.
func NewFromConfig(cfg *config.Config) (*ModelAnalyzer, error) {
	p := cfg.AnalysisProvider()
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, fmt.Errorf("missing analysis api key")
	}

	var provider model.Provider
	switch p.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    p.APIKey,
			BaseURL:   p.BaseURL,
			ModelName: cfg.Analysis.Model,
			MaxTokens: cfg.Analysis.MaxTokens,
		}
	default: // "anthropic" or empty
		provider = &model.AnthropicProvider{
			APIKey:    p.APIKey,
			BaseURL:   p.BaseURL,
			ModelName: cfg.Analysis.Model,
			MaxTokens: cfg.Analysis.MaxTokens,
		}
	}
	return NewModelAnalyzer(provider, cfg.Analysis.MaxTokens), nil
}

func (a *ModelAnalyzer) Analyze(ctx context.Context, in Input) (*worklog.Analysis, error) {
	mdl, err := a.provider.Model(ctx)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	resp, err := mdl.Complete(ctx, model.Request{
		Messages:  []model.Message{{Role: "user", Content: BuildPrompt(in)}},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", in.Date, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("analyze %s: empty response", in.Date)
	}

	out, err := ParseResponse(resp.Message.Content)
	if err != nil {
		a.log.WithError(err).WithField("date", in.Date).Warn("unparseable model reply")
		return nil, err
	}
	return out, nil
}

// response mirrors the JSON the prompt asks for. Unknown keys are ignored.
type response struct {
	HoursActive     float64  `json:"hours_active"`
	HoursCoding     float64  `json:"hours_coding"`
	HoursMeetings   float64  `json:"hours_meetings"`
	HoursResearch   float64  `json:"hours_research"`
	Projects        []string `json:"projects"`
	Tags            []string `json:"tags"`
	ActivitySummary struct {
		TimeDistribution string   `json:"time_distribution"`
		FocusAreas       []string `json:"focus_areas"`
	} `json:"activity_summary"`
	CompletedTasks   []string `json:"completed_tasks"`
	InProgress       []string `json:"in_progress"`
	ResearchLearning []string `json:"research_learning"`
	Blockers         []string `json:"blockers"`
	AIInsights       []string `json:"ai_insights"`
	TomorrowPlan     []string `json:"tomorrow_plan"`
}

// ParseResponse decodes a model reply, tolerating a surrounding code fence.
func ParseResponse(raw string) (*worklog.Analysis, error) {
	var r response
	if err := json.Unmarshal([]byte(stripFences(raw)), &r); err != nil {
		return nil, fmt.Errorf("parse analysis result: %w", err)
	}

	out := &worklog.Analysis{
		HoursActive: r.HoursActive,
		HoursCoding: r.HoursCoding,
		Projects:    r.Projects,
		Tags:        r.Tags,
		Completed:   r.CompletedTasks,
		InProgress:  r.InProgress,
		Learning:    r.ResearchLearning,
		Blockers:    r.Blockers,
		Insights:    r.AIInsights,
		Plan:        r.TomorrowPlan,
	}
	if r.HoursMeetings > 0 {
		out.Extra = append(out.Extra, worklog.Field{Key: "hours_meetings", Value: formatHours(r.HoursMeetings)})
	}
	if r.HoursResearch > 0 {
		out.Extra = append(out.Extra, worklog.Field{Key: "hours_research", Value: formatHours(r.HoursResearch)})
	}
	if d := strings.TrimSpace(r.ActivitySummary.TimeDistribution); d != "" {
		out.WorkAnalysis = append(out.WorkAnalysis, d)
	}
	if len(r.ActivitySummary.FocusAreas) > 0 {
		out.WorkAnalysis = append(out.WorkAnalysis, "Focus areas: "+strings.Join(r.ActivitySummary.FocusAreas, ", "))
	}
	return out, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func formatHours(v float64) string {
	return fmt.Sprintf("%g", worklog.Round2(v))
}
