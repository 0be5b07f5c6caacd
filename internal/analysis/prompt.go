package analysis

import (
	"fmt"
	"strings"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

const promptTemplate = `You are a work activity analyzer. Analyze the following data and generate a structured daily work log.

## Date
%s

## Activity Summary
- Active Hours: %.2f
- AFK Hours: %.2f
- Total Git Commits: %d

## Top Applications Used
%s

## Top Websites Visited
%s

## Git Commits Today
%s

## Manual Tasks Added by User
%s

## Instructions
Analyze the above data and categorize the work. Return a JSON object with this structure:

{
  "hours_active": number,
  "hours_coding": number,
  "hours_meetings": number,
  "hours_research": number,
  "commits_today": number,
  "projects": ["projects worked on"],
  "tags": ["coding, debugging, research, meetings, ..."],
  "activity_summary": {"time_distribution": "how time was spent", "focus_areas": ["main focus areas"]},
  "completed_tasks": ["tasks that appear completed"],
  "in_progress": ["work in progress"],
  "research_learning": ["research or learning"],
  "blockers": ["potential blockers"],
  "ai_insights": ["observations about the day"],
  "tomorrow_plan": ["priorities for tomorrow"]
}

Return ONLY valid JSON, no markdown formatting or explanation.`

// Input is everything the model sees about one day.
type Input struct {
	Date        worklog.Date
	Summary     *worklog.ActivitySummary
	Commits     []worklog.Commit
	ManualTasks []string
}

func BuildPrompt(in Input) string {
	var summary worklog.ActivitySummary
	if in.Summary != nil {
		summary = *in.Summary
	}

	commits := make([]string, 0, len(in.Commits))
	for _, c := range in.Commits {
		commits = append(commits, "- "+c.Item())
	}
	tasks := make([]string, 0, len(in.ManualTasks))
	for _, t := range in.ManualTasks {
		tasks = append(tasks, "- "+t)
	}
	sites := summary.TopWebsites
	if len(sites) > 5 {
		sites = sites[:5]
	}

	return fmt.Sprintf(promptTemplate,
		in.Date,
		summary.ActiveHours,
		summary.AFKHours,
		len(in.Commits),
		orNone(usageLines(summary.TopApps), "No application data"),
		orNone(usageLines(sites), "No website data"),
		orNone(commits, "No commits today"),
		orNone(tasks, "No manual tasks added"),
	)
}

func usageLines(usage []worklog.Usage) []string {
	lines := make([]string, 0, len(usage))
	for _, u := range usage {
		lines = append(lines, fmt.Sprintf("- %s: %d minutes", u.Name, int(u.Seconds/60+0.5)))
	}
	return lines
}

func orNone(lines []string, none string) string {
	if len(lines) == 0 {
		return none
	}
	return strings.Join(lines, "\n")
}
