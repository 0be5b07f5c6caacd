package activitywatch

import (
	"net/url"
	"sort"
	"strings"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

const topN = 10

// Selection names the buckets a summary is built from.
type Selection struct {
	Window string
	AFK    string
	Web    string
}

// SelectBuckets picks the first window, afk and browser bucket by id.
func SelectBuckets(ids []string) Selection {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var sel Selection
	for _, id := range sorted {
		switch {
		case sel.Window == "" && strings.Contains(id, "window"):
			sel.Window = id
		case sel.AFK == "" && strings.Contains(id, "afk"):
			sel.AFK = id
		case sel.Web == "" && (strings.Contains(id, "web") || strings.Contains(id, "chrome") || strings.Contains(id, "firefox")):
			sel.Web = id
		}
	}
	return sel
}

// Summarize totals window time per app, afk time and browser time per host.
func Summarize(window, afk, web []Event) worklog.ActivitySummary {
	apps := make(map[string]float64)
	var active float64
	for _, e := range window {
		app := e.str("app")
		if app == "" {
			app = "Unknown"
		}
		apps[app] += e.Duration
		active += e.Duration
	}

	var away float64
	for _, e := range afk {
		if e.str("status") == "afk" {
			away += e.Duration
		}
	}

	sites := make(map[string]float64)
	for _, e := range web {
		u, err := url.Parse(e.str("url"))
		if err != nil || u.Hostname() == "" {
			continue
		}
		sites[u.Hostname()] += e.Duration
	}

	return worklog.ActivitySummary{
		ActiveHours: worklog.Round2(active / 3600),
		AFKHours:    worklog.Round2(away / 3600),
		TopApps:     top(apps),
		TopWebsites: top(sites),
		TotalEvents: len(window) + len(afk) + len(web),
	}
}

func top(totals map[string]float64) []worklog.Usage {
	out := make([]worklog.Usage, 0, len(totals))
	for name, secs := range totals {
		out = append(out, worklog.Usage{Name: name, Seconds: secs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seconds != out[j].Seconds {
			return out[i].Seconds > out[j].Seconds
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
