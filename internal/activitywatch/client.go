// Package activitywatch reads window, afk and browser events from a local
// ActivityWatch server.
package activitywatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

const (
	DefaultBaseURL = "http://localhost:5600/api/0"
	defaultLimit   = 1000
)

// ErrInvalidPath is returned for paths outside the read-only bucket and
// event endpoints.
var ErrInvalidPath = errors.New("activitywatch: path not allowed")

var allowedPath = regexp.MustCompile(`^/(info|buckets|buckets/[\w.%-]+|buckets/[\w.%-]+/events)/?$`)

// CheckPath validates a path relative to the API root, such as
// "/buckets/<id>/events".
func CheckPath(path string) error {
	for _, seg := range strings.Split(path, "/") {
		dec, err := url.PathUnescape(seg)
		if err != nil || dec == "." || dec == ".." || strings.ContainsAny(dec, "/\\") {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	if !allowedPath.MatchString(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}

type Bucket struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Client   string `json:"client"`
	Hostname string `json:"hostname"`
	Created  string `json:"created"`
}

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Duration  float64        `json:"duration"`
	Data      map[string]any `json:"data"`
}

func (e Event) str(key string) string {
	v, _ := e.Data[key].(string)
	return v
}

type Client struct {
	baseURL    string
	limit      int
	httpClient *http.Client
	log        *logrus.Entry
}

func NewClient(baseURL string, timeout time.Duration, limit int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
		log:        logging.For("activitywatch"),
	}
}

// Raw performs a GET against an allowed API path and returns the body
// untouched.
func (c *Client) Raw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	path = "/" + strings.TrimLeft(path, "/")
	if err := CheckPath(path); err != nil {
		return nil, err
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("activitywatch http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) Buckets(ctx context.Context) (map[string]Bucket, error) {
	body, err := c.Raw(ctx, "/buckets", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch buckets: %w", err)
	}
	var out map[string]Bucket
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode buckets: %w", err)
	}
	return out, nil
}

// Events returns up to the configured limit of events in [start, end).
func (c *Client) Events(ctx context.Context, bucketID string, start, end time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.limit))
	if !start.IsZero() {
		q.Set("start", start.Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end", end.Format(time.RFC3339))
	}
	body, err := c.Raw(ctx, "/buckets/"+url.PathEscape(bucketID)+"/events", q)
	if err != nil {
		return nil, fmt.Errorf("fetch events for %s: %w", bucketID, err)
	}
	var out []Event
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode events for %s: %w", bucketID, err)
	}
	return out, nil
}

// Summary collects and summarizes one day of activity. Missing buckets
// count as no activity.
func (c *Client) Summary(ctx context.Context, day worklog.Date) (*worklog.ActivitySummary, error) {
	buckets, err := c.Buckets(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sel := SelectBuckets(ids)

	start := day.Time()
	end := start.AddDate(0, 0, 1)

	var window, afk, web []Event
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(id string, dst *[]Event) {
		if id == "" {
			return
		}
		g.Go(func() error {
			events, err := c.Events(gctx, id, start, end)
			if err != nil {
				return err
			}
			*dst = events
			return nil
		})
	}
	fetch(sel.Window, &window)
	fetch(sel.AFK, &afk)
	fetch(sel.Web, &web)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := Summarize(window, afk, web)
	c.log.WithFields(logrus.Fields{
		"day":    day,
		"events": summary.TotalEvents,
		"active": summary.ActiveHours,
	}).Debug("activity summarized")
	return &summary, nil
}
