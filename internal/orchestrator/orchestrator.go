// Package orchestrator runs the load, merge, generate, write and publish
// cycle for daily logs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abishchhetri-svg/Tasks/internal/journal"
	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/notify"
	"github.com/abishchhetri-svg/Tasks/internal/publish"
	"github.com/abishchhetri-svg/Tasks/internal/store"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

var (
	ErrUnknownBucket = errors.New("unknown task type")
	ErrEmptyUpdate   = errors.New("nothing to add")
)

// Update sources, used in commit messages, metrics and notifications.
const (
	SourceQuickAdd = "quick-add"
	SourceIntake   = "intake"
	SourceCollect  = "collect"
	SourceAnalyze  = "analyze"
)

const DefaultAttempts = 3

type Store interface {
	Read(ctx context.Context, date worklog.Date) (store.Revision, error)
	Write(ctx context.Context, date worklog.Date, text, expectHash string) (string, error)
}

type Cache interface {
	Get(date worklog.Date) (*worklog.Document, bool)
	Put(date worklog.Date, doc *worklog.Document)
	Invalidate(date worklog.Date)
}

// Journal keeps manual tasks until they are in the log. Held entries are
// invisible to the collector's claim until marked merged or released.
type Journal interface {
	Hold(ctx context.Context, e journal.Entry) (journal.Entry, error)
	MarkMerged(ctx context.Context, ids ...string) error
	Release(ctx context.Context, ids ...string) error
}

// Options wires the collaborators. Store is required; a nil Publisher keeps
// logs local and a nil Journal skips task recording.
type Options struct {
	Store     Store
	Cache     Cache
	Publisher publish.Publisher
	Journal   Journal
	Notifier  notify.Notifier
	Clock     func() time.Time
	Attempts  int
}

// Result reports one update cycle.
type Result struct {
	Date       worklog.Date
	Document   *worklog.Document
	Path       string
	HasChanges bool
	Published  bool
	PublishErr error
}

type Orchestrator struct {
	store     Store
	cache     Cache
	publisher publish.Publisher
	journal   Journal
	notifier  notify.Notifier
	clock     func() time.Time
	attempts  int

	mu  sync.Mutex
	log *logrus.Entry
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("orchestrator: store is required")
	}
	o := &Orchestrator{
		store:     opts.Store,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		journal:   opts.Journal,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		attempts:  opts.Attempts,
		log:       logging.For("orchestrator"),
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.attempts <= 0 {
		o.attempts = DefaultAttempts
	}
	return o, nil
}

func (o *Orchestrator) Now() time.Time { return o.clock() }

func (o *Orchestrator) Today() worklog.Date { return worklog.DateOf(o.clock()) }

// Document returns the log for date. A missing file reports found=false,
// which is different from an existing but empty log.
func (o *Orchestrator) Document(ctx context.Context, date worklog.Date) (*worklog.Document, bool, error) {
	if o.cache != nil {
		if doc, ok := o.cache.Get(date); ok {
			cacheLookups.WithLabelValues("hit").Inc()
			return doc, true, nil
		}
		cacheLookups.WithLabelValues("miss").Inc()
	}

	rev, err := o.store.Read(ctx, date)
	if err != nil {
		return nil, false, err
	}
	if !rev.Found {
		return nil, false, nil
	}
	doc := worklog.Parse(date, rev.Text)
	if o.cache != nil {
		o.cache.Put(date, doc)
	}
	return doc, true, nil
}

// Apply merges updates into the log for date. Nothing is written or
// published when the merge changes nothing.
func (o *Orchestrator) Apply(ctx context.Context, date worklog.Date, source string, updates ...worklog.Update) (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	defer func() { cycleDuration.WithLabelValues(source).Observe(time.Since(start).Seconds()) }()

	res, err := o.writeCycle(ctx, date, updates)
	if err != nil {
		cycles.WithLabelValues(source, "error").Inc()
		o.log.WithError(err).WithFields(logrus.Fields{"date": date, "source": source}).Error("update failed")
		o.notify(ctx, notify.Event{Kind: notify.KindSyncFailed, Date: date, Source: source, Message: err.Error()})
		return nil, err
	}
	if !res.HasChanges {
		cycles.WithLabelValues(source, "unchanged").Inc()
		o.log.WithFields(logrus.Fields{"date": date, "source": source}).Debug("no changes")
		return res, nil
	}
	cycles.WithLabelValues(source, "written").Inc()
	o.log.WithFields(logrus.Fields{"date": date, "source": source, "path": res.Path}).Info("log written")

	o.publish(ctx, res, source)
	return res, nil
}

func (o *Orchestrator) writeCycle(ctx context.Context, date worklog.Date, updates []worklog.Update) (*Result, error) {
	for attempt := 1; ; attempt++ {
		rev, err := o.store.Read(ctx, date)
		if err != nil {
			return nil, err
		}

		var existing *worklog.Document
		if rev.Found {
			existing = worklog.Parse(date, rev.Text)
		} else {
			existing = worklog.Empty(date)
		}

		now := o.clock()
		merged, changed := worklog.Merge(existing, now, updates...)
		res := &Result{Date: date, Document: merged, HasChanges: changed}
		if !changed {
			res.Document = existing
			if o.cache != nil && rev.Found {
				o.cache.Put(date, existing)
			}
			return res, nil
		}

		merged = worklog.Stamp(merged, now)
		res.Document = merged
		path, err := o.store.Write(ctx, date, worklog.Render(merged), rev.Hash)
		if errors.Is(err, store.ErrConflict) && attempt < o.attempts {
			conflicts.Inc()
			o.log.WithFields(logrus.Fields{"date": date, "attempt": attempt}).Warn("log changed on disk, merging again")
			if o.cache != nil {
				o.cache.Invalidate(date)
			}
			continue
		}
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				conflicts.Inc()
			}
			return nil, fmt.Errorf("write %s: %w", date, err)
		}

		res.Path = path
		if o.cache != nil {
			o.cache.Put(date, merged)
		}
		return res, nil
	}
}

func (o *Orchestrator) publish(ctx context.Context, res *Result, source string) {
	if o.publisher == nil {
		o.notify(ctx, notify.Event{Kind: notify.KindSynced, Date: res.Date, Source: source, Path: res.Path})
		return
	}

	err := o.publisher.Publish(ctx, publish.Request{Paths: []string{res.Path}, Message: CommitMessage(source, res.Date)})
	if err != nil {
		res.PublishErr = err
		publishes.WithLabelValues("error").Inc()
		o.log.WithError(err).WithField("date", res.Date).Error("publish failed")
		o.notify(ctx, notify.Event{Kind: notify.KindPublishFailed, Date: res.Date, Source: source, Path: res.Path, Message: err.Error()})
		return
	}
	res.Published = true
	publishes.WithLabelValues("ok").Inc()
	o.notify(ctx, notify.Event{Kind: notify.KindSynced, Date: res.Date, Source: source, Path: res.Path})
}

func (o *Orchestrator) notify(ctx context.Context, e notify.Event) {
	if o.notifier == nil {
		return
	}
	e.Time = o.clock()
	if err := o.notifier.Notify(ctx, e); err != nil {
		o.log.WithError(err).Debug("notify failed")
	}
}

// CommitMessage is the git message for a cycle triggered by source.
func CommitMessage(source string, date worklog.Date) string {
	switch source {
	case SourceQuickAdd, SourceIntake:
		return "chore: manual task update"
	case SourceAnalyze:
		return "chore: activity analysis " + date.String()
	default:
		return "chore: activity data update " + date.String()
	}
}

// QuickAdd records one manual task and merges it into today's log.
func (o *Orchestrator) QuickAdd(ctx context.Context, bucketTag, description string) (*Result, error) {
	bucket, ok := worklog.ParseBucket(bucketTag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, bucketTag)
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyUpdate
	}
	now := o.clock()
	return o.applyTasks(ctx, SourceQuickAdd, []worklog.QuickAdd{{Bucket: bucket, Description: description, At: now}})
}

// Intake merges a batch of manual tasks in a single cycle.
func (o *Orchestrator) Intake(ctx context.Context, in worklog.Intake) (*Result, error) {
	adds := in.QuickAdds(o.clock())
	if len(adds) == 0 {
		return nil, ErrEmptyUpdate
	}
	return o.applyTasks(ctx, SourceIntake, adds)
}

// applyTasks journals the tasks as held by this cycle, so a collector
// running at the same time cannot merge them a second time. A failed write
// releases them for the next collector run.
func (o *Orchestrator) applyTasks(ctx context.Context, source string, adds []worklog.QuickAdd) (*Result, error) {
	date := worklog.DateOf(adds[0].At)
	var ids []string
	if o.journal != nil {
		for _, a := range adds {
			e, err := o.journal.Hold(ctx, journal.Entry{Day: date, Bucket: a.Bucket, Content: a.Description, CreatedAt: a.At})
			if err != nil {
				o.release(ids)
				return nil, fmt.Errorf("record task: %w", err)
			}
			ids = append(ids, e.ID)
		}
	}

	updates := make([]worklog.Update, 0, len(adds))
	for _, a := range adds {
		updates = append(updates, a)
	}
	res, err := o.Apply(ctx, date, source, updates...)
	if err != nil {
		o.release(ids)
		return nil, err
	}
	if o.journal != nil {
		if err := o.journal.MarkMerged(ctx, ids...); err != nil {
			o.log.WithError(err).Warn("mark tasks merged")
		}
	}
	return res, nil
}

func (o *Orchestrator) release(ids []string) {
	if o.journal == nil || len(ids) == 0 {
		return
	}
	if err := o.journal.Release(context.Background(), ids...); err != nil {
		o.log.WithError(err).Warn("release tasks")
	}
}
