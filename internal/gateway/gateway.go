// Package gateway wires the log pipeline together and runs it as a service.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/sirupsen/logrus"

	"github.com/abishchhetri-svg/Tasks/internal/activitywatch"
	"github.com/abishchhetri-svg/Tasks/internal/analysis"
	"github.com/abishchhetri-svg/Tasks/internal/api"
	"github.com/abishchhetri-svg/Tasks/internal/cache"
	"github.com/abishchhetri-svg/Tasks/internal/collector"
	"github.com/abishchhetri-svg/Tasks/internal/config"
	"github.com/abishchhetri-svg/Tasks/internal/cron"
	"github.com/abishchhetri-svg/Tasks/internal/journal"
	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/notify"
	"github.com/abishchhetri-svg/Tasks/internal/orchestrator"
	"github.com/abishchhetri-svg/Tasks/internal/publish"
	"github.com/abishchhetri-svg/Tasks/internal/store"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

// AnalyzerFactory builds the analyzer when analysis is enabled.
type AnalyzerFactory func(cfg *config.Config) (analysis.Analyzer, error)

func DefaultAnalyzerFactory(cfg *config.Config) (analysis.Analyzer, error) {
	return analysis.NewFromConfig(cfg)
}

// Options for building the pipeline; zero values use the real implementations.
type Options struct {
	AnalyzerFactory AnalyzerFactory
	BotFactory      notify.BotFactory
	Clock           func() time.Time
	SignalChan      chan os.Signal // for testing
}

// Components is the assembled pipeline, shared by the service and the
// one-shot CLI commands.
type Components struct {
	Config       *config.Config
	Store        *store.FileStore
	Cache        *cache.Documents
	Journal      *journal.Journal
	Git          *publish.Git
	Activity     *activitywatch.Client
	Analyzer     analysis.Analyzer
	Hub          *notify.Hub
	Orchestrator *orchestrator.Orchestrator
	Collector    *collector.Collector
	clock        func() time.Time
}

// Build assembles every component from cfg. Optional collaborators that
// cannot be created (git, telegram, the model) are logged and left out.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	log := logging.For("gateway")
	c := &Components{
		Config: cfg,
		Store:  store.NewFileStore(cfg.Logs.Dir),
		Cache:  cache.New(cfg.CacheTTL()),
		Hub:    notify.NewHub(),
		clock:  opts.Clock,
	}
	if c.clock == nil {
		c.clock = time.Now
	}

	j, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	c.Journal = j

	git, err := publish.NewGit(ctx, publish.GitOptions{
		RepoDir:    cfg.RepoDir(),
		Remote:     cfg.Publish.Remote,
		Branch:     cfg.Publish.Branch,
		Push:       cfg.Publish.Push,
		Attempts:   cfg.Publish.Attempts,
		RetryDelay: cfg.RetryDelay(),
	})
	if err != nil {
		log.WithError(err).Warn("git unavailable; publishing and commit discovery disabled")
	} else {
		c.Git = git
	}

	if cfg.ActivityWatch.Enabled {
		c.Activity = activitywatch.NewClient(cfg.ActivityWatch.URL, cfg.ActivityWatchTimeout(), cfg.ActivityWatch.EventLimit)
	}

	if cfg.Analysis.Enabled {
		factory := opts.AnalyzerFactory
		if factory == nil {
			factory = DefaultAnalyzerFactory
		}
		a, err := factory(cfg)
		if err != nil {
			log.WithError(err).Warn("analysis disabled")
		} else {
			c.Analyzer = a
		}
	}

	notifiers := notify.Multi{c.Hub}
	if tg := cfg.Channels.Telegram; tg.Enabled {
		factory := opts.BotFactory
		var bot *notify.Telegram
		if factory != nil {
			bot, err = notify.NewTelegramWithFactory(tg, factory)
		} else {
			bot, err = notify.NewTelegram(tg)
		}
		if err != nil {
			log.WithError(err).Warn("telegram notifications disabled")
		} else {
			notifiers = append(notifiers, bot)
		}
	}

	orchOpts := orchestrator.Options{
		Store:    c.Store,
		Cache:    c.Cache,
		Journal:  c.Journal,
		Notifier: notifiers,
		Clock:    c.clock,
		Attempts: cfg.Publish.Attempts,
	}
	if cfg.Publish.Enabled && c.Git != nil {
		orchOpts.Publisher = c.Git
	}
	c.Orchestrator, err = orchestrator.New(orchOpts)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	colOpts := collector.Options{
		Tasks:    c.Journal,
		Analyzer: c.Analyzer,
		Projects: cfg.Projects,
		Author:   cfg.Collector.Author,
	}
	if c.Activity != nil {
		colOpts.Activity = c.Activity
	}
	if c.Git != nil {
		colOpts.Commits = c.Git
	}
	c.Collector = collector.New(c.Orchestrator, colOpts)
	return c, nil
}

// RunTask executes one scheduled task.
func (c *Components) RunTask(ctx context.Context, job cron.CronJob) (string, error) {
	now := c.clock()
	day := worklog.DateOf(now.AddDate(0, 0, job.Payload.Offset))

	switch job.Payload.Task {
	case cron.TaskCollect:
		res, err := c.Collector.Run(ctx, day)
		if err != nil {
			return "", err
		}
		return describe(res), nil
	case cron.TaskAnalyze:
		res, err := c.Collector.Analyze(ctx, day)
		if err != nil {
			return "", err
		}
		return describe(res), nil
	case cron.TaskPrune:
		days := c.Config.Journal.RetentionDays
		if days <= 0 {
			days = config.DefaultRetentionDays
		}
		n, err := c.Journal.Prune(ctx, worklog.DateOf(now.AddDate(0, 0, -days)))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("pruned %d merged tasks", n), nil
	default:
		return "", fmt.Errorf("unknown task %q", job.Payload.Task)
	}
}

func describe(res *orchestrator.Result) string {
	switch {
	case !res.HasChanges:
		return fmt.Sprintf("%s: no changes", res.Date)
	case res.PublishErr != nil:
		return fmt.Sprintf("%s: written, publish failed: %v", res.Date, res.PublishErr)
	case res.Published:
		return fmt.Sprintf("%s: written and published", res.Date)
	default:
		return fmt.Sprintf("%s: written", res.Date)
	}
}

func (c *Components) Close() error {
	if c.Journal != nil {
		return c.Journal.Close()
	}
	return nil
}

var (
	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

// metrics is created once per process; fiberprometheus registers its
// collectors globally.
func metrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() { promMW = fiberprometheus.New("worklog") })
	return promMW
}

type Gateway struct {
	comp       *Components
	cron       *cron.Service
	server     *api.Server
	signalChan chan os.Signal
	log        *logrus.Entry
}

// New creates a Gateway with default options
func New(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(ctx, cfg, Options{})
}

func NewWithOptions(ctx context.Context, cfg *config.Config, opts Options) (*Gateway, error) {
	comp, err := Build(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		comp:       comp,
		cron:       cron.NewService(cfg.CronStorePath()),
		signalChan: opts.SignalChan,
		log:        logging.For("gateway"),
	}
	g.cron.OnJob = comp.RunTask

	apiOpts := api.Options{
		Service: comp.Orchestrator,
		Tasks:   comp.Journal,
		Hub:     comp.Hub,
		Metrics: metrics(),
	}
	if comp.Activity != nil {
		apiOpts.Activity = comp.Activity
	}
	g.server = api.New(apiOpts)
	return g, nil
}

// ensureJobs registers the built-in jobs from config.
func (g *Gateway) ensureJobs() error {
	cfg := g.comp.Config
	jobs := []struct {
		name string
		expr string
		task string
		on   bool
	}{
		{"collect", cfg.Collector.Schedule, cron.TaskCollect, true},
		{"analyze", cfg.Analysis.Schedule, cron.TaskAnalyze, g.comp.Analyzer != nil},
		{"prune-journal", cfg.Journal.Schedule, cron.TaskPrune, true},
	}

	var errs []error
	for _, j := range jobs {
		if j.expr == "" {
			continue
		}
		job, err := g.cron.EnsureJob(j.name, cron.Schedule{Kind: cron.KindCron, Expr: j.expr}, cron.Payload{Task: j.task})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.name, err))
			continue
		}
		if job.Enabled != j.on {
			if _, err := g.cron.EnableJob(job.ID, j.on); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.comp.Store.Watch(ctx, g.comp.Cache.Invalidate); err != nil {
		g.log.WithError(err).Warn("file watcher disabled")
	}

	if err := g.ensureJobs(); err != nil {
		g.log.WithError(err).Warn("ensure jobs")
	}
	if err := g.cron.Start(ctx); err != nil {
		g.log.WithError(err).Warn("cron start")
	}

	cfg := g.comp.Config
	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- g.server.Listen(addr)
	}()
	g.log.WithFields(logrus.Fields{"addr": addr, "logs": cfg.Logs.Dir}).Info("running")

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	var runErr error
	select {
	case <-sigCh:
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("api server: %w", err)
		}
	}

	g.log.Info("shutting down...")
	if err := g.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (g *Gateway) Shutdown() error {
	g.cron.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.server.Shutdown(ctx); err != nil {
		g.log.WithError(err).Warn("api shutdown")
	}
	if err := g.comp.Close(); err != nil {
		g.log.WithError(err).Warn("close journal")
	}
	g.log.Info("shutdown complete")
	return nil
}
