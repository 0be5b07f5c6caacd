// Package api serves daily logs over HTTP for the browser extension and the
// dashboard.
package api

import (
	"context"
	"net/url"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/abishchhetri-svg/Tasks/internal/journal"
	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/notify"
	"github.com/abishchhetri-svg/Tasks/internal/orchestrator"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

// Service is the log pipeline behind the handlers.
type Service interface {
	Today() worklog.Date
	Document(ctx context.Context, date worklog.Date) (*worklog.Document, bool, error)
	QuickAdd(ctx context.Context, bucket, description string) (*orchestrator.Result, error)
	Intake(ctx context.Context, in worklog.Intake) (*orchestrator.Result, error)
}

type TaskLister interface {
	List(ctx context.Context, day worklog.Date) ([]journal.Entry, error)
}

type ActivityProxy interface {
	Raw(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Options wires the server. Tasks, Activity, Hub and Metrics are optional.
type Options struct {
	Service  Service
	Tasks    TaskLister
	Activity ActivityProxy
	Hub      *notify.Hub
	Metrics  *fiberprometheus.FiberPrometheus
}

type Server struct {
	app  *fiber.App
	opts Options
	log  *logrus.Entry
}

func New(opts Options) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "worklog",
			ReadTimeout:           30 * time.Second,
			WriteTimeout:          30 * time.Second,
			DisableStartupMessage: true,
		}),
		opts: opts,
		log:  logging.For("api"),
	}

	s.app.Use(recover.New())
	if opts.Metrics != nil {
		opts.Metrics.RegisterAt(s.app, "/metrics")
		s.app.Use(opts.Metrics.Middleware)
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	s.app.Use(s.requestLog)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Get("/tasks", s.getTasks)
	api.Post("/tasks", s.postTasks)
	api.Post("/tasks/quick-add", s.quickAdd)
	api.Get("/tasks/html", s.getTasksHTML)
	api.Get("/manual-tasks", s.manualTasks)
	api.Get("/activitywatch", s.activityWatch)

	if s.opts.Hub != nil {
		s.app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		s.app.Get("/ws", websocket.New(func(c *websocket.Conn) {
			s.opts.Hub.Serve(c)
		}))
	}
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Infof("listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.WithFields(logrus.Fields{
		"method":   c.Method(),
		"path":     c.Path(),
		"status":   c.Response().StatusCode(),
		"duration": time.Since(start).String(),
	}).Debug("request")
	return err
}
