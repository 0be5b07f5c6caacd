package api

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/abishchhetri-svg/Tasks/internal/activitywatch"
	"github.com/abishchhetri-svg/Tasks/internal/orchestrator"
	"github.com/abishchhetri-svg/Tasks/internal/render"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

type taskResponse struct {
	Success bool          `json:"success"`
	Found   bool          `json:"found"`
	Data    *worklog.View `json:"data"`
}

type updateResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Changed    bool          `json:"changed"`
	Published  bool          `json:"published"`
	PublishErr string        `json:"publishError,omitempty"`
	Data       *worklog.View `json:"data,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type quickAddRequest struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// date reads the optional ?date= query, defaulting to today.
func (s *Server) date(c *fiber.Ctx) (worklog.Date, error) {
	raw := c.Query("date")
	if raw == "" {
		return s.opts.Service.Today(), nil
	}
	d, err := worklog.ParseDate(raw)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return d, nil
}

func (s *Server) getTasks(c *fiber.Ctx) error {
	date, err := s.date(c)
	if err != nil {
		return s.fail(c, err)
	}
	doc, found, err := s.opts.Service.Document(c.UserContext(), date)
	if err != nil {
		return s.fail(c, err)
	}
	resp := taskResponse{Success: true, Found: found}
	if found {
		v := worklog.NewView(doc)
		resp.Data = &v
	}
	return c.JSON(resp)
}

func (s *Server) getTasksHTML(c *fiber.Ctx) error {
	date, err := s.date(c)
	if err != nil {
		return s.fail(c, err)
	}
	doc, found, err := s.opts.Service.Document(c.UserContext(), date)
	if err != nil {
		return s.fail(c, err)
	}
	if !found {
		return s.fail(c, fiber.NewError(fiber.StatusNotFound, "no log for "+date.String()))
	}
	page, err := render.Page(doc)
	if err != nil {
		return s.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(page)
}

// postTasks accepts {"data": {...}} or the bare intake object.
func (s *Server) postTasks(c *fiber.Ctx) error {
	var wrapped struct {
		Data *worklog.Intake `json:"data"`
	}
	if err := json.Unmarshal(c.Body(), &wrapped); err != nil {
		return s.fail(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
	}
	in := wrapped.Data
	if in == nil {
		in = &worklog.Intake{}
		if err := json.Unmarshal(c.Body(), in); err != nil {
			return s.fail(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
		}
	}

	res, err := s.opts.Service.Intake(c.UserContext(), *in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(updateResult(res, "Tasks saved"))
}

func (s *Server) quickAdd(c *fiber.Ctx) error {
	var req quickAddRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
	}
	res, err := s.opts.Service.QuickAdd(c.UserContext(), req.Type, req.Description)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(updateResult(res, "Task added"))
}

func (s *Server) manualTasks(c *fiber.Ctx) error {
	if s.opts.Tasks == nil {
		return s.fail(c, fiber.NewError(fiber.StatusNotImplemented, "task journal disabled"))
	}
	date, err := s.date(c)
	if err != nil {
		return s.fail(c, err)
	}
	entries, err := s.opts.Tasks.List(c.UserContext(), date)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "tasks": entries})
}

// activityWatch proxies a read-only ActivityWatch path, buckets by default.
func (s *Server) activityWatch(c *fiber.Ctx) error {
	if s.opts.Activity == nil {
		return s.fail(c, fiber.NewError(fiber.StatusNotImplemented, "activitywatch disabled"))
	}
	path := "/" + strings.TrimLeft(c.Query("path", "/buckets/"), "/")
	if err := activitywatch.CheckPath(path); err != nil {
		return s.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	}
	query := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		if string(k) != "path" {
			query.Add(string(k), string(v))
		}
	})
	body, err := s.opts.Activity.Raw(c.UserContext(), path, query)
	if err != nil {
		return s.fail(c, fiber.NewError(fiber.StatusBadGateway, err.Error()))
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

func updateResult(res *orchestrator.Result, message string) updateResponse {
	out := updateResponse{Success: true, Message: message, Changed: res.HasChanges, Published: res.Published}
	if res.PublishErr != nil {
		out.PublishErr = res.PublishErr.Error()
	}
	if res.Document != nil {
		v := worklog.NewView(res.Document)
		out.Data = &v
	}
	return out
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		status = fe.Code
	case errors.Is(err, orchestrator.ErrUnknownBucket), errors.Is(err, orchestrator.ErrEmptyUpdate):
		status = fiber.StatusBadRequest
	}
	if status >= fiber.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(status).JSON(errorResponse{Success: false, Error: err.Error()})
}
