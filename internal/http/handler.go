// Package http exposes the invocation pipeline as a GitHub webhook receiver
package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"chessbot/internal/core"
	"chessbot/internal/processor"
	"chessbot/internal/storage"
	"chessbot/internal/tracker"
)

const rateLimitRate = 10 // req/sec

// IssueHandler runs one invocation for an issue delivered by a webhook
type IssueHandler interface {
	HandleIssue(ctx context.Context, issue *tracker.Issue) (processor.Outcome, error)
}

type HTTPHandler struct {
	issues IssueHandler
}

func NewHTTPHandler(issues IssueHandler) *HTTPHandler {
	return &HTTPHandler{issues: issues}
}

// InvocationResponse is the body returned for a processed delivery
type InvocationResponse struct {
	Success  bool   `json:"success"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Move     string `json:"move,omitempty"`
	GameOver bool   `json:"gameOver,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// NewFiberApp builds the webhook app. An empty secret disables signature
// verification.
func NewFiberApp(issues IssueHandler, secret string) *fiber.App {
	h := NewHTTPHandler(issues)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	app.Get("/health", h.Health)

	hooks := app.Group("/webhook")
	hooks.Use(limiter.New(limiter.Config{
		Max:        rateLimitRate,
		Expiration: 1 * time.Second,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  core.ErrRateLimitExceeded,
			})
		},
	}))
	hooks.Use(contentTypeValidator)
	hooks.Use(signatureVerifier(secret))
	hooks.Use(validationMiddleware)
	hooks.Post("/", h.Webhook)

	return app
}

// contentTypeValidator ensures deliveries are JSON encoded
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrNotFound
		case fiber.StatusBadRequest:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// Health check endpoint
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Webhook runs one invocation for an opened issue. Other events and
// actions are acknowledged and ignored.
func (h *HTTPHandler) Webhook(c *fiber.Ctx) error {
	event := c.Get(eventHeader)
	if event == "ping" {
		return c.JSON(fiber.Map{"status": "pong"})
	}

	payload, ok := c.Locals("validatedBody").(*IssuesEvent)
	if !ok || payload == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation data missing",
			Code:  core.ErrInternalError,
		})
	}

	if event != "issues" || payload.Action != "opened" {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "ignored",
			"event":  event,
			"action": payload.Action,
		})
	}

	issue := &tracker.Issue{
		Number: payload.Issue.Number,
		Title:  payload.Issue.Title,
		Author: payload.Issue.User.Login,
		State:  payload.Issue.State,
	}

	out, err := h.issues.HandleIssue(c.UserContext(), issue)
	if err != nil {
		if errors.Is(err, storage.ErrLocked) {
			return c.Status(fiber.StatusConflict).JSON(core.ErrorResponse{
				Error: "another invocation is running",
				Code:  core.ErrBusy,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error:   "invocation failed",
			Code:    core.ErrInternalError,
			Details: err.Error(),
		})
	}

	resp := InvocationResponse{
		Success: out.Success,
		Code:    out.Code,
		Reason:  out.Reason,
		Move:    out.Move,
	}
	if out.GameOver != nil {
		resp.GameOver = true
		resp.Outcome = out.GameOver.State.String()
	}
	return c.JSON(resp)
}
