package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"serp-go/internal/service"
	"serp-go/pkg/logger"
	"serp-go/pkg/pipeline"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
	"serp-go/pkg/worker"
)

// UserIDHeader optionally identifies the submitting user
const UserIDHeader = "X-User-ID"

// Controller serves the analysis HTTP API
type Controller struct {
	analyses service.AnalysisService
	stats    service.StatsProvider
	cache    service.CacheStatsProvider
	log      *logger.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type statsResponse struct {
	Workers *worker.PoolStats `json:"workers,omitempty"`
	Cache   *serp.CacheStats  `json:"cache,omitempty"`
}

type submitResponse struct {
	AnalysisID string `json:"analysis_id"`
}

// NewController creates the controller. cache may be nil when result
// caching is disabled.
func NewController(analyses service.AnalysisService, stats service.StatsProvider, cache service.CacheStatsProvider) *Controller {
	return &Controller{
		analyses: analyses,
		stats:    stats,
		cache:    cache,
		log:      logger.GetLogger().WithField("component", "http_controller"),
	}
}

// Register mounts every route on app
func (c *Controller) Register(app *fiber.App) {
	app.Get("/health", c.Health)

	v1 := app.Group("/api/v1")
	v1.Get("/stats", c.Stats)
	v1.Post("/analyses", c.SubmitAnalysis)
	v1.Get("/analyses/:id", c.GetStatus)
	v1.Get("/analyses/:id/results", c.GetResults)
	v1.Post("/analyses/:id/reverify", c.Reverify)
}

// NewApp creates a fiber app with JSON error responses and the routes mounted
func NewApp(c *Controller) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "serp-go",
		DisableStartupMessage: true,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return ctx.Status(code).JSON(errorResponse{Error: err.Error()})
		},
	})
	c.Register(app)
	return app
}

// Health handles GET /health
func (c *Controller) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}

// Stats handles GET /api/v1/stats
func (c *Controller) Stats(ctx *fiber.Ctx) error {
	var resp statsResponse
	if c.stats != nil {
		workers := c.stats.Stats()
		resp.Workers = &workers
	}
	if c.cache != nil {
		cache := c.cache.Stats()
		resp.Cache = &cache
	}
	return ctx.JSON(resp)
}

// SubmitAnalysis handles POST /api/v1/analyses
func (c *Controller) SubmitAnalysis(ctx *fiber.Ctx) error {
	var req pipeline.SubmitRequest
	if err := ctx.BodyParser(&req); err != nil {
		return c.respondError(ctx, fiber.StatusBadRequest, err)
	}
	req.UserID = ctx.Get(UserIDHeader)

	id, err := c.analyses.Submit(ctx.UserContext(), req)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(submitResponse{AnalysisID: id})
}

// GetStatus handles GET /api/v1/analyses/:id
func (c *Controller) GetStatus(ctx *fiber.Ctx) error {
	view, err := c.analyses.Status(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(view)
}

// GetResults handles GET /api/v1/analyses/:id/results
func (c *Controller) GetResults(ctx *fiber.Ctx) error {
	view, err := c.analyses.Results(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(view)
}

// Reverify handles POST /api/v1/analyses/:id/reverify
func (c *Controller) Reverify(ctx *fiber.Ctx) error {
	var req pipeline.ReverifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return c.respondError(ctx, fiber.StatusBadRequest, err)
	}
	req.AnalysisID = ctx.Params("id")

	result, err := c.analyses.Reverify(ctx.UserContext(), req)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(result)
}

// fail maps service errors to status codes
func (c *Controller) fail(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest), errors.Is(err, pipeline.ErrTargetMismatch):
		return c.respondError(ctx, fiber.StatusBadRequest, err)
	case errors.Is(err, storage.ErrNotFound):
		return c.respondError(ctx, fiber.StatusNotFound, err)
	case errors.Is(err, pipeline.ErrUnavailable):
		return c.respondError(ctx, fiber.StatusServiceUnavailable, err)
	}

	code := fiber.StatusInternalServerError
	var oracleErr *serp.Error
	if errors.As(err, &oracleErr) {
		code = fiber.StatusBadGateway
	}

	c.log.WithError(err).WithFields(map[string]interface{}{
		"method": ctx.Method(),
		"path":   ctx.Path(),
		"status": code,
	}).Error("Request failed")
	return c.respondError(ctx, code, err)
}

func (c *Controller) respondError(ctx *fiber.Ctx, code int, err error) error {
	return ctx.Status(code).JSON(errorResponse{Error: err.Error()})
}
