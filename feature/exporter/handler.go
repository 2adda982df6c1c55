package exporter

import (
	"errors"

	"asset-exporter/core/logger"
	"asset-exporter/core/registry"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the exporter status API.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the exporter routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/registry/stats", h.HandleStats)
	app.Get("/registry/entry", h.HandleEntry)
	app.Get("/reconcile/missing", h.HandleMissing)
	app.Get("/diff", h.HandleDiff)
	app.Get("/runs", h.HandleRuns)
}

// HandleStats returns entry counts of the active registry.
func (h *Handler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return h.fail(c, "Registry stats failed", err)
	}
	return c.JSON(stats)
}

// HandleEntry returns the record of one logical path.
func (h *Handler) HandleEntry(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "path is required",
		})
	}

	rec, ok, err := h.service.Entry(c.Context(), path)
	if err != nil {
		return h.fail(c, "Registry lookup failed", err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not found",
			"path":  path,
		})
	}
	return c.JSON(fiber.Map{
		"path":      path,
		"extension": rec.Extension,
		"size":      rec.Size,
	})
}

// HandleMissing returns the reconcile plan of the active registry.
func (h *Handler) HandleMissing(c *fiber.Ctx) error {
	plan, err := h.service.ReconcilePlan(c.Context())
	if err != nil {
		return h.fail(c, "Reconcile scan failed", err)
	}
	return c.JSON(plan)
}

// HandleDiff compares the active registry with ?base=<version>&branch=<branch>.
func (h *Handler) HandleDiff(c *fiber.Ctx) error {
	base, err := ParseLabel(c.Query("base"), c.Query("branch"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	res, err := h.service.Diff(c.Context(), base, DiffOptions{})
	if errors.Is(err, registry.ErrBaselineNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		return h.fail(c, "Diff failed", err)
	}
	return c.JSON(res)
}

// HandleRuns returns recent run history (?limit=).
func (h *Handler) HandleRuns(c *fiber.Ctx) error {
	runs, err := h.service.Runs(c.Context(), c.QueryInt("limit", 0))
	if err != nil {
		return h.fail(c, "Run history failed", err)
	}
	return c.JSON(runs)
}

func (h *Handler) fail(c *fiber.Ctx, msg string, err error) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
