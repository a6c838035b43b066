package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"imgvault/internal/batch"
	"imgvault/internal/services"
)

type handler struct {
	ctrl   *batch.Controller
	vault  VaultInspector
	logger *slog.Logger
}

// Register mounts the API routes.
func (h *handler) Register(e *echo.Echo) {
	e.GET("/ping", h.ping)
	g := e.Group("/api")
	g.GET("/status", h.status)
	g.POST("/assets/:id/optimize", h.optimize)
	g.POST("/assets/:id/restore", h.restore)
	g.POST("/batch/step", h.batchStep)
	g.POST("/restore-all", h.restoreAll)
	g.POST("/inventory", h.inventory)
}

func (h *handler) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func assetID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "asset id must be a positive integer"})
	}
	return id, nil
}

func (h *handler) optimize(c echo.Context) error {
	id, err := assetID(c)
	if err != nil {
		return err
	}
	out := h.ctrl.RunSingleStep(c.Request().Context(), id)
	return c.JSON(http.StatusOK, FromOutcome(out))
}

func (h *handler) restore(c echo.Context) error {
	id, err := assetID(c)
	if err != nil {
		return err
	}
	out := h.ctrl.Restore(c.Request().Context(), id)
	return c.JSON(http.StatusOK, FromOutcome(out))
}

func (h *handler) batchStep(c echo.Context) error {
	res, err := h.ctrl.RunBatchStep(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, FromStepResult(res))
}

func (h *handler) restoreAll(c echo.Context) error {
	summary, err := h.ctrl.RestoreAll(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, FromRestoreSummary(summary))
}

func (h *handler) inventory(c echo.Context) error {
	inv, err := h.ctrl.Inventory(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, FromInventory(inv))
}

func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()
	pending, err := h.ctrl.SelectPending(ctx, math.MaxInt32)
	if err != nil {
		return errorResponse(err)
	}
	resp := StatusResponse{
		Format:    h.ctrl.Optimizer().Format(),
		BatchSize: h.ctrl.Limit(),
		Pending:   len(pending),
	}
	if h.vault != nil {
		stats, err := h.vault.Stats()
		if err != nil {
			return errorResponse(err)
		}
		resp.Vault = VaultStatus{
			Root:      stats.Root,
			Healthy:   true,
			Exists:    stats.Exists,
			Files:     stats.Files,
			Bytes:     stats.Bytes,
			FreeBytes: stats.FreeBytes,
		}
		if err := h.vault.Health(); err != nil {
			resp.Vault.Healthy = false
			resp.Vault.Detail = err.Error()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func errorResponse(err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrVaultUnhealthy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	}
	return echo.NewHTTPError(status, ErrorResponse{Message: err.Error()})
}
