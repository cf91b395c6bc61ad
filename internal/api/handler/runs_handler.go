package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListRuns handles GET /api/v1/runs
// Archived runs newest first, the limit query parameter caps the page
func (h *SimHandler) ListRuns(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "run archive is disabled",
		})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list runs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun handles GET /api/v1/runs/:run_id
func (h *SimHandler) GetRun(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "run archive is disabled",
		})
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "run not found",
			})
			return
		}
		h.logger.Error("Failed to get run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get run",
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetRunSamples handles GET /api/v1/runs/:run_id/samples
func (h *SimHandler) GetRunSamples(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "run archive is disabled",
		})
		return
	}

	samples, err := h.store.ListSamples(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		h.logger.Error("Failed to list samples", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list samples",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"samples": samples})
}

// GetRunLayout handles GET /api/v1/runs/:run_id/layout
func (h *SimHandler) GetRunLayout(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "run archive is disabled",
		})
		return
	}

	layout, err := h.store.ListLayout(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		h.logger.Error("Failed to list layout", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list layout",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"layout": layout})
}
