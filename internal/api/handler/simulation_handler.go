package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kritchai/factorysim/internal/api/dto"
)

// StartSimulation handles POST /api/v1/simulation/start
// Starts the clock and opens a new archived run
func (h *SimHandler) StartSimulation(c *gin.Context) {
	runID := h.controller.Start(c.Request.Context())

	h.logger.Info("Simulation started", slog.String("run_id", runID))
	c.JSON(http.StatusOK, dto.StartResponse{RunID: runID})
}

// PauseSimulation handles POST /api/v1/simulation/pause
func (h *SimHandler) PauseSimulation(c *gin.Context) {
	h.controller.Pause()

	h.logger.Info("Simulation paused")
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

// ResumeSimulation handles POST /api/v1/simulation/resume
func (h *SimHandler) ResumeSimulation(c *gin.Context) {
	h.controller.Resume()

	h.logger.Info("Simulation resumed")
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

// StopSimulation handles POST /api/v1/simulation/stop
// Stops the clock and finalizes the current run row
func (h *SimHandler) StopSimulation(c *gin.Context) {
	h.controller.Stop(c.Request.Context())

	h.logger.Info("Simulation stopped")
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// ResetSimulation handles POST /api/v1/simulation/reset
// Clears jobs, counters and metric history; machines and lines survive
func (h *SimHandler) ResetSimulation(c *gin.Context) {
	h.controller.Reset(c.Request.Context())

	h.logger.Info("Simulation reset")
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// SetSpeed handles PUT /api/v1/simulation/speed
// The factor is clamped to the supported range, the response carries
// the value actually applied
func (h *SimHandler) SetSpeed(c *gin.Context) {
	var req dto.SetSpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	applied := h.controller.SetSpeed(req.Factor)

	h.logger.Info("Speed changed", slog.Float64("factor", applied))
	c.JSON(http.StatusOK, dto.SetSpeedResponse{Factor: applied})
}

// GetSimulationStatus handles GET /api/v1/simulation/status
func (h *SimHandler) GetSimulationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.RunSummary())
}
