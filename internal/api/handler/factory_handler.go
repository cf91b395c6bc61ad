package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kritchai/factorysim/internal/api/dto"
	"github.com/kritchai/factorysim/internal/control"
	"github.com/kritchai/factorysim/internal/sim"
)

// CreateJob handles POST /api/v1/jobs
// Creates a production job and queues it for routing
func (h *SimHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	priority, err := control.ParsePriority(req.Priority)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	job, err := h.controller.CreateJob(req.BatchSize, req.Machines, priority)
	if err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		h.respondDomainError(c, err)
		return
	}

	h.logger.Info("Job created",
		slog.Int("job_id", job.ID),
		slog.Int("batch_size", job.BatchSize),
		slog.String("priority", job.Priority.String()),
	)

	c.JSON(http.StatusCreated, jobToDTO(*job))
}

// ListJobs handles GET /api/v1/jobs
// Lists backlog and completed jobs
func (h *SimHandler) ListJobs(c *gin.Context) {
	pending := h.controller.PendingJobs()
	completed := h.controller.CompletedJobs()

	resp := dto.ListJobsResponse{
		Pending:   make([]dto.JobDTO, 0, len(pending)),
		Completed: make([]dto.JobDTO, 0, len(completed)),
	}
	for _, job := range pending {
		resp.Pending = append(resp.Pending, jobToDTO(job))
	}
	for _, job := range completed {
		resp.Completed = append(resp.Completed, jobToDTO(job))
	}

	c.JSON(http.StatusOK, resp)
}

// AddMachine handles POST /api/v1/machines
// Registers a machine on the factory floor
func (h *SimHandler) AddMachine(c *gin.Context) {
	var req dto.AddMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	err := h.controller.AddMachine(sim.MachineSpec{
		Name:      req.Name,
		Type:      req.Type,
		BaseTime:  req.BaseTime,
		SetupTime: req.SetupTime,
		Capacity:  req.Capacity,
	})
	if err != nil {
		h.logger.Error("Failed to add machine",
			slog.String("machine", req.Name),
			slog.String("error", err.Error()),
		)
		h.respondDomainError(c, err)
		return
	}

	h.logger.Info("Machine added", slog.String("machine", req.Name))

	status, err := h.controller.MachineStatus(req.Name)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, status)
}

// ListMachines handles GET /api/v1/machines
func (h *SimHandler) ListMachines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"machines": h.controller.MachineStatuses(),
	})
}

// GetMachine handles GET /api/v1/machines/:name
func (h *SimHandler) GetMachine(c *gin.Context) {
	name := c.Param("name")

	status, err := h.controller.MachineStatus(name)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// RemoveMachine handles DELETE /api/v1/machines/:name
// Queued jobs return to the backlog for re-routing
func (h *SimHandler) RemoveMachine(c *gin.Context) {
	name := c.Param("name")

	if !h.controller.RemoveMachine(name) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "machine not found",
		})
		return
	}

	h.logger.Info("Machine removed", slog.String("machine", name))
	c.Status(http.StatusNoContent)
}

// GetMachineOEE handles GET /api/v1/machines/:name/oee
func (h *SimHandler) GetMachineOEE(c *gin.Context) {
	name := c.Param("name")

	report, err := h.controller.OEE(name)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CreateLine handles POST /api/v1/lines
// Creates a production line over existing machines, in flow order
func (h *SimHandler) CreateLine(c *gin.Context) {
	var req dto.CreateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	line, err := h.controller.AddProductionLine(req.Name, req.Machines)
	if err != nil {
		h.logger.Error("Failed to create line",
			slog.String("line", req.Name),
			slog.String("error", err.Error()),
		)
		h.respondDomainError(c, err)
		return
	}

	h.logger.Info("Line created",
		slog.String("line_id", line.ID),
		slog.String("name", line.Name),
	)

	summary, err := h.controller.LineSummary(line.ID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// ListLines handles GET /api/v1/lines
func (h *SimHandler) ListLines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"lines": h.controller.LineSummaries(),
	})
}

// GetLine handles GET /api/v1/lines/:line_id
func (h *SimHandler) GetLine(c *gin.Context) {
	summary, err := h.controller.LineSummary(c.Param("line_id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RemoveLine handles DELETE /api/v1/lines/:line_id
// Machines on the line are released, not deleted
func (h *SimHandler) RemoveLine(c *gin.Context) {
	id := c.Param("line_id")

	if !h.controller.RemoveProductionLine(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "line not found",
		})
		return
	}

	h.logger.Info("Line removed", slog.String("line_id", id))
	c.Status(http.StatusNoContent)
}

// CreateRoute handles POST /api/v1/lines/:line_id/routes
func (h *SimHandler) CreateRoute(c *gin.Context) {
	var req dto.CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	route, err := h.controller.CreateRoute(
		c.Param("line_id"),
		req.Product,
		req.Machines,
		req.CycleTimes,
		req.SetupTimes,
	)
	if err != nil {
		h.logger.Error("Failed to create route",
			slog.String("product", req.Product),
			slog.String("error", err.Error()),
		)
		h.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, route)
}

// GetLineBalance handles GET /api/v1/lines/:line_id/balance
func (h *SimHandler) GetLineBalance(c *gin.Context) {
	suggestions, err := h.controller.LineBalance(c.Param("line_id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"suggestions": suggestions,
	})
}

// GetFactorySummary handles GET /api/v1/factory/summary
func (h *SimHandler) GetFactorySummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.FactorySummary())
}
