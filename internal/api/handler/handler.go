package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kritchai/factorysim/internal/control"
	"github.com/kritchai/factorysim/internal/api/dto"
	"github.com/kritchai/factorysim/internal/sim"
	"github.com/kritchai/factorysim/internal/store"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Controller *control.Controller
	Store      *store.Store
}

// SimHandler handles simulation HTTP requests
type SimHandler struct {
	logger     *slog.Logger
	controller *control.Controller
	store      *store.Store
}

// NewSimHandler creates a new SimHandler instance
func NewSimHandler(deps *Dependencies) *SimHandler {
	return &SimHandler{
		logger:     deps.Logger,
		controller: deps.Controller,
		store:      deps.Store,
	}
}

// respondDomainError maps domain sentinel errors onto HTTP statuses
func (h *SimHandler) respondDomainError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, sim.ErrMachineNotFound) || errors.Is(err, sim.ErrLineNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func jobToDTO(job sim.Job) dto.JobDTO {
	d := dto.JobDTO{
		ID:          job.ID,
		BatchSize:   job.BatchSize,
		Machines:    job.RequiredMachines,
		CurrentStep: job.CurrentStep,
		Priority:    job.Priority.String(),
		Progress:    job.ProgressPercent(),
		ArrivalTime: job.ArrivalTime,
		Defective:   job.IsDefective,
		ReworkCount: job.ReworkCount,
		TotalCost:   job.TotalCost,
	}
	if job.Started {
		start := job.StartTime
		d.StartTime = &start
	}
	if job.Completed {
		completion := job.CompletionTime
		d.CompletionTime = &completion
	}
	return d
}
