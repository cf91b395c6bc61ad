package handler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLatestMetrics handles GET /api/v1/metrics/latest
func (h *SimHandler) GetLatestMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.LatestMetrics())
}

// GetMetricsHistory handles GET /api/v1/metrics/history
func (h *SimHandler) GetMetricsHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.History())
}

// ExportMetricsCSV handles GET /api/v1/metrics/history/csv
// Streams the sampled time series as one row per observation
func (h *SimHandler) ExportMetricsCSV(c *gin.Context) {
	series := h.controller.History()

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="metrics.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"time", "throughput", "utilization", "wip"})
	for i, t := range series.Times {
		record := []string{
			strconv.FormatFloat(t, 'f', 2, 64),
			strconv.FormatFloat(series.Throughput[i], 'f', 2, 64),
			strconv.FormatFloat(series.Utilization[i], 'f', 2, 64),
			strconv.Itoa(series.WIP[i]),
		}
		if err := w.Write(record); err != nil {
			h.logger.Error("Failed to write CSV record", slog.String("error", err.Error()))
			return
		}
	}
	w.Flush()
}

// GetBottlenecks handles GET /api/v1/analysis/bottlenecks
func (h *SimHandler) GetBottlenecks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"bottlenecks": h.controller.Bottlenecks(),
	})
}

// GetSuggestions handles GET /api/v1/analysis/suggestions
func (h *SimHandler) GetSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"suggestions": h.controller.Suggestions(),
	})
}

// GetEfficiencyRanking handles GET /api/v1/analysis/ranking
// Machines ordered best OEE first
func (h *SimHandler) GetEfficiencyRanking(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ranking": h.controller.EfficiencyRanking(),
	})
}

// GetInefficiencies handles GET /api/v1/analysis/inefficiencies
func (h *SimHandler) GetInefficiencies(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Inefficiencies())
}

// ExportLayouts handles GET /api/v1/layouts/export
func (h *SimHandler) ExportLayouts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"layouts": h.controller.ExportLayouts(),
	})
}
