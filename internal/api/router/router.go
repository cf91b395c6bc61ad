package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kritchai/factorysim/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "sim-service",
		})
	})

	simHandler := handler.NewSimHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a production job
			jobs.POST("", simHandler.CreateJob)

			// GET /api/v1/jobs - List backlog and completed jobs
			jobs.GET("", simHandler.ListJobs)
		}

		machines := v1.Group("/machines")
		{
			// POST /api/v1/machines - Add a machine to the floor
			machines.POST("", simHandler.AddMachine)

			// GET /api/v1/machines - List machine statuses
			machines.GET("", simHandler.ListMachines)

			// GET /api/v1/machines/:name - Get one machine status
			machines.GET("/:name", simHandler.GetMachine)

			// DELETE /api/v1/machines/:name - Remove a machine
			machines.DELETE("/:name", simHandler.RemoveMachine)

			// GET /api/v1/machines/:name/oee - OEE breakdown for a machine
			machines.GET("/:name/oee", simHandler.GetMachineOEE)
		}

		lines := v1.Group("/lines")
		{
			// POST /api/v1/lines - Create a production line
			lines.POST("", simHandler.CreateLine)

			// GET /api/v1/lines - List line summaries
			lines.GET("", simHandler.ListLines)

			// GET /api/v1/lines/:line_id - Get one line summary
			lines.GET("/:line_id", simHandler.GetLine)

			// DELETE /api/v1/lines/:line_id - Remove a line, releasing its machines
			lines.DELETE("/:line_id", simHandler.RemoveLine)

			// POST /api/v1/lines/:line_id/routes - Define a product route
			lines.POST("/:line_id/routes", simHandler.CreateRoute)

			// GET /api/v1/lines/:line_id/balance - Line balancing suggestions
			lines.GET("/:line_id/balance", simHandler.GetLineBalance)
		}

		simulation := v1.Group("/simulation")
		{
			// POST /api/v1/simulation/start - Start the clock
			simulation.POST("/start", simHandler.StartSimulation)

			// POST /api/v1/simulation/pause - Pause stepping
			simulation.POST("/pause", simHandler.PauseSimulation)

			// POST /api/v1/simulation/resume - Resume stepping
			simulation.POST("/resume", simHandler.ResumeSimulation)

			// POST /api/v1/simulation/stop - Stop and finalize the run
			simulation.POST("/stop", simHandler.StopSimulation)

			// POST /api/v1/simulation/reset - Clear jobs and history
			simulation.POST("/reset", simHandler.ResetSimulation)

			// PUT /api/v1/simulation/speed - Change the speed factor
			simulation.PUT("/speed", simHandler.SetSpeed)

			// GET /api/v1/simulation/status - Clock and counter snapshot
			simulation.GET("/status", simHandler.GetSimulationStatus)
		}

		metrics := v1.Group("/metrics")
		{
			// GET /api/v1/metrics/latest - Most recent sample
			metrics.GET("/latest", simHandler.GetLatestMetrics)

			// GET /api/v1/metrics/history - Full sampled time series
			metrics.GET("/history", simHandler.GetMetricsHistory)

			// GET /api/v1/metrics/history/csv - Time series as CSV
			metrics.GET("/history/csv", simHandler.ExportMetricsCSV)
		}

		analysis := v1.Group("/analysis")
		{
			// GET /api/v1/analysis/bottlenecks - Current bottleneck reports
			analysis.GET("/bottlenecks", simHandler.GetBottlenecks)

			// GET /api/v1/analysis/suggestions - Optimization suggestions
			analysis.GET("/suggestions", simHandler.GetSuggestions)

			// GET /api/v1/analysis/ranking - Machines ranked by OEE
			analysis.GET("/ranking", simHandler.GetEfficiencyRanking)

			// GET /api/v1/analysis/inefficiencies - Idle, overloaded and imbalanced machines
			analysis.GET("/inefficiencies", simHandler.GetInefficiencies)
		}

		// GET /api/v1/factory/summary - Aggregate factory snapshot
		v1.GET("/factory/summary", simHandler.GetFactorySummary)

		// GET /api/v1/layouts/export - Line layouts for external tools
		v1.GET("/layouts/export", simHandler.ExportLayouts)

		runs := v1.Group("/runs")
		{
			// GET /api/v1/runs - Archived runs, newest first
			runs.GET("", simHandler.ListRuns)

			// GET /api/v1/runs/:run_id - One archived run
			runs.GET("/:run_id", simHandler.GetRun)

			// GET /api/v1/runs/:run_id/samples - Archived time series
			runs.GET("/:run_id/samples", simHandler.GetRunSamples)

			// GET /api/v1/runs/:run_id/layout - Layout snapshot for the run
			runs.GET("/:run_id/layout", simHandler.GetRunLayout)
		}
	}

	return r
}
