package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kritchai/factorysim/internal/events"
	"github.com/kritchai/factorysim/internal/sim"
	"github.com/kritchai/factorysim/internal/store"
)

const (
	// DefaultTickRate is the stepping loop frequency in ticks per second
	DefaultTickRate = 30
	// DefaultMaxStep caps the wall-clock delta fed into one step, so a
	// stalled loop does not produce one giant simulation jump
	DefaultMaxStep = 100 * time.Millisecond

	// bottleneckSeverityThreshold is the minimum severity that emits a
	// bottleneck.detected event
	bottleneckSeverityThreshold = 3
)

// Config holds controller configuration
type Config struct {
	Logger   *slog.Logger
	Factory  *sim.Factory
	Manager  *sim.Manager
	Emitter  *events.Emitter
	Store    *store.Store
	TickRate int
	MaxStep  time.Duration
}

// Controller owns the simulation core behind a single mutex. The
// stepping loop and the HTTP handlers both go through it, so the sim
// packages stay free of locking.
type Controller struct {
	mu sync.Mutex

	logger   *slog.Logger
	factory  *sim.Factory
	manager  *sim.Manager
	analyzer *sim.PerformanceAnalyzer
	emitter  *events.Emitter
	store    *store.Store

	tickRate int
	maxStep  time.Duration

	runID            string
	lastTick         time.Time
	persistedSamples int
	lastCompleted    int
	activeBottleneck map[string]bool
}

// NewController wires the controller. Emitter and Store may be nil.
func NewController(cfg *Config) *Controller {
	tickRate := cfg.TickRate
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = DefaultMaxStep
	}

	return &Controller{
		logger:           cfg.Logger,
		factory:          cfg.Factory,
		manager:          cfg.Manager,
		analyzer:         sim.NewPerformanceAnalyzer(cfg.Factory, cfg.Manager),
		emitter:          cfg.Emitter,
		store:            cfg.Store,
		tickRate:         tickRate,
		maxStep:          maxStep,
		activeBottleneck: make(map[string]bool),
	}
}

// Run drives the stepping loop until the context is canceled. One
// wall-clock second maps to one simulated minute at speed 1.
func (c *Controller) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(c.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("Starting simulation loop",
		slog.Int("tick_rate", c.tickRate),
		slog.Duration("max_step", c.maxStep),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Simulation loop stopped")
			return nil
		case now := <-ticker.C:
			c.tick(ctx, now)
		}
	}
}

// tick advances the simulation by one wall-clock delta
func (c *Controller) tick(ctx context.Context, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastTick.IsZero() {
		c.lastTick = now
		return
	}

	delta := now.Sub(c.lastTick)
	c.lastTick = now

	if !c.manager.Running() || c.manager.Paused() {
		return
	}

	if delta > c.maxStep {
		delta = c.maxStep
	}

	sampleCountBefore := len(c.manager.Samples())
	c.manager.Step(delta.Seconds())

	c.emitCompletedJobs(ctx)

	if len(c.manager.Samples()) > sampleCountBefore {
		c.persistSamples(ctx)
		c.emitBottlenecks(ctx)
	}
}

// emitCompletedJobs publishes job.completed for jobs that finished
// since the last tick
func (c *Controller) emitCompletedJobs(ctx context.Context) {
	completed := c.factory.CompletedJobs()
	for _, job := range completed[c.lastCompleted:] {
		c.emitter.JobCompleted(ctx, events.JobCompletedEvent{
			JobID:          job.ID,
			BatchSize:      job.BatchSize,
			Priority:       job.Priority.String(),
			ArrivalTime:    job.ArrivalTime,
			CompletionTime: job.CompletionTime,
			TotalCost:      job.TotalCost,
			Defective:      job.IsDefective,
			ReworkCount:    job.ReworkCount,
		})
	}
	c.lastCompleted = len(completed)
}

// emitBottlenecks publishes bottleneck.detected once per congestion
// episode per machine
func (c *Controller) emitBottlenecks(ctx context.Context) {
	current := make(map[string]bool)
	for _, report := range c.analyzer.AnalyzeBottlenecks() {
		if report.Severity < bottleneckSeverityThreshold {
			continue
		}
		current[report.Machine] = true
		if c.activeBottleneck[report.Machine] {
			continue
		}
		c.emitter.BottleneckDetected(ctx, events.BottleneckDetectedEvent{
			Machine:     report.Machine,
			Severity:    report.Severity,
			QueueLength: report.QueueLength,
			Utilization: report.Utilization,
			SimTime:     c.manager.CurrentTime,
		})
	}
	c.activeBottleneck = current
}

// persistSamples archives samples recorded since the last persist
func (c *Controller) persistSamples(ctx context.Context) {
	if c.store == nil || c.runID == "" {
		return
	}

	samples := c.manager.Samples()
	for _, s := range samples[c.persistedSamples:] {
		err := c.store.InsertSample(ctx, store.Sample{
			RunID:       c.runID,
			SimTime:     s.Time,
			Throughput:  s.Throughput,
			Utilization: s.Utilization,
			WIP:         s.WIP,
		})
		if err != nil {
			c.logger.Warn("Failed to archive sample",
				slog.String("run_id", c.runID),
				slog.Any("error", err),
			)
		}
	}
	c.persistedSamples = len(samples)
}

// Start begins a fresh run from simulated time zero
func (c *Controller) Start(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.manager.Start()
	c.runID = uuid.New().String()
	c.persistedSamples = 0
	c.lastCompleted = len(c.factory.CompletedJobs())
	c.activeBottleneck = make(map[string]bool)
	c.lastTick = time.Time{}

	if c.store != nil {
		if err := c.store.CreateRun(ctx, c.runID, time.Now()); err != nil {
			c.logger.Warn("Failed to archive run start",
				slog.String("run_id", c.runID),
				slog.Any("error", err),
			)
		}
		c.archiveLayout(ctx)
	}

	c.logger.Info("Simulation started",
		slog.String("run_id", c.runID),
	)
	return c.runID
}

// archiveLayout snapshots every line's machine placement for the run
func (c *Controller) archiveLayout(ctx context.Context) {
	var entries []store.LayoutEntry
	for _, line := range c.factory.Lines() {
		layout := line.ExportLayout()
		x, y := 0.0, 0.0
		for i, m := range layout.Machines {
			entries = append(entries, store.LayoutEntry{
				LineID:   layout.ID,
				Machine:  m.Name,
				Position: i,
				X:        x,
				Y:        y,
			})
			if layout.Direction == "vertical" {
				y += float64(layout.Spacing)
			} else {
				x += float64(layout.Spacing)
			}
		}
	}
	if len(entries) == 0 {
		return
	}
	if err := c.store.SaveLayout(ctx, c.runID, entries); err != nil {
		c.logger.Warn("Failed to archive layout",
			slog.String("run_id", c.runID),
			slog.Any("error", err),
		)
	}
}

// Pause suspends stepping without losing state
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.Pause()
}

// Resume continues a paused run
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.Resume()
}

// Stop ends the run, keeping accumulated history readable
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasRunning := c.manager.Running()
	c.manager.Stop()

	if wasRunning && c.store != nil && c.runID != "" {
		c.persistSamples(ctx)
		c.finishRun(ctx)
	}

	c.logger.Info("Simulation stopped",
		slog.String("run_id", c.runID),
		slog.Float64("sim_minutes", c.manager.CurrentTime),
	)
}

// finishRun records final statistics for the archived run
func (c *Controller) finishRun(ctx context.Context) {
	now := c.manager.CurrentTime
	stoppedAt := time.Now()

	var totalOutput, totalDefects int
	var totalCost float64
	for _, m := range c.factory.Machines() {
		totalOutput += m.TotalOutput
		totalDefects += m.TotalDefects
		totalCost += m.MaterialCost + m.ProcessingCost + m.DefectCost
	}

	err := c.store.FinishRun(ctx, store.Run{
		RunID:          c.runID,
		StoppedAt:      &stoppedAt,
		SimMinutes:     now,
		TotalOutput:    totalOutput,
		TotalDefects:   totalDefects,
		TotalCost:      totalCost,
		AvgUtilization: c.factory.AverageUtilization(now),
	})
	if err != nil {
		c.logger.Warn("Failed to archive run finish",
			slog.String("run_id", c.runID),
			slog.Any("error", err),
		)
	}
}

// Reset stops the run and clears all jobs, statistics and history
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.manager.Running() && c.store != nil && c.runID != "" {
		c.persistSamples(ctx)
		c.finishRun(ctx)
	}

	c.manager.Reset()
	c.runID = ""
	c.persistedSamples = 0
	c.lastCompleted = 0
	c.activeBottleneck = make(map[string]bool)

	c.logger.Info("Simulation reset")
}

// SetSpeed adjusts the speed factor, clamped by the manager
func (c *Controller) SetSpeed(factor float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.SetSpeed(factor)
	return c.manager.Speed()
}

// ParsePriority maps the wire-level priority name to the domain level
func ParsePriority(s string) (sim.Priority, error) {
	switch s {
	case "", "normal":
		return sim.PriorityNormal, nil
	case "high":
		return sim.PriorityHigh, nil
	case "critical":
		return sim.PriorityCritical, nil
	default:
		return 0, fmt.Errorf("priority %q: %w", s, sim.ErrInvalidPriority)
	}
}

// CreateJob creates and enqueues a job for routing
func (c *Controller) CreateJob(batchSize int, sequence []string, priority sim.Priority) (*sim.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factory.CreateJob(batchSize, sequence, priority, c.manager.CurrentTime)
}

// AddMachine registers a machine on the factory floor
func (c *Controller) AddMachine(spec sim.MachineSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factory.AddMachine(sim.NewMachine(spec))
}

// RemoveMachine removes a machine, returning its queued jobs to the
// backlog. It reports whether the machine existed.
func (c *Controller) RemoveMachine(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factory.RemoveMachine(name)
}

// AddProductionLine creates a line over existing machines, in order
func (c *Controller) AddProductionLine(name string, machineNames []string) (*sim.ProductionLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := sim.NewProductionLine(name)
	for i, machineName := range machineNames {
		m, ok := c.factory.Machine(machineName)
		if !ok {
			return nil, fmt.Errorf("machine %q: %w", machineName, sim.ErrMachineNotFound)
		}
		if err := line.AddMachine(m, i); err != nil {
			// Roll back partial attachment so the factory stays unchanged.
			for _, attached := range line.Machines() {
				line.RemoveMachine(attached)
			}
			return nil, fmt.Errorf("machine %q: %w", machineName, err)
		}
	}

	if err := c.factory.AddLine(line); err != nil {
		for _, attached := range line.Machines() {
			line.RemoveMachine(attached)
		}
		return nil, err
	}
	return line, nil
}

// RemoveProductionLine deletes a line and releases its machines
func (c *Controller) RemoveProductionLine(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factory.RemoveLine(id)
}

// CreateRoute defines a product route on a line
func (c *Controller) CreateRoute(lineID, product string, sequence []string, cycleTimes, setupTimes []float64) (*sim.ProductionRoute, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.factory.Line(lineID)
	if !ok {
		return nil, fmt.Errorf("line %q: %w", lineID, sim.ErrLineNotFound)
	}
	return line.CreateRoute(product, sequence, cycleTimes, setupTimes)
}

// PendingJobs returns value snapshots of jobs still in the backlog
func (c *Controller) PendingJobs() []sim.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyJobs(c.factory.PendingJobs())
}

// CompletedJobs returns value snapshots of jobs that finished routing
func (c *Controller) CompletedJobs() []sim.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyJobs(c.factory.CompletedJobs())
}

func copyJobs(jobs []*sim.Job) []sim.Job {
	out := make([]sim.Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, *job)
	}
	return out
}

// FactorySummary returns the factory overview at the current time
func (c *Controller) FactorySummary() sim.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factory.Summarize(c.manager.CurrentTime)
}

// RunSummary returns the run overview
func (c *Controller) RunSummary() sim.RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.Summarize()
}

// MachineStatus returns one machine's snapshot
func (c *Controller) MachineStatus(name string) (sim.MachineStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.factory.Machine(name)
	if !ok {
		return sim.MachineStatus{}, fmt.Errorf("machine %q: %w", name, sim.ErrMachineNotFound)
	}
	return m.Status(), nil
}

// MachineStatuses returns snapshots for every machine in insertion
// order
func (c *Controller) MachineStatuses() []sim.MachineStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	machines := c.factory.Machines()
	statuses := make([]sim.MachineStatus, 0, len(machines))
	for _, m := range machines {
		statuses = append(statuses, m.Status())
	}
	return statuses
}

// LatestMetrics returns the most recent sample at the current time
func (c *Controller) LatestMetrics() sim.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.LatestMetrics()
}

// History returns the sampled time series
func (c *Controller) History() sim.Series {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.History()
}

// Bottlenecks returns the severity-ranked bottleneck reports
func (c *Controller) Bottlenecks() []sim.BottleneckReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzer.AnalyzeBottlenecks()
}

// Suggestions returns textual improvement advice
func (c *Controller) Suggestions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzer.Suggestions()
}

// OEE returns one machine's equipment-effectiveness breakdown
func (c *Controller) OEE(name string) (sim.OEEReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzer.CalculateOEE(name)
}

// EfficiencyRanking returns machines ordered by OEE, best first
func (c *Controller) EfficiencyRanking() []sim.OEEReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzer.EfficiencyRanking()
}

// Inefficiencies returns machines grouped by the waste they exhibit
func (c *Controller) Inefficiencies() sim.Inefficiencies {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzer.DetectInefficiencies()
}

// LineSummaries returns overviews of every production line
func (c *Controller) LineSummaries() []sim.LineSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := c.factory.Lines()
	summaries := make([]sim.LineSummary, 0, len(lines))
	for _, line := range lines {
		summaries = append(summaries, line.Summarize(c.manager.CurrentTime))
	}
	return summaries
}

// LineSummary returns one line's overview
func (c *Controller) LineSummary(id string) (sim.LineSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.factory.Line(id)
	if !ok {
		return sim.LineSummary{}, fmt.Errorf("line %q: %w", id, sim.ErrLineNotFound)
	}
	return line.Summarize(c.manager.CurrentTime), nil
}

// LineBalance returns balancing advice for one line
func (c *Controller) LineBalance(id string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.factory.Line(id)
	if !ok {
		return nil, fmt.Errorf("line %q: %w", id, sim.ErrLineNotFound)
	}
	return line.BalanceLine(), nil
}

// ExportLayouts returns the layout export data for every line
func (c *Controller) ExportLayouts() []sim.Layout {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := c.factory.Lines()
	layouts := make([]sim.Layout, 0, len(lines))
	for _, line := range lines {
		layouts = append(layouts, line.ExportLayout())
	}
	return layouts
}

// RunID returns the identifier of the current run, or "" when stopped
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}
