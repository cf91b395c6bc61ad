package sim

import "time"

const (
	// DefaultHistorySize bounds the statistics ring buffers.
	DefaultHistorySize = 200

	// DefaultSampleInterval is the simulated-minute gap between
	// statistics samples.
	DefaultSampleInterval = 0.5

	minSpeedFactor = 0.1
	maxSpeedFactor = 10.0
)

// Sample is one statistics observation.
type Sample struct {
	Time        float64 `json:"time"`
	Throughput  float64 `json:"throughput"`
	Utilization float64 `json:"utilization"`
	WIP         int     `json:"wip"`
}

// history is a fixed-capacity ring of samples; the oldest sample is
// evicted first.
type history struct {
	capacity int
	samples  []Sample
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &history{capacity: capacity}
}

func (h *history) append(s Sample) {
	if len(h.samples) == h.capacity {
		copy(h.samples, h.samples[1:])
		h.samples[len(h.samples)-1] = s
		return
	}
	h.samples = append(h.samples, s)
}

func (h *history) clear() {
	h.samples = h.samples[:0]
}

func (h *history) latest() (Sample, bool) {
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Series is the time-series view of the history buffers.
type Series struct {
	Times       []float64 `json:"times"`
	Throughput  []float64 `json:"throughput"`
	Utilization []float64 `json:"utilization"`
	WIP         []int     `json:"wip"`
}

// Manager owns the simulated clock and drives per-tick updates across
// the factory. Lifecycle: Stopped -> Running -> {Paused <-> Running}
// -> Stopped; a fresh Start always begins at time zero with cleared
// history, while Stop leaves accumulated history readable.
type Manager struct {
	factory *Factory

	CurrentTime float64
	speedFactor float64
	running     bool
	paused      bool

	stepCount      int
	sampleInterval float64
	lastSample     float64
	history        *history

	startWall time.Time
}

// NewManager creates a stopped manager over the factory.
func NewManager(factory *Factory, historySize int, sampleInterval float64) *Manager {
	if sampleInterval <= 0 {
		sampleInterval = DefaultSampleInterval
	}
	return &Manager{
		factory:        factory,
		speedFactor:    1.0,
		sampleInterval: sampleInterval,
		history:        newHistory(historySize),
	}
}

// Factory returns the managed factory.
func (m *Manager) Factory() *Factory {
	return m.factory
}

// Start begins a fresh run at simulated time zero with empty history.
func (m *Manager) Start() {
	m.running = true
	m.paused = false
	m.CurrentTime = 0
	m.stepCount = 0
	m.lastSample = 0
	m.startWall = time.Now()
	m.history.clear()
}

// Pause suspends stepping. Idempotent; accumulated state is untouched.
func (m *Manager) Pause() {
	m.paused = true
}

// Resume lifts a pause. Idempotent.
func (m *Manager) Resume() {
	m.paused = false
}

// Stop ends the run. History buffers stay readable until the next
// Start or Reset.
func (m *Manager) Stop() {
	m.running = false
	m.paused = false
}

// Running reports whether a run is active (paused or not).
func (m *Manager) Running() bool {
	return m.running
}

// Paused reports whether stepping is suspended.
func (m *Manager) Paused() bool {
	return m.paused
}

// SetSpeed sets the simulated-time multiplier, clamped to [0.1, 10].
func (m *Manager) SetSpeed(factor float64) {
	if factor < minSpeedFactor {
		factor = minSpeedFactor
	}
	if factor > maxSpeedFactor {
		factor = maxSpeedFactor
	}
	m.speedFactor = factor
}

// Speed returns the current speed factor.
func (m *Manager) Speed() float64 {
	return m.speedFactor
}

// Step advances the simulation by dt (wall seconds-equivalent units)
// scaled by the speed factor. No-op unless running and not paused.
// One tick: update every machine, hand completed jobs back to the
// factory for re-routing, start newly eligible work, retry the
// unrouted backlog, and sample statistics every half simulated minute.
func (m *Manager) Step(dt float64) bool {
	if !m.running || m.paused {
		return false
	}

	m.CurrentTime += dt * m.speedFactor
	m.stepCount++

	machines := m.factory.Machines()

	var completed []*Job
	for _, machine := range machines {
		if job := machine.Update(m.CurrentTime); job != nil {
			completed = append(completed, job)
		}
	}

	for _, job := range completed {
		m.factory.ProcessCompletedJob(job, m.CurrentTime)
	}

	for _, machine := range machines {
		machine.StartProcessing(m.CurrentTime)
	}

	for _, job := range m.factory.PendingJobs() {
		m.factory.RouteJob(job, m.CurrentTime)
	}

	if m.CurrentTime-m.lastSample >= m.sampleInterval {
		m.recordStatistics()
		m.lastSample = m.CurrentTime
	}
	return true
}

func (m *Manager) recordStatistics() {
	m.history.append(Sample{
		Time:        m.CurrentTime,
		Throughput:  m.factory.TotalThroughput(m.CurrentTime),
		Utilization: m.factory.AverageUtilization(m.CurrentTime),
		WIP:         m.factory.TotalWIP(m.CurrentTime),
	})
}

// History returns the sampled time series as parallel arrays.
func (m *Manager) History() Series {
	s := Series{
		Times:       make([]float64, 0, len(m.history.samples)),
		Throughput:  make([]float64, 0, len(m.history.samples)),
		Utilization: make([]float64, 0, len(m.history.samples)),
		WIP:         make([]int, 0, len(m.history.samples)),
	}
	for _, sample := range m.history.samples {
		s.Times = append(s.Times, sample.Time)
		s.Throughput = append(s.Throughput, sample.Throughput)
		s.Utilization = append(s.Utilization, sample.Utilization)
		s.WIP = append(s.WIP, sample.WIP)
	}
	return s
}

// Samples returns a copy of the raw history samples.
func (m *Manager) Samples() []Sample {
	out := make([]Sample, len(m.history.samples))
	copy(out, m.history.samples)
	return out
}

// LatestMetrics returns the most recent sample, falling back to live
// time with zeroed metrics before the first sample lands.
func (m *Manager) LatestMetrics() Sample {
	if latest, ok := m.history.latest(); ok {
		latest.Time = m.CurrentTime
		return latest
	}
	return Sample{Time: m.CurrentTime}
}

// RunSummary is the plain-data run overview exposed to callers.
type RunSummary struct {
	SimulationTime float64 `json:"simulation_time"`
	RealElapsed    float64 `json:"real_time_elapsed"`
	SpeedFactor    float64 `json:"speed_factor"`
	StepCount      int     `json:"step_count"`
	Running        bool    `json:"running"`
	Paused         bool    `json:"paused"`
	DataPoints     int     `json:"data_points"`
}

// Summarize builds the run overview.
func (m *Manager) Summarize() RunSummary {
	var elapsed float64
	if !m.startWall.IsZero() {
		elapsed = time.Since(m.startWall).Seconds()
	}
	return RunSummary{
		SimulationTime: m.CurrentTime,
		RealElapsed:    elapsed,
		SpeedFactor:    m.speedFactor,
		StepCount:      m.stepCount,
		Running:        m.running,
		Paused:         m.paused,
		DataPoints:     len(m.history.samples),
	}
}

// Reset stops the run and clears simulated time, history, and all
// factory jobs and statistics.
func (m *Manager) Reset() {
	m.Stop()
	m.CurrentTime = 0
	m.stepCount = 0
	m.lastSample = 0
	m.startWall = time.Time{}
	m.history.clear()
	m.factory.Reset()
}
