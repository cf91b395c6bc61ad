package sim

import (
	"math/rand"
)

// MachineSpec describes a machine to be added to a factory.
type MachineSpec struct {
	Name      string
	Type      string
	BaseTime  float64 // minutes per piece
	SetupTime float64 // minutes per batch
	Capacity  int     // queue bound, 0 means the factory default
}

// Machine is a finite-state processing unit with a bounded priority
// queue. It is either idle, working on exactly one job, or down; a
// machine is never down and working at the same time — a breakdown
// suspends progress on the job in service until the repair finishes.
//
// Machines are not safe for concurrent use; all mutation happens on
// the simulation stepping goroutine.
type Machine struct {
	Name      string
	Type      string
	BaseTime  float64
	SetupTime float64
	Capacity  int

	queue      []*Job
	CurrentJob *Job
	Working    bool
	Down       bool

	workStart float64
	workEnd   float64
	downStart float64
	downUntil float64

	lastUpdate float64

	// Cumulative counters, reset only by ResetStats.
	TotalWorkingTime float64
	TotalOutput      int
	TotalDefects     int
	TotalRework      int
	TotalDowntime    float64

	MaterialCost   float64
	ProcessingCost float64
	DefectCost     float64

	// QualityScore is good output over total output as a percentage,
	// 100 until the first piece is produced.
	QualityScore float64

	params Params
	rng    *rand.Rand
	lineID string

	// Derived-metric cache, keyed by the simulated total-time value the
	// caller passed in so replays at high speed never observe stale data.
	cachedAt          float64
	cachedUtilization float64
	cachedThroughput  float64
	cacheValid        bool
}

// NewMachine builds a machine from its spec. Quality, cost and queue
// parameters are attached when the machine joins a factory.
func NewMachine(spec MachineSpec) *Machine {
	capacity := spec.Capacity
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Machine{
		Name:         spec.Name,
		Type:         spec.Type,
		BaseTime:     spec.BaseTime,
		SetupTime:    spec.SetupTime,
		Capacity:     capacity,
		QualityScore: 100,
	}
}

// attach wires the factory-wide parameter set and random source into
// the machine. Called by Factory.AddMachine.
func (m *Machine) attach(params Params, rng *rand.Rand) {
	m.params = params
	m.rng = rng
	if m.Capacity <= 0 {
		m.Capacity = params.BufferCapacity
	}
}

// LineID returns the id of the owning production line, or "" when the
// machine is unassigned.
func (m *Machine) LineID() string {
	return m.lineID
}

// CycleTime is the per-piece processing time for a batch: base time
// plus setup amortized over the batch. For batch sizes <= 0 the full
// setup is charged (base + setup); see DESIGN.md for the rationale.
func (m *Machine) CycleTime(batchSize int) float64 {
	if batchSize <= 0 {
		return m.BaseTime + m.SetupTime
	}
	return m.BaseTime + m.SetupTime/float64(batchSize)
}

// AddJob inserts a job into the queue, keeping higher priorities ahead
// while preserving arrival order within a priority band. A job already
// in service is never preempted. Returns false without mutating the
// queue when the machine is at capacity.
func (m *Machine) AddJob(job *Job) bool {
	if len(m.queue) >= m.Capacity {
		return false
	}
	for i, queued := range m.queue {
		if job.Priority > queued.Priority {
			m.queue = append(m.queue, nil)
			copy(m.queue[i+1:], m.queue[i:])
			m.queue[i] = job
			return true
		}
	}
	m.queue = append(m.queue, job)
	return true
}

// StartProcessing pops the queue head and begins work on it. It is a
// no-op while the machine is already working, down, or has no queued
// jobs.
func (m *Machine) StartProcessing(now float64) bool {
	if m.Working || m.Down || len(m.queue) == 0 {
		return false
	}

	job := m.queue[0]
	m.queue = m.queue[1:]

	if !job.Started {
		job.StartTime = now
		job.Started = true
	}

	m.CurrentJob = job
	m.workStart = now
	m.workEnd = now + m.CycleTime(job.BatchSize)
	m.Working = true
	m.invalidateCache()
	return true
}

// Update is the single per-tick state transition: it may trigger a
// breakdown, recover from one, and complete the job in service. When a
// job finishes this tick it is returned to the caller for re-routing;
// otherwise Update returns nil.
func (m *Machine) Update(now float64) *Job {
	dt := now - m.lastUpdate
	if dt < 0 {
		dt = 0
	}
	m.lastUpdate = now

	m.maybeBreakDown(now, dt)

	if m.Down {
		if now >= m.downUntil {
			m.TotalDowntime += m.downUntil - m.downStart
			m.Down = false
		} else {
			return nil
		}
	}

	if m.Working && now >= m.workEnd {
		return m.complete(now)
	}
	return nil
}

// maybeBreakDown draws against the downtime rate scaled to this tick.
// A breakdown while working suspends the job in service: the deadline
// is pushed out by the repair duration so no processing time elapses
// while the machine is down.
func (m *Machine) maybeBreakDown(now, dt float64) {
	if m.Down || m.rng == nil || dt <= 0 {
		return
	}
	p := BreakdownProbability(m.params.Quality.DowntimeRate, dt)
	if p <= 0 || m.rng.Float64() >= p {
		return
	}

	mean := m.params.Quality.MeanDowntimeMinutes
	if mean <= 0 {
		mean = 1
	}
	duration := mean * (0.5 + m.rng.Float64())

	m.Down = true
	m.downStart = now
	m.downUntil = now + duration
	if m.Working {
		m.workEnd += duration
	}
	m.invalidateCache()
}

// complete finishes the job in service, applies the quality model and
// cost accounting, and frees the machine.
func (m *Machine) complete(now float64) *Job {
	job := m.CurrentJob
	job.CompletionTime = now
	job.Completed = true

	cycle := m.CycleTime(job.BatchSize)
	m.TotalWorkingTime += cycle

	switch {
	case m.drawQuality(m.params.Quality.DefectRate):
		// Defective batches are excluded from output entirely.
		job.IsDefective = true
		m.TotalDefects += job.BatchSize
		defect := m.params.Costs.DefectPerPiece * float64(job.BatchSize)
		m.DefectCost += defect
		job.TotalCost += defect
	case m.drawQuality(m.params.Quality.ReworkRate):
		// Rework still counts as output but takes half a cycle extra.
		job.NeedsRework = true
		job.ReworkCount++
		job.CompletionTime += cycle / 2
		m.TotalRework += job.BatchSize
		m.TotalOutput += job.BatchSize
	default:
		m.TotalOutput += job.BatchSize
	}

	material := m.params.Costs.MaterialPerPiece * float64(job.BatchSize)
	processing := m.params.Costs.MachinePerHour * cycle / 60
	m.MaterialCost += material
	m.ProcessingCost += processing
	job.MaterialCost += material
	job.ProcessingCost += processing
	job.TotalCost += material + processing

	m.recomputeQualityScore()

	m.CurrentJob = nil
	m.Working = false
	m.invalidateCache()
	return job
}

func (m *Machine) drawQuality(rate float64) bool {
	if rate <= 0 || m.rng == nil {
		return false
	}
	return m.rng.Float64() < rate
}

func (m *Machine) recomputeQualityScore() {
	total := m.TotalOutput + m.TotalDefects
	if total == 0 {
		m.QualityScore = 100
		return
	}
	m.QualityScore = float64(m.TotalOutput) / float64(total) * 100
}

// Utilization is the share of totalTime spent working, as a percentage
// capped at 100. Cached per simulated total-time value.
func (m *Machine) Utilization(totalTime float64) float64 {
	if m.cacheValid && m.cachedAt == totalTime {
		return m.cachedUtilization
	}
	m.refreshCache(totalTime)
	return m.cachedUtilization
}

// Throughput is output in pieces per simulated minute over totalTime.
// Cached per simulated total-time value.
func (m *Machine) Throughput(totalTime float64) float64 {
	if m.cacheValid && m.cachedAt == totalTime {
		return m.cachedThroughput
	}
	m.refreshCache(totalTime)
	return m.cachedThroughput
}

func (m *Machine) refreshCache(totalTime float64) {
	if totalTime <= 0 {
		m.cachedUtilization = 0
		m.cachedThroughput = 0
	} else {
		util := m.TotalWorkingTime / totalTime * 100
		if util > 100 {
			util = 100
		}
		m.cachedUtilization = util
		m.cachedThroughput = float64(m.TotalOutput) / totalTime
	}
	m.cachedAt = totalTime
	m.cacheValid = true
}

func (m *Machine) invalidateCache() {
	m.cacheValid = false
}

// Availability is the fraction of busy-or-down time that was not
// downtime, as a percentage. A machine that has neither worked nor
// failed is fully available.
func (m *Machine) Availability() float64 {
	elapsed := m.TotalWorkingTime + m.TotalDowntime
	if elapsed <= 0 {
		return 100
	}
	return m.TotalWorkingTime / elapsed * 100
}

// Performance compares actual throughput against the configured target
// (pieces per hour), capped at 100.
func (m *Machine) Performance(totalTime float64) float64 {
	if m.params.TargetThroughput <= 0 || totalTime <= 0 {
		return 0
	}
	actual := float64(m.TotalOutput) / totalTime * 60
	perf := actual / m.params.TargetThroughput * 100
	if perf > 100 {
		perf = 100
	}
	return perf
}

// OEE is availability x performance x quality, scaled back to a
// percentage.
func (m *Machine) OEE(totalTime float64) float64 {
	return m.Availability() * m.Performance(totalTime) * m.QualityScore / 10000
}

// QueueLength reports the number of queued jobs, excluding the job in
// service.
func (m *Machine) QueueLength() int {
	return len(m.queue)
}

// QueuedJobs returns a snapshot copy of the queue in dispatch order.
func (m *Machine) QueuedJobs() []*Job {
	out := make([]*Job, len(m.queue))
	copy(out, m.queue)
	return out
}

// drainQueue removes and returns every queued job plus the job in
// service, clearing the working state. Used when a machine is removed
// from the factory so its jobs can be re-routed instead of lost.
func (m *Machine) drainQueue() []*Job {
	drained := make([]*Job, 0, len(m.queue)+1)
	if m.CurrentJob != nil {
		drained = append(drained, m.CurrentJob)
		m.CurrentJob = nil
		m.Working = false
	}
	drained = append(drained, m.queue...)
	m.queue = nil
	m.invalidateCache()
	return drained
}

// ResetStats clears the cumulative counters and state without touching
// the machine's configuration.
func (m *Machine) ResetStats() {
	m.queue = nil
	m.CurrentJob = nil
	m.Working = false
	m.Down = false
	m.workStart = 0
	m.workEnd = 0
	m.downStart = 0
	m.downUntil = 0
	m.lastUpdate = 0
	m.TotalWorkingTime = 0
	m.TotalOutput = 0
	m.TotalDefects = 0
	m.TotalRework = 0
	m.TotalDowntime = 0
	m.MaterialCost = 0
	m.ProcessingCost = 0
	m.DefectCost = 0
	m.QualityScore = 100
	m.invalidateCache()
}

// MachineStatus is the plain-data snapshot exposed to callers outside
// the simulation loop.
type MachineStatus struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	BaseTime      float64 `json:"base_time"`
	SetupTime     float64 `json:"setup_time"`
	Capacity      int     `json:"capacity"`
	Working       bool    `json:"working"`
	Down          bool    `json:"down"`
	QueueLength   int     `json:"queue_length"`
	CurrentJobID  int     `json:"current_job_id,omitempty"`
	TotalOutput   int     `json:"total_output"`
	TotalDefects  int     `json:"total_defects"`
	TotalRework   int     `json:"total_rework"`
	TotalDowntime float64 `json:"total_downtime"`
	QualityScore  float64 `json:"quality_score"`
	LineID        string  `json:"line_id,omitempty"`
}

// Status returns the machine's snapshot.
func (m *Machine) Status() MachineStatus {
	status := MachineStatus{
		Name:          m.Name,
		Type:          m.Type,
		BaseTime:      m.BaseTime,
		SetupTime:     m.SetupTime,
		Capacity:      m.Capacity,
		Working:       m.Working,
		Down:          m.Down,
		QueueLength:   len(m.queue),
		TotalOutput:   m.TotalOutput,
		TotalDefects:  m.TotalDefects,
		TotalRework:   m.TotalRework,
		TotalDowntime: m.TotalDowntime,
		QualityScore:  m.QualityScore,
		LineID:        m.lineID,
	}
	if m.CurrentJob != nil {
		status.CurrentJobID = m.CurrentJob.ID
	}
	return status
}
