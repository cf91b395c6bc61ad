package sim

import (
	"fmt"
	"math/rand"
	"sort"
)

// Factory owns the machine registry, production lines, the backlog of
// jobs waiting to be routed, and the completed-job list. Every job ever
// created lives in exactly one place: a machine queue, a machine's job
// in service, the backlog, or the completed list.
//
// A Factory is not safe for concurrent use; callers serialize access
// through the controller that owns the stepping loop.
type Factory struct {
	machines map[string]*Machine
	names    []string // insertion order, for deterministic iteration
	lines    map[string]*ProductionLine
	lineIDs  []string

	jobs      []*Job // unrouted backlog
	completed []*Job

	jobCounter int
	params     Params
	rng        *rand.Rand

	wipCache   int
	wipCacheAt float64
	wipCached  bool
}

// NewFactory creates an empty factory sharing one parameter set and
// random source across all machines.
func NewFactory(params Params, rng *rand.Rand) *Factory {
	if params.BufferCapacity <= 0 {
		params.BufferCapacity = DefaultBufferCapacity
	}
	return &Factory{
		machines: make(map[string]*Machine),
		lines:    make(map[string]*ProductionLine),
		params:   params,
		rng:      rng,
	}
}

// Params returns the factory-wide parameter set.
func (f *Factory) Params() Params {
	return f.params
}

// AddMachine registers a machine. Duplicate names and non-positive base
// times are rejected without mutation.
func (f *Factory) AddMachine(m *Machine) error {
	if m.BaseTime <= 0 {
		return fmt.Errorf("machine %q: %w", m.Name, ErrInvalidCycleTime)
	}
	if _, exists := f.machines[m.Name]; exists {
		return fmt.Errorf("machine %q: %w", m.Name, ErrDuplicateMachine)
	}
	m.attach(f.params, f.rng)
	f.machines[m.Name] = m
	f.names = append(f.names, m.Name)
	f.invalidateWIP()
	return nil
}

// RemoveMachine unregisters a machine, detaches it from any production
// line, and returns its queued and in-service jobs to the backlog so no
// job is lost.
func (f *Factory) RemoveMachine(name string) bool {
	m, ok := f.machines[name]
	if !ok {
		return false
	}
	if m.lineID != "" {
		if line, ok := f.lines[m.lineID]; ok {
			line.RemoveMachine(m)
		}
	}
	f.jobs = append(f.jobs, m.drainQueue()...)
	delete(f.machines, name)
	for i, n := range f.names {
		if n == name {
			f.names = append(f.names[:i], f.names[i+1:]...)
			break
		}
	}
	f.invalidateWIP()
	return true
}

// Machine resolves a machine by name.
func (f *Factory) Machine(name string) (*Machine, bool) {
	m, ok := f.machines[name]
	return m, ok
}

// Machines returns the machines in registration order.
func (f *Factory) Machines() []*Machine {
	out := make([]*Machine, 0, len(f.names))
	for _, name := range f.names {
		out = append(out, f.machines[name])
	}
	return out
}

// MachineCount reports the number of registered machines.
func (f *Factory) MachineCount() int {
	return len(f.machines)
}

// AddLine registers a production line. Machines are attached to the
// line separately via ProductionLine.AddMachine, which enforces single
// ownership.
func (f *Factory) AddLine(line *ProductionLine) error {
	if _, exists := f.lines[line.ID]; exists {
		return fmt.Errorf("line %q: already registered", line.ID)
	}
	f.lines[line.ID] = line
	f.lineIDs = append(f.lineIDs, line.ID)
	return nil
}

// RemoveLine unregisters a production line and releases its machines.
func (f *Factory) RemoveLine(id string) bool {
	line, ok := f.lines[id]
	if !ok {
		return false
	}
	for _, m := range line.Machines() {
		line.RemoveMachine(m)
	}
	delete(f.lines, id)
	for i, lid := range f.lineIDs {
		if lid == id {
			f.lineIDs = append(f.lineIDs[:i], f.lineIDs[i+1:]...)
			break
		}
	}
	return true
}

// Line resolves a production line by id.
func (f *Factory) Line(id string) (*ProductionLine, bool) {
	line, ok := f.lines[id]
	return line, ok
}

// Lines returns the production lines in registration order.
func (f *Factory) Lines() []*ProductionLine {
	out := make([]*ProductionLine, 0, len(f.lineIDs))
	for _, id := range f.lineIDs {
		out = append(out, f.lines[id])
	}
	return out
}

// ValidateSequence reports whether every machine name in the sequence
// is registered.
func (f *Factory) ValidateSequence(sequence []string) bool {
	for _, name := range sequence {
		if _, ok := f.machines[name]; !ok {
			return false
		}
	}
	return true
}

// CreateJob allocates the next job id, stamps the arrival time, and
// places the job in the unrouted backlog. The sequence is validated
// up front so a bad request leaves no partial state behind.
func (f *Factory) CreateJob(batchSize int, sequence []string, priority Priority, now float64) (*Job, error) {
	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if len(sequence) == 0 {
		return nil, ErrEmptySequence
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}
	for _, name := range sequence {
		if _, ok := f.machines[name]; !ok {
			return nil, fmt.Errorf("sequence step %q: %w", name, ErrMachineNotFound)
		}
	}

	f.jobCounter++
	job := &Job{
		ID:               f.jobCounter,
		BatchSize:        batchSize,
		ArrivalTime:      now,
		RequiredMachines: append([]string(nil), sequence...),
		Priority:         priority,
	}
	f.jobs = append(f.jobs, job)
	f.invalidateWIP()
	return job, nil
}

// RouteJob delivers a job to the machine its current step requires,
// removing it from the backlog on success. An idle machine picks the
// job up in the same tick; machines owned by a production line are fed
// through the line's flow simulation. Returns false when the target is
// unknown or its queue is full; the job then stays in the backlog for
// retry on a later tick.
func (f *Factory) RouteJob(job *Job, now float64) bool {
	name := job.NextMachine()
	if name == "" {
		return false
	}
	m, ok := f.machines[name]
	if !ok {
		return false
	}

	var accepted bool
	if m.lineID != "" {
		if line, ok := f.lines[m.lineID]; ok {
			accepted = line.SimulateFlow(m, job, now)
		}
	} else {
		idle := !m.Working && !m.Down && m.QueueLength() == 0
		accepted = m.AddJob(job)
		if accepted && idle {
			m.StartProcessing(now)
		}
	}
	if !accepted {
		return false
	}

	f.removeFromBacklog(job)
	f.invalidateWIP()
	return true
}

// ProcessCompletedJob advances a job that just left a machine. Jobs
// with remaining steps are re-routed; when the next queue is full they
// return to the backlog and are retried every tick — deferred, never
// dropped. Finished jobs move to the completed list.
func (f *Factory) ProcessCompletedJob(job *Job, now float64) {
	job.AdvanceStep()
	if job.NextMachine() != "" {
		if !f.RouteJob(job, now) {
			f.jobs = append(f.jobs, job)
			f.invalidateWIP()
		}
		return
	}
	f.completed = append(f.completed, job)
	f.removeFromBacklog(job)
	f.invalidateWIP()
}

func (f *Factory) removeFromBacklog(job *Job) {
	for i, queued := range f.jobs {
		if queued == job {
			f.jobs = append(f.jobs[:i], f.jobs[i+1:]...)
			return
		}
	}
}

// PendingJobs returns the unrouted backlog.
func (f *Factory) PendingJobs() []*Job {
	out := make([]*Job, len(f.jobs))
	copy(out, f.jobs)
	return out
}

// CompletedJobs returns the jobs that have finished every step.
func (f *Factory) CompletedJobs() []*Job {
	out := make([]*Job, len(f.completed))
	copy(out, f.completed)
	return out
}

// TotalWIP counts work in process: queued jobs, jobs in service, and
// the unrouted backlog. Cached per simulated time value to bound
// recomputation under frequent polling.
func (f *Factory) TotalWIP(now float64) int {
	if f.wipCached && f.wipCacheAt == now {
		return f.wipCache
	}
	wip := len(f.jobs)
	for _, name := range f.names {
		m := f.machines[name]
		wip += m.QueueLength()
		if m.Working {
			wip++
		}
	}
	f.wipCache = wip
	f.wipCacheAt = now
	f.wipCached = true
	return wip
}

func (f *Factory) invalidateWIP() {
	f.wipCached = false
}

// AverageUtilization is the mean machine utilization over totalTime.
func (f *Factory) AverageUtilization(totalTime float64) float64 {
	if len(f.machines) == 0 {
		return 0
	}
	var sum float64
	for _, name := range f.names {
		sum += f.machines[name].Utilization(totalTime)
	}
	return sum / float64(len(f.machines))
}

// TotalThroughput is the summed machine throughput over totalTime, in
// pieces per simulated minute.
func (f *Factory) TotalThroughput(totalTime float64) float64 {
	var sum float64
	for _, name := range f.names {
		sum += f.machines[name].Throughput(totalTime)
	}
	return sum
}

// BottleneckMachines returns the machines with the strictly maximal
// queue length, or nothing when every queue is empty.
func (f *Factory) BottleneckMachines() []*Machine {
	maxQueue := 0
	for _, name := range f.names {
		if q := f.machines[name].QueueLength(); q > maxQueue {
			maxQueue = q
		}
	}
	if maxQueue == 0 {
		return nil
	}
	var out []*Machine
	for _, name := range f.names {
		if m := f.machines[name]; m.QueueLength() == maxQueue {
			out = append(out, m)
		}
	}
	return out
}

// IdleMachines returns machines that are neither working nor have
// queued jobs.
func (f *Factory) IdleMachines() []*Machine {
	var out []*Machine
	for _, name := range f.names {
		if m := f.machines[name]; !m.Working && m.QueueLength() == 0 {
			out = append(out, m)
		}
	}
	return out
}

// MachineTypes returns the distinct machine categories, sorted.
func (f *Factory) MachineTypes() []string {
	seen := make(map[string]struct{})
	for _, name := range f.names {
		seen[f.machines[name].Type] = struct{}{}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// MachinesByType returns the machines of one category in registration
// order.
func (f *Factory) MachinesByType(machineType string) []*Machine {
	var out []*Machine
	for _, name := range f.names {
		if m := f.machines[name]; m.Type == machineType {
			out = append(out, m)
		}
	}
	return out
}

// Summary is the plain-data factory overview exposed to callers.
type Summary struct {
	TotalMachines int      `json:"total_machines"`
	ActiveJobs    int      `json:"active_jobs"`
	CompletedJobs int      `json:"completed_jobs"`
	TotalWIP      int      `json:"total_wip"`
	MachineTypes  []string `json:"machine_types"`
	Bottlenecks   []string `json:"bottlenecks"`
	IdleMachines  []string `json:"idle_machines"`
	Lines         int      `json:"lines"`
}

// Summarize builds the factory overview at the given simulated time.
func (f *Factory) Summarize(now float64) Summary {
	s := Summary{
		TotalMachines: len(f.machines),
		ActiveJobs:    len(f.jobs),
		CompletedJobs: len(f.completed),
		TotalWIP:      f.TotalWIP(now),
		MachineTypes:  f.MachineTypes(),
		Lines:         len(f.lines),
	}
	for _, m := range f.BottleneckMachines() {
		s.Bottlenecks = append(s.Bottlenecks, m.Name)
	}
	for _, m := range f.IdleMachines() {
		s.IdleMachines = append(s.IdleMachines, m.Name)
	}
	return s
}

// Reset clears all jobs and statistics. Machines and lines keep their
// configuration; the id counter restarts from zero for the fresh run.
func (f *Factory) Reset() {
	f.jobs = nil
	f.completed = nil
	f.jobCounter = 0
	for _, name := range f.names {
		f.machines[name].ResetStats()
	}
	f.invalidateWIP()
}
