package sim

// Priority controls head-of-line preference in machine queues.
type Priority int

const (
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// String returns a human-readable priority label.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Valid reports whether p is one of the defined priority levels.
func (p Priority) Valid() bool {
	return p >= PriorityNormal && p <= PriorityCritical
}

// Job is a unit of production work flowing through the factory.
// Identity and routing are fixed at creation; progress, quality flags
// and cost fields are mutated by machines as the job is processed.
// All timestamps are in simulated minutes.
type Job struct {
	ID               int
	BatchSize        int
	ArrivalTime      float64
	RequiredMachines []string
	CurrentStep      int
	Priority         Priority

	StartTime      float64
	Started        bool
	CompletionTime float64
	Completed      bool

	// Quality tracking
	IsDefective bool
	NeedsRework bool
	ReworkCount int

	// Cost tracking
	MaterialCost   float64
	ProcessingCost float64
	TotalCost      float64
}

// PriorityWeight maps the priority level to a scheduling weight.
func (j *Job) PriorityWeight() float64 {
	switch j.Priority {
	case PriorityHigh:
		return 1.5
	case PriorityCritical:
		return 2.0
	default:
		return 1.0
	}
}

// NextMachine returns the name of the machine required for the current
// step, or "" when all steps are done.
func (j *Job) NextMachine() string {
	if j.CurrentStep < len(j.RequiredMachines) {
		return j.RequiredMachines[j.CurrentStep]
	}
	return ""
}

// AdvanceStep moves the job to its next routing step. It returns false
// when the job has already passed its final step.
func (j *Job) AdvanceStep() bool {
	if j.CurrentStep < len(j.RequiredMachines) {
		j.CurrentStep++
		return true
	}
	return false
}

// ProcessingTime is the span between first start and last completion,
// zero while either timestamp is unset.
func (j *Job) ProcessingTime() float64 {
	if j.Started && j.Completed {
		return j.CompletionTime - j.StartTime
	}
	return 0
}

// ProgressPercent reports routing progress as a percentage of steps done.
func (j *Job) ProgressPercent() float64 {
	if len(j.RequiredMachines) == 0 {
		return 0
	}
	return float64(j.CurrentStep) / float64(len(j.RequiredMachines)) * 100
}
