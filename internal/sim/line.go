package sim

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ProductionStep is one station in a production route.
type ProductionStep struct {
	MachineName  string  `json:"machine_name"`
	StepNumber   int     `json:"step_number"`
	CycleTime    float64 `json:"cycle_time"`
	SetupTime    float64 `json:"setup_time"`
	QualityCheck bool    `json:"quality_check"`
}

// ProductionRoute binds a product to an ordered list of steps.
type ProductionRoute struct {
	ProductName    string           `json:"product_name"`
	Steps          []ProductionStep `json:"steps"`
	TotalCycleTime float64          `json:"total_cycle_time"`
}

// BottleneckStep returns the slowest step of the route, or nil for an
// empty route.
func (r *ProductionRoute) BottleneckStep() *ProductionStep {
	if len(r.Steps) == 0 {
		return nil
	}
	slowest := &r.Steps[0]
	for i := range r.Steps[1:] {
		if r.Steps[i+1].CycleTime > slowest.CycleTime {
			slowest = &r.Steps[i+1]
		}
	}
	return slowest
}

func (r *ProductionRoute) recomputeTotal() {
	r.TotalCycleTime = 0
	for _, step := range r.Steps {
		r.TotalCycleTime += step.CycleTime
	}
}

// ProductionLine groups an ordered subset of factory machines into an
// analyzable flow with named product routes. Layout fields only feed
// external exports and have no effect on simulation behavior.
type ProductionLine struct {
	ID   string
	Name string

	machines []*Machine
	routes   map[string]*ProductionRoute

	TaktTime float64

	// Layout, data only.
	Direction string
	Spacing   int
}

// NewProductionLine creates an empty line with a generated id.
func NewProductionLine(name string) *ProductionLine {
	return &ProductionLine{
		ID:        uuid.New().String(),
		Name:      name,
		routes:    make(map[string]*ProductionRoute),
		Direction: "horizontal",
		Spacing:   200,
	}
}

// AddMachine appends a machine to the line (or inserts at position when
// 0 <= position < len). A machine belongs to at most one line; attaching
// an owned machine is rejected so routing stays unambiguous.
func (l *ProductionLine) AddMachine(m *Machine, position int) error {
	if m.lineID != "" && m.lineID != l.ID {
		return fmt.Errorf("machine %q: %w", m.Name, ErrMachineOwnedByLine)
	}
	for _, existing := range l.machines {
		if existing == m {
			return nil
		}
	}
	if position >= 0 && position < len(l.machines) {
		l.machines = append(l.machines, nil)
		copy(l.machines[position+1:], l.machines[position:])
		l.machines[position] = m
	} else {
		l.machines = append(l.machines, m)
	}
	m.lineID = l.ID
	return nil
}

// RemoveMachine detaches a machine from the line.
func (l *ProductionLine) RemoveMachine(m *Machine) {
	for i, existing := range l.machines {
		if existing == m {
			l.machines = append(l.machines[:i], l.machines[i+1:]...)
			m.lineID = ""
			return
		}
	}
}

// Machines returns the line's stations in flow order.
func (l *ProductionLine) Machines() []*Machine {
	out := make([]*Machine, len(l.machines))
	copy(out, l.machines)
	return out
}

// CreateRoute builds a product route from parallel machine/cycle/setup
// sequences. Steps referencing machines not present in the line are
// skipped; verifying membership up front is the caller's job. The
// quality check lands on the route's final step.
func (l *ProductionLine) CreateRoute(product string, sequence []string, cycleTimes, setupTimes []float64) (*ProductionRoute, error) {
	if len(sequence) != len(cycleTimes) {
		return nil, ErrRouteMismatch
	}
	if setupTimes == nil {
		setupTimes = make([]float64, len(sequence))
	}
	if len(setupTimes) != len(sequence) {
		return nil, ErrRouteMismatch
	}

	route := &ProductionRoute{ProductName: product}
	for i, name := range sequence {
		if l.machineByName(name) == nil {
			continue
		}
		route.Steps = append(route.Steps, ProductionStep{
			MachineName:  name,
			StepNumber:   i + 1,
			CycleTime:    cycleTimes[i],
			SetupTime:    setupTimes[i],
			QualityCheck: i == len(sequence)-1,
		})
	}
	route.recomputeTotal()
	l.routes[product] = route
	return route, nil
}

// Route resolves a product route by name.
func (l *ProductionLine) Route(product string) (*ProductionRoute, bool) {
	r, ok := l.routes[product]
	return r, ok
}

// Routes returns all product routes on the line.
func (l *ProductionLine) Routes() map[string]*ProductionRoute {
	out := make(map[string]*ProductionRoute, len(l.routes))
	for name, r := range l.routes {
		out[name] = r
	}
	return out
}

func (l *ProductionLine) machineByName(name string) *Machine {
	for _, m := range l.machines {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// CalculateTaktTime derives the takt time (minutes per piece) from a
// customer demand rate in pieces per hour.
func (l *ProductionLine) CalculateTaktTime(demandPerHour float64) float64 {
	if demandPerHour > 0 {
		l.TaktTime = 60 / demandPerHour
	} else {
		l.TaktTime = 0
	}
	return l.TaktTime
}

// AnalyzeBottleneck flags constraint stations with relative thresholds:
// a machine is a bottleneck when its base cycle time reaches 90% of the
// slowest cycle on the line (route steps and machine base times both
// count), or its queue reaches 80% of the longest queue. Relative
// thresholds mean a lightly loaded line still surfaces its constraint
// resource.
func (l *ProductionLine) AnalyzeBottleneck() []*Machine {
	if len(l.machines) == 0 {
		return nil
	}

	var maxCycle float64
	for _, route := range l.routes {
		for _, step := range route.Steps {
			if step.CycleTime > maxCycle {
				maxCycle = step.CycleTime
			}
		}
	}
	for _, m := range l.machines {
		if m.BaseTime > maxCycle {
			maxCycle = m.BaseTime
		}
	}

	maxQueue := 0
	for _, m := range l.machines {
		if q := m.QueueLength(); q > maxQueue {
			maxQueue = q
		}
	}

	var bottlenecks []*Machine
	for _, m := range l.machines {
		cycleBound := maxCycle > 0 && m.BaseTime >= maxCycle*0.9
		queueBound := maxQueue > 0 && float64(m.QueueLength()) >= float64(maxQueue)*0.8
		if cycleBound || queueBound {
			bottlenecks = append(bottlenecks, m)
		}
	}
	return bottlenecks
}

// LineEfficiency is the mean station utilization over totalTime minus
// a flat 5-point penalty per detected bottleneck, floored at zero.
func (l *ProductionLine) LineEfficiency(totalTime float64) float64 {
	if len(l.machines) == 0 {
		return 0
	}
	var sum float64
	for _, m := range l.machines {
		sum += m.Utilization(totalTime)
	}
	efficiency := sum/float64(len(l.machines)) - float64(len(l.AnalyzeBottleneck()))*5
	if efficiency < 0 {
		return 0
	}
	return efficiency
}

// Throughput is the minimum per-station throughput over the period —
// a flow line moves only as fast as its slowest active station.
func (l *ProductionLine) Throughput(timePeriod float64) float64 {
	if len(l.machines) == 0 {
		return 0
	}
	minThroughput := math.Inf(1)
	for _, m := range l.machines {
		if t := m.Throughput(timePeriod); t < minThroughput {
			minThroughput = t
		}
	}
	if math.IsInf(minThroughput, 1) {
		return 0
	}
	return minThroughput
}

// BalanceLine produces textual rebalancing suggestions: stations more
// than 20% off the mean base time are split or merge candidates, and
// any station slower than the takt time needs urgent attention.
func (l *ProductionLine) BalanceLine() []string {
	var suggestions []string
	if len(l.machines) == 0 {
		return suggestions
	}

	var sum float64
	for _, m := range l.machines {
		sum += m.BaseTime
	}
	mean := sum / float64(len(l.machines))

	for _, m := range l.machines {
		if mean <= 0 {
			break
		}
		deviation := math.Abs(m.BaseTime-mean) / mean * 100
		if deviation > 20 {
			if m.BaseTime > mean {
				suggestions = append(suggestions, fmt.Sprintf("Consider splitting %s operation or adding a parallel machine", m.Name))
			} else {
				suggestions = append(suggestions, fmt.Sprintf("Consider combining %s with an adjacent operation", m.Name))
			}
		}
	}

	if l.TaktTime > 0 {
		for _, m := range l.machines {
			if m.BaseTime > l.TaktTime {
				suggestions = append(suggestions, fmt.Sprintf("%s cycle time exceeds takt time - urgent optimization needed", m.Name))
			}
		}
	}
	return suggestions
}

// SimulateFlow feeds a job to a station on this line: the job is
// queued, and an idle station starts it in the same tick. Returns false
// when the station's queue is full.
func (l *ProductionLine) SimulateFlow(m *Machine, job *Job, now float64) bool {
	idle := !m.Working && !m.Down && m.QueueLength() == 0
	if !m.AddJob(job) {
		return false
	}
	if idle {
		m.StartProcessing(now)
	}
	return true
}

// LineSummary is the plain-data line overview exposed to callers.
type LineSummary struct {
	ID          string   `json:"line_id"`
	Name        string   `json:"name"`
	Machines    int      `json:"machine_count"`
	Routes      int      `json:"routes_count"`
	Efficiency  float64  `json:"efficiency"`
	Throughput  float64  `json:"throughput"`
	TaktTime    float64  `json:"takt_time"`
	Bottlenecks []string `json:"bottlenecks"`
	TotalWIP    int      `json:"total_wip"`
	Direction   string   `json:"direction"`
}

// Summarize builds the line overview at the given simulated time.
func (l *ProductionLine) Summarize(totalTime float64) LineSummary {
	s := LineSummary{
		ID:         l.ID,
		Name:       l.Name,
		Machines:   len(l.machines),
		Routes:     len(l.routes),
		Efficiency: l.LineEfficiency(totalTime),
		Throughput: l.Throughput(totalTime),
		TaktTime:   l.TaktTime,
		Direction:  l.Direction,
	}
	for _, m := range l.AnalyzeBottleneck() {
		s.Bottlenecks = append(s.Bottlenecks, m.Name)
	}
	for _, m := range l.machines {
		s.TotalWIP += m.QueueLength()
	}
	return s
}

// LayoutMachine is one station in a layout export.
type LayoutMachine struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	BaseTime  float64 `json:"base_time"`
	SetupTime float64 `json:"setup_time"`
}

// Layout is the plain-data line layout handed to external exporters.
type Layout struct {
	ID        string                      `json:"line_id"`
	Name      string                      `json:"name"`
	Direction string                      `json:"direction"`
	Spacing   int                         `json:"spacing"`
	Machines  []LayoutMachine             `json:"machines"`
	Routes    map[string]*ProductionRoute `json:"routes"`
}

// ExportLayout builds the layout export for this line. The core hands
// out plain data; serialization and file I/O belong to the caller.
func (l *ProductionLine) ExportLayout() Layout {
	layout := Layout{
		ID:        l.ID,
		Name:      l.Name,
		Direction: l.Direction,
		Spacing:   l.Spacing,
		Routes:    l.Routes(),
	}
	for _, m := range l.machines {
		layout.Machines = append(layout.Machines, LayoutMachine{
			Name:      m.Name,
			Type:      m.Type,
			BaseTime:  m.BaseTime,
			SetupTime: m.SetupTime,
		})
	}
	return layout
}
