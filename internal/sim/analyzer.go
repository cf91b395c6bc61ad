package sim

import (
	"fmt"
	"sort"
)

// PerformanceAnalyzer runs read-only analytics over factory and
// manager state. It holds no state of its own; every method computes
// from the current snapshot.
type PerformanceAnalyzer struct {
	factory *Factory
	manager *Manager
}

// NewPerformanceAnalyzer wires the analyzer over a factory and its
// manager.
func NewPerformanceAnalyzer(factory *Factory, manager *Manager) *PerformanceAnalyzer {
	return &PerformanceAnalyzer{factory: factory, manager: manager}
}

// BottleneckReport grades one machine's congestion.
type BottleneckReport struct {
	Machine     string  `json:"machine"`
	Severity    int     `json:"severity"`
	QueueLength int     `json:"queue_length"`
	Utilization float64 `json:"utilization"`
}

// AnalyzeBottlenecks grades every congested machine by queue depth and
// utilization, most severe first.
func (a *PerformanceAnalyzer) AnalyzeBottlenecks() []BottleneckReport {
	now := a.manager.CurrentTime
	var reports []BottleneckReport

	for _, m := range a.factory.Machines() {
		queueLen := m.QueueLength()
		util := m.Utilization(now)

		severity := 0
		switch {
		case queueLen > 15:
			severity += 3
		case queueLen > 10:
			severity += 2
		case queueLen > 5:
			severity++
		}
		switch {
		case util > 95:
			severity += 3
		case util > 85:
			severity += 2
		case util > 75:
			severity++
		}

		if severity > 0 {
			reports = append(reports, BottleneckReport{
				Machine:     m.Name,
				Severity:    severity,
				QueueLength: queueLen,
				Utilization: util,
			})
		}
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Severity > reports[j].Severity
	})
	return reports
}

// Suggestions produces textual improvement advice across machines and
// the system as a whole.
func (a *PerformanceAnalyzer) Suggestions() []string {
	if a.factory.MachineCount() == 0 {
		return []string{"Add machines to start production"}
	}

	now := a.manager.CurrentTime
	var suggestions []string

	for _, m := range a.factory.Machines() {
		util := m.Utilization(now)
		queueLen := m.QueueLength()

		switch {
		case util > 95:
			suggestions = append(suggestions, fmt.Sprintf("CRITICAL: %s overloaded (%.1f%%) - add a parallel machine urgently", m.Name, util))
		case util > 85:
			suggestions = append(suggestions, fmt.Sprintf("WARNING: %s high utilization (%.1f%%) - consider load balancing", m.Name, util))
		case util < 15 && now > 0:
			suggestions = append(suggestions, fmt.Sprintf("INFO: %s underutilized (%.1f%%) - check job routing", m.Name, util))
		}
		if queueLen > 15 {
			suggestions = append(suggestions, fmt.Sprintf("BOTTLENECK: %s has a large queue (%d jobs)", m.Name, queueLen))
		}
	}

	totalWIP := a.factory.TotalWIP(now)
	avgUtil := a.factory.AverageUtilization(now)

	if totalWIP > a.factory.MachineCount()*5 {
		suggestions = append(suggestions, fmt.Sprintf("HIGH WIP: current WIP (%d) - consider reducing batch sizes", totalWIP))
	}
	if now > 0 {
		if avgUtil < 30 {
			suggestions = append(suggestions, fmt.Sprintf("LOW UTILIZATION: average %.1f%% - increase job arrival rate", avgUtil))
		} else if avgUtil > 85 {
			suggestions = append(suggestions, fmt.Sprintf("HIGH UTILIZATION: average %.1f%% - system near capacity", avgUtil))
		}
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "OPTIMAL: system appears well-balanced")
	}
	return suggestions
}

// OEEReport breaks down one machine's overall equipment effectiveness.
type OEEReport struct {
	Machine      string  `json:"machine"`
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Quality      float64 `json:"quality"`
	OEE          float64 `json:"oee"`
	Rating       string  `json:"rating"`
}

// CalculateOEE computes availability, performance and quality for a
// machine over the elapsed simulated time.
func (a *PerformanceAnalyzer) CalculateOEE(name string) (OEEReport, error) {
	m, ok := a.factory.Machine(name)
	if !ok {
		return OEEReport{}, fmt.Errorf("machine %q: %w", name, ErrMachineNotFound)
	}
	now := a.manager.CurrentTime

	report := OEEReport{
		Machine:      m.Name,
		Availability: m.Availability(),
		Performance:  m.Performance(now),
		Quality:      m.QualityScore,
		OEE:          m.OEE(now),
	}
	report.Rating = oeeRating(report.OEE)
	return report, nil
}

func oeeRating(oee float64) string {
	switch {
	case oee >= 85:
		return "Excellent"
	case oee >= 65:
		return "Good"
	case oee >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}

// EfficiencyRanking orders machines by OEE, best first.
func (a *PerformanceAnalyzer) EfficiencyRanking() []OEEReport {
	reports := make([]OEEReport, 0, a.factory.MachineCount())
	for _, m := range a.factory.Machines() {
		report, err := a.CalculateOEE(m.Name)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].OEE > reports[j].OEE
	})
	return reports
}

// Inefficiencies groups machines by the kind of waste they exhibit.
type Inefficiencies struct {
	IdleMachines       []string `json:"idle_machines"`
	OverloadedMachines []string `json:"overloaded_machines"`
	ImbalancedFlow     []string `json:"imbalanced_flow"`
	SetupTimeIssues    []string `json:"setup_time_issues"`
}

// DetectInefficiencies scans every machine for idle capacity, overload,
// flow imbalance, and setup-dominated cycle times.
func (a *PerformanceAnalyzer) DetectInefficiencies() Inefficiencies {
	now := a.manager.CurrentTime
	var result Inefficiencies

	for _, m := range a.factory.Machines() {
		util := m.Utilization(now)
		queueLen := m.QueueLength()

		if util < 20 {
			result.IdleMachines = append(result.IdleMachines, m.Name)
		} else if util > 90 {
			result.OverloadedMachines = append(result.OverloadedMachines, m.Name)
		}
		if queueLen > 10 {
			result.ImbalancedFlow = append(result.ImbalancedFlow, m.Name)
		}
		if cycle := m.CycleTime(1); cycle > 0 && m.SetupTime/cycle > 0.5 {
			result.SetupTimeIssues = append(result.SetupTimeIssues, m.Name)
		}
	}
	return result
}
