package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLine(t *testing.T, baseTimes ...float64) (*Factory, *ProductionLine) {
	t.Helper()
	f := newTestFactory(t)
	line := NewProductionLine("Line A")
	require.NoError(t, f.AddLine(line))
	for i, base := range baseTimes {
		spec := MachineSpec{Name: machineName(i), Type: "station", BaseTime: base}
		m := NewMachine(spec)
		require.NoError(t, f.AddMachine(m))
		require.NoError(t, line.AddMachine(m, -1))
	}
	return f, line
}

func machineName(i int) string {
	return string(rune('A'+i)) + "-station"
}

func TestProductionLine_SingleOwnership(t *testing.T) {
	f := newTestFactory(t)
	m := NewMachine(MachineSpec{Name: "M1", BaseTime: 1})
	require.NoError(t, f.AddMachine(m))

	first := NewProductionLine("Line A")
	second := NewProductionLine("Line B")
	require.NoError(t, f.AddLine(first))
	require.NoError(t, f.AddLine(second))

	require.NoError(t, first.AddMachine(m, -1))
	assert.Equal(t, first.ID, m.LineID())

	// The same machine cannot serve two lines.
	err := second.AddMachine(m, -1)
	require.ErrorIs(t, err, ErrMachineOwnedByLine)
	assert.Empty(t, second.Machines())

	// Re-adding to its own line is a no-op.
	require.NoError(t, first.AddMachine(m, -1))
	assert.Len(t, first.Machines(), 1)

	first.RemoveMachine(m)
	assert.Empty(t, m.LineID())
	require.NoError(t, second.AddMachine(m, -1))
}

func TestProductionLine_AddMachineAtPosition(t *testing.T) {
	_, line := newTestLine(t, 1, 1)

	m := NewMachine(MachineSpec{Name: "Mid", BaseTime: 1})
	require.NoError(t, line.AddMachine(m, 1))

	machines := line.Machines()
	require.Len(t, machines, 3)
	assert.Equal(t, "Mid", machines[1].Name)
}

func TestProductionLine_CreateRoute(t *testing.T) {
	_, line := newTestLine(t, 1, 2, 3)

	route, err := line.CreateRoute("widget",
		[]string{machineName(0), "Ghost", machineName(2)},
		[]float64{1.0, 9.9, 3.0},
		[]float64{0.5, 0, 0},
	)
	require.NoError(t, err)

	// Steps referencing machines outside the line are skipped.
	require.Len(t, route.Steps, 2)
	assert.Equal(t, machineName(0), route.Steps[0].MachineName)
	assert.Equal(t, machineName(2), route.Steps[1].MachineName)
	assert.InDelta(t, 4.0, route.TotalCycleTime, 1e-9)

	// Quality check lands on the final step only.
	assert.False(t, route.Steps[0].QualityCheck)
	assert.True(t, route.Steps[1].QualityCheck)

	slowest := route.BottleneckStep()
	require.NotNil(t, slowest)
	assert.Equal(t, machineName(2), slowest.MachineName)

	stored, ok := line.Route("widget")
	assert.True(t, ok)
	assert.Same(t, route, stored)
}

func TestProductionLine_CreateRoute_LengthMismatch(t *testing.T) {
	_, line := newTestLine(t, 1)

	_, err := line.CreateRoute("widget", []string{machineName(0)}, []float64{1, 2}, nil)
	require.ErrorIs(t, err, ErrRouteMismatch)

	_, err = line.CreateRoute("widget", []string{machineName(0)}, []float64{1}, []float64{0, 0})
	require.ErrorIs(t, err, ErrRouteMismatch)
}

func TestProductionLine_AnalyzeBottleneck(t *testing.T) {
	_, line := newTestLine(t, 1, 1, 5, 1)

	bottlenecks := line.AnalyzeBottleneck()
	require.Len(t, bottlenecks, 1)
	assert.Equal(t, 5.0, bottlenecks[0].BaseTime)
}

func TestProductionLine_AnalyzeBottleneck_QueuePressure(t *testing.T) {
	f, line := newTestLine(t, 1, 1, 1)

	// Uniform cycle times: every station is within 90% of the max, so
	// all are flagged on the cycle rule. Pile a queue on one station and
	// it also trips the queue rule.
	congested := line.Machines()[1]
	for i := 0; i < 4; i++ {
		job, err := f.CreateJob(1, []string{congested.Name}, PriorityNormal, 0)
		require.NoError(t, err)
		require.True(t, congested.AddJob(job))
	}

	bottlenecks := line.AnalyzeBottleneck()
	names := make([]string, len(bottlenecks))
	for i, m := range bottlenecks {
		names[i] = m.Name
	}
	assert.Contains(t, names, congested.Name)
}

func TestProductionLine_AnalyzeBottleneck_Empty(t *testing.T) {
	line := NewProductionLine("empty")
	assert.Empty(t, line.AnalyzeBottleneck())
}

func TestProductionLine_CalculateTaktTime(t *testing.T) {
	tests := []struct {
		name     string
		demand   float64
		expected float64
	}{
		{name: "sixty per hour", demand: 60, expected: 1},
		{name: "thirty per hour", demand: 30, expected: 2},
		{name: "zero demand", demand: 0, expected: 0},
		{name: "negative demand", demand: -5, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := NewProductionLine("takt")
			assert.InDelta(t, tt.expected, line.CalculateTaktTime(tt.demand), 1e-9)
			assert.InDelta(t, tt.expected, line.TaktTime, 1e-9)
		})
	}
}

func TestProductionLine_BalanceLine(t *testing.T) {
	_, line := newTestLine(t, 1, 1, 5, 1)
	line.CalculateTaktTime(30) // 2 minutes per piece

	suggestions := line.BalanceLine()
	require.NotEmpty(t, suggestions)

	joined := ""
	for _, s := range suggestions {
		joined += s + "\n"
	}
	// The slow station is a split candidate and violates takt time.
	assert.Contains(t, joined, "splitting "+machineName(2))
	assert.Contains(t, joined, "exceeds takt time")
	// The fast stations are merge candidates.
	assert.Contains(t, joined, "combining "+machineName(0))
}

func TestProductionLine_BalanceLine_Balanced(t *testing.T) {
	_, line := newTestLine(t, 2, 2, 2)
	assert.Empty(t, line.BalanceLine())
}

func TestProductionLine_Throughput(t *testing.T) {
	_, line := newTestLine(t, 1, 1)

	machines := line.Machines()
	machines[0].TotalOutput = 60
	machines[1].TotalOutput = 30

	// The line moves as fast as its slowest station.
	assert.InDelta(t, 0.5, line.Throughput(60), 1e-9)

	empty := NewProductionLine("empty")
	assert.Zero(t, empty.Throughput(60))
}

func TestProductionLine_LineEfficiency(t *testing.T) {
	_, line := newTestLine(t, 1, 1)

	machines := line.Machines()
	machines[0].TotalWorkingTime = 50
	machines[1].TotalWorkingTime = 30

	// Mean utilization 40%, both stations flagged by the relative cycle
	// rule: two bottlenecks cost 10 points.
	assert.InDelta(t, 30.0, line.LineEfficiency(100), 1e-9)
}

func TestProductionLine_LineEfficiency_FlooredAtZero(t *testing.T) {
	_, line := newTestLine(t, 1, 1)
	assert.Zero(t, line.LineEfficiency(100))
}

func TestProductionLine_SimulateFlow(t *testing.T) {
	f, line := newTestLine(t, 1)
	station := line.Machines()[0]

	job, err := f.CreateJob(1, []string{station.Name}, PriorityNormal, 0)
	require.NoError(t, err)

	// Routing through the factory reaches the line's flow logic: the
	// idle station starts the job in the same tick.
	require.True(t, f.RouteJob(job, 0))
	assert.True(t, station.Working)
	assert.Same(t, job, station.CurrentJob)

	// A busy station just queues the next job.
	second, err := f.CreateJob(1, []string{station.Name}, PriorityNormal, 0)
	require.NoError(t, err)
	require.True(t, f.RouteJob(second, 0))
	assert.Equal(t, 1, station.QueueLength())
}

func TestFactory_RemoveLine_ReleasesMachines(t *testing.T) {
	f, line := newTestLine(t, 1, 1)
	machines := line.Machines()

	require.True(t, f.RemoveLine(line.ID))

	_, ok := f.Line(line.ID)
	assert.False(t, ok)
	for _, m := range machines {
		assert.Empty(t, m.LineID())
	}
	assert.False(t, f.RemoveLine(line.ID))
}

func TestProductionLine_Summarize(t *testing.T) {
	f, line := newTestLine(t, 1, 5)
	line.CalculateTaktTime(60)

	job, err := f.CreateJob(1, []string{line.Machines()[1].Name}, PriorityNormal, 0)
	require.NoError(t, err)
	require.True(t, line.Machines()[1].AddJob(job))

	s := line.Summarize(10)
	assert.Equal(t, line.ID, s.ID)
	assert.Equal(t, 2, s.Machines)
	assert.Equal(t, 1, s.TotalWIP)
	assert.Contains(t, s.Bottlenecks, line.Machines()[1].Name)
	assert.InDelta(t, 1.0, s.TaktTime, 1e-9)
}

func TestProductionLine_ExportLayout(t *testing.T) {
	_, line := newTestLine(t, 1, 2)
	_, err := line.CreateRoute("widget", []string{machineName(0), machineName(1)}, []float64{1, 2}, nil)
	require.NoError(t, err)

	layout := line.ExportLayout()
	assert.Equal(t, line.ID, layout.ID)
	assert.Equal(t, "horizontal", layout.Direction)
	require.Len(t, layout.Machines, 2)
	assert.Equal(t, machineName(0), layout.Machines[0].Name)
	require.Contains(t, layout.Routes, "widget")
}
