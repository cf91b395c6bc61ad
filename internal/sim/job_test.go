package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriority(t *testing.T) {
	tests := []struct {
		priority Priority
		label    string
		weight   float64
		valid    bool
	}{
		{priority: PriorityNormal, label: "normal", weight: 1.0, valid: true},
		{priority: PriorityHigh, label: "high", weight: 1.5, valid: true},
		{priority: PriorityCritical, label: "critical", weight: 2.0, valid: true},
		{priority: Priority(0), label: "normal", weight: 1.0, valid: false},
		{priority: Priority(9), label: "normal", weight: 1.0, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.label, tt.priority.String())
			assert.Equal(t, tt.valid, tt.priority.Valid())

			j := &Job{Priority: tt.priority}
			assert.Equal(t, tt.weight, j.PriorityWeight())
		})
	}
}

func TestJob_Routing(t *testing.T) {
	j := &Job{ID: 1, BatchSize: 10, RequiredMachines: []string{"Cut", "Weld", "Paint"}}

	assert.Equal(t, "Cut", j.NextMachine())
	assert.Equal(t, 0.0, j.ProgressPercent())

	assert.True(t, j.AdvanceStep())
	assert.Equal(t, "Weld", j.NextMachine())
	assert.InDelta(t, 100.0/3, j.ProgressPercent(), 1e-9)

	assert.True(t, j.AdvanceStep())
	assert.True(t, j.AdvanceStep())
	assert.Equal(t, "", j.NextMachine())
	assert.Equal(t, 100.0, j.ProgressPercent())

	// Past the final step nothing moves.
	assert.False(t, j.AdvanceStep())
	assert.Equal(t, 3, j.CurrentStep)
}

func TestJob_RoutingEmpty(t *testing.T) {
	j := &Job{ID: 1, BatchSize: 1}

	assert.Equal(t, "", j.NextMachine())
	assert.False(t, j.AdvanceStep())
	assert.Equal(t, 0.0, j.ProgressPercent())
}

func TestJob_ProcessingTime(t *testing.T) {
	j := &Job{ID: 1, BatchSize: 1, ArrivalTime: 2}

	assert.Equal(t, 0.0, j.ProcessingTime())

	j.StartTime = 3
	j.Started = true
	assert.Equal(t, 0.0, j.ProcessingTime())

	j.CompletionTime = 8.5
	j.Completed = true
	assert.InDelta(t, 5.5, j.ProcessingTime(), 1e-9)
}
