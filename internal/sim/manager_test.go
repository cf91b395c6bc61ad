package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Factory, *Manager) {
	t.Helper()
	f := newTestFactory(t)
	return f, NewManager(f, 0, 0)
}

func TestManager_Lifecycle(t *testing.T) {
	_, mgr := newTestManager(t)

	assert.False(t, mgr.Running())
	assert.False(t, mgr.Step(1.0))

	mgr.Start()
	assert.True(t, mgr.Running())
	assert.False(t, mgr.Paused())
	assert.Zero(t, mgr.CurrentTime)

	mgr.Pause()
	assert.True(t, mgr.Paused())
	assert.False(t, mgr.Step(1.0))
	assert.Zero(t, mgr.CurrentTime)

	mgr.Resume()
	assert.True(t, mgr.Step(1.0))
	assert.InDelta(t, 1.0, mgr.CurrentTime, 1e-9)

	mgr.Stop()
	assert.False(t, mgr.Running())
	assert.False(t, mgr.Step(1.0))
}

func TestManager_PauseIdempotent(t *testing.T) {
	_, mgr := newTestManager(t)
	mgr.Start()
	require.True(t, mgr.Step(1.0))
	before := mgr.CurrentTime
	points := mgr.Summarize().DataPoints

	mgr.Pause()
	mgr.Pause()

	assert.True(t, mgr.Paused())
	assert.Equal(t, before, mgr.CurrentTime)
	assert.Equal(t, points, mgr.Summarize().DataPoints)
}

func TestManager_SetSpeed(t *testing.T) {
	tests := []struct {
		name     string
		factor   float64
		expected float64
	}{
		{name: "within range", factor: 2.5, expected: 2.5},
		{name: "clamped low", factor: 0.01, expected: 0.1},
		{name: "clamped high", factor: 50, expected: 10},
		{name: "negative clamped low", factor: -3, expected: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mgr := newTestManager(t)
			mgr.SetSpeed(tt.factor)
			assert.InDelta(t, tt.expected, mgr.Speed(), 1e-9)
		})
	}
}

func TestManager_StepScalesBySpeed(t *testing.T) {
	_, mgr := newTestManager(t)
	mgr.Start()
	mgr.SetSpeed(4)
	require.True(t, mgr.Step(0.5))
	assert.InDelta(t, 2.0, mgr.CurrentTime, 1e-9)
}

func TestManager_EndToEndSingleMachine(t *testing.T) {
	f, mgr := newTestManager(t)
	addMachines(t, f, MachineSpec{Name: "M1", BaseTime: 1.0, SetupTime: 0, Capacity: 5})

	mgr.Start()

	job, err := f.CreateJob(5, []string{"M1"}, PriorityNormal, mgr.CurrentTime)
	require.NoError(t, err)
	require.True(t, f.RouteJob(job, mgr.CurrentTime))

	for mgr.CurrentTime < 1.0 {
		require.True(t, mgr.Step(1.0))
	}

	completed := f.CompletedJobs()
	require.Len(t, completed, 1)
	assert.Same(t, job, completed[0])
	assert.InDelta(t, 1.0, job.CompletionTime, 1e-9)

	m, _ := f.Machine("M1")
	assert.Equal(t, 5, m.TotalOutput)
}

func TestManager_StepRoutesBacklog(t *testing.T) {
	f, mgr := newTestManager(t)
	addMachines(t, f, MachineSpec{Name: "M1", BaseTime: 0.5, Capacity: 1})

	mgr.Start()
	for i := 0; i < 3; i++ {
		_, err := f.CreateJob(1, []string{"M1"}, PriorityNormal, mgr.CurrentTime)
		require.NoError(t, err)
	}
	require.Len(t, f.PendingJobs(), 3)

	// Tick by tick the backlog drains through the single-slot queue.
	for tick := 0; tick < 10 && len(f.CompletedJobs()) < 3; tick++ {
		mgr.Step(0.5)
	}
	assert.Len(t, f.CompletedJobs(), 3)
	assert.Empty(t, f.PendingJobs())
}

func TestManager_StatisticsSampling(t *testing.T) {
	f, mgr := newTestManager(t)
	addMachines(t, f, MachineSpec{Name: "M1", BaseTime: 1})
	mgr.Start()

	// Quarter-minute ticks: a sample lands every other tick.
	for i := 0; i < 8; i++ {
		mgr.Step(0.25)
	}

	series := mgr.History()
	assert.Len(t, series.Times, 4)
	assert.Len(t, series.Throughput, 4)
	assert.Len(t, series.Utilization, 4)
	assert.Len(t, series.WIP, 4)
}

func TestManager_HistoryBounded(t *testing.T) {
	f, mgr := newTestManager(t)
	addMachines(t, f, MachineSpec{Name: "M1", BaseTime: 1})
	mgr = NewManager(f, 5, 0.5)
	mgr.Start()

	for i := 0; i < 40; i++ {
		mgr.Step(0.5)
	}

	samples := mgr.Samples()
	require.Len(t, samples, 5)
	// Oldest samples were evicted first.
	assert.Greater(t, samples[0].Time, 15.0)
	for i := 1; i < len(samples); i++ {
		assert.Greater(t, samples[i].Time, samples[i-1].Time)
	}
}

func TestManager_LatestMetrics(t *testing.T) {
	f, mgr := newTestManager(t)
	addMachines(t, f, MachineSpec{Name: "M1", BaseTime: 1})

	// Before any sample: zeroed metrics at the live clock.
	assert.Equal(t, Sample{}, mgr.LatestMetrics())

	mgr.Start()
	mgr.Step(1.0)

	latest := mgr.LatestMetrics()
	assert.InDelta(t, 1.0, latest.Time, 1e-9)
}

func TestManager_StopPreservesHistory(t *testing.T) {
	f, mgr := newTestManager(t)
	addMachines(t, f, MachineSpec{Name: "M1", BaseTime: 1})
	mgr.Start()
	for i := 0; i < 4; i++ {
		mgr.Step(0.5)
	}
	require.NotEmpty(t, mgr.Samples())

	mgr.Stop()
	assert.NotEmpty(t, mgr.Samples(), "stop must leave history readable")

	// A fresh start begins at zero with cleared buffers.
	mgr.Start()
	assert.Zero(t, mgr.CurrentTime)
	assert.Empty(t, mgr.Samples())
}

func TestManager_Reset(t *testing.T) {
	f, mgr := newTestManager(t)
	addMachines(t, f, MachineSpec{Name: "M1", BaseTime: 0.5})
	mgr.Start()

	job, err := f.CreateJob(1, []string{"M1"}, PriorityNormal, 0)
	require.NoError(t, err)
	require.True(t, f.RouteJob(job, 0))
	for i := 0; i < 4; i++ {
		mgr.Step(0.5)
	}
	require.NotEmpty(t, f.CompletedJobs())

	mgr.Reset()

	assert.False(t, mgr.Running())
	assert.Zero(t, mgr.CurrentTime)
	assert.Empty(t, mgr.Samples())
	assert.Empty(t, f.CompletedJobs())
	assert.Empty(t, f.PendingJobs())
}

func TestHistory_RingDiscipline(t *testing.T) {
	h := newHistory(3)
	for i := 1; i <= 5; i++ {
		h.append(Sample{Time: float64(i)})
	}
	require.Len(t, h.samples, 3)
	assert.Equal(t, 3.0, h.samples[0].Time)
	assert.Equal(t, 5.0, h.samples[2].Time)

	latest, ok := h.latest()
	require.True(t, ok)
	assert.Equal(t, 5.0, latest.Time)
}
