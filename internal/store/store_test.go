package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kritchai/factorysim/shared/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := sqlite.NewClient(&sqlite.Config{Path: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	s := NewStore(client)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStore_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	startedAt := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateRun(ctx, "run-1", startedAt))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunID)
	assert.True(t, run.StartedAt.Equal(startedAt))
	assert.Nil(t, run.StoppedAt)

	stoppedAt := startedAt.Add(30 * time.Minute)
	require.NoError(t, s.FinishRun(ctx, Run{
		RunID:          "run-1",
		StoppedAt:      &stoppedAt,
		SimMinutes:     480,
		TotalOutput:    950,
		TotalDefects:   18,
		TotalCost:      12500.5,
		AvgUtilization: 78.2,
	}))

	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, run.StoppedAt)
	assert.Equal(t, 480.0, run.SimMinutes)
	assert.Equal(t, 950, run.TotalOutput)
	assert.Equal(t, 18, run.TotalDefects)
	assert.Equal(t, 12500.5, run.TotalCost)
	assert.Equal(t, 78.2, run.AvgUtilization)
}

func TestStore_GetRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get run")
}

func TestStore_ListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateRun(ctx, "run-old", base))
	require.NoError(t, s.CreateRun(ctx, "run-new", base.Add(time.Hour)))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)
}

func TestStore_Samples(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", time.Now()))

	require.NoError(t, s.InsertSample(ctx, Sample{RunID: "run-1", SimTime: 1.0, Throughput: 40, Utilization: 60, WIP: 3}))
	require.NoError(t, s.InsertSample(ctx, Sample{RunID: "run-1", SimTime: 0.5, Throughput: 20, Utilization: 50, WIP: 2}))

	// Same simulated timestamp overwrites the earlier sample.
	require.NoError(t, s.InsertSample(ctx, Sample{RunID: "run-1", SimTime: 1.0, Throughput: 45, Utilization: 65, WIP: 4}))

	samples, err := s.ListSamples(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 0.5, samples[0].SimTime)
	assert.Equal(t, 1.0, samples[1].SimTime)
	assert.Equal(t, 45.0, samples[1].Throughput)
	assert.Equal(t, 4, samples[1].WIP)
}

func TestStore_SaveLayout_Replaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", time.Now()))

	first := []LayoutEntry{
		{LineID: "line-a", Machine: "CNC-01", Position: 0, X: 0, Y: 0},
		{LineID: "line-a", Machine: "Weld-01", Position: 1, X: 150, Y: 0},
	}
	require.NoError(t, s.SaveLayout(ctx, "run-1", first))

	second := []LayoutEntry{
		{LineID: "line-a", Machine: "CNC-01", Position: 0, X: 10, Y: 20},
	}
	require.NoError(t, s.SaveLayout(ctx, "run-1", second))

	entries, err := s.ListLayout(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "CNC-01", entries[0].Machine)
	assert.Equal(t, 10.0, entries[0].X)
	assert.Equal(t, 20.0, entries[0].Y)
}
