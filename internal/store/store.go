package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kritchai/factorysim/shared/sqlite"
)

// Store archives simulation runs: run metadata, the sampled metrics
// time series, and the factory layout at the time of the run.
type Store struct {
	db *sqlx.DB
}

func NewStore(client *sqlite.Client) *Store {
	return &Store{
		db: client.GetDB(),
	}
}

// Migrate creates the archive tables when they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id          TEXT PRIMARY KEY,
			started_at      TIMESTAMP NOT NULL,
			stopped_at      TIMESTAMP,
			sim_minutes     REAL NOT NULL DEFAULT 0,
			total_output    INTEGER NOT NULL DEFAULT 0,
			total_defects   INTEGER NOT NULL DEFAULT 0,
			total_cost      REAL NOT NULL DEFAULT 0,
			avg_utilization REAL NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS samples (
			run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			sim_time    REAL NOT NULL,
			throughput  REAL NOT NULL,
			utilization REAL NOT NULL,
			wip         INTEGER NOT NULL,
			PRIMARY KEY (run_id, sim_time)
		);

		CREATE TABLE IF NOT EXISTS layout (
			run_id   TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			line_id  TEXT NOT NULL,
			machine  TEXT NOT NULL,
			position INTEGER NOT NULL,
			x        REAL NOT NULL,
			y        REAL NOT NULL,
			PRIMARY KEY (run_id, line_id, machine)
		);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	return nil
}

// Run is one archived simulation run
type Run struct {
	RunID          string     `db:"run_id"`
	StartedAt      time.Time  `db:"started_at"`
	StoppedAt      *time.Time `db:"stopped_at"`
	SimMinutes     float64    `db:"sim_minutes"`
	TotalOutput    int        `db:"total_output"`
	TotalDefects   int        `db:"total_defects"`
	TotalCost      float64    `db:"total_cost"`
	AvgUtilization float64    `db:"avg_utilization"`
}

// Sample is one archived metrics sample
type Sample struct {
	RunID       string  `db:"run_id"`
	SimTime     float64 `db:"sim_time"`
	Throughput  float64 `db:"throughput"`
	Utilization float64 `db:"utilization"`
	WIP         int     `db:"wip"`
}

// LayoutEntry is one machine placement within a line
type LayoutEntry struct {
	RunID    string  `db:"run_id"`
	LineID   string  `db:"line_id"`
	Machine  string  `db:"machine"`
	Position int     `db:"position"`
	X        float64 `db:"x"`
	Y        float64 `db:"y"`
}

// CreateRun records the start of a new run
func (s *Store) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
	query := `INSERT INTO runs (run_id, started_at) VALUES (?, ?)`

	if _, err := s.db.ExecContext(ctx, query, runID, startedAt); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records final run statistics
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	query := `
		UPDATE runs SET
			stopped_at = ?,
			sim_minutes = ?,
			total_output = ?,
			total_defects = ?,
			total_cost = ?,
			avg_utilization = ?
		WHERE run_id = ?
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		run.StoppedAt,
		run.SimMinutes,
		run.TotalOutput,
		run.TotalDefects,
		run.TotalCost,
		run.AvgUtilization,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// InsertSample appends one metrics sample to a run's time series.
// Duplicate simulated timestamps are overwritten.
func (s *Store) InsertSample(ctx context.Context, sample Sample) error {
	query := `
		INSERT INTO samples (run_id, sim_time, throughput, utilization, wip)
		VALUES (:run_id, :sim_time, :throughput, :utilization, :wip)
		ON CONFLICT (run_id, sim_time) DO UPDATE SET
			throughput = excluded.throughput,
			utilization = excluded.utilization,
			wip = excluded.wip
	`

	if _, err := s.db.NamedExecContext(ctx, query, sample); err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// SaveLayout replaces the archived layout for a run
func (s *Store) SaveLayout(ctx context.Context, runID string, entries []LayoutEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM layout WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear layout: %w", err)
	}

	query := `
		INSERT INTO layout (run_id, line_id, machine, position, x, y)
		VALUES (:run_id, :line_id, :machine, :position, :x, :y)
	`
	for _, entry := range entries {
		entry.RunID = runID
		if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
			return fmt.Errorf("failed to insert layout entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit layout: %w", err)
	}
	return nil
}

// GetRun fetches one run by id
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	query := `
		SELECT run_id, started_at, stopped_at, sim_minutes,
			total_output, total_defects, total_cost, avg_utilization
		FROM runs
		WHERE run_id = ?
	`

	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns runs newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	var runs []Run
	query := `
		SELECT run_id, started_at, stopped_at, sim_minutes,
			total_output, total_defects, total_cost, avg_utilization
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`

	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// ListSamples returns a run's time series in simulated-time order
func (s *Store) ListSamples(ctx context.Context, runID string) ([]Sample, error) {
	var samples []Sample
	query := `
		SELECT run_id, sim_time, throughput, utilization, wip
		FROM samples
		WHERE run_id = ?
		ORDER BY sim_time ASC
	`

	if err := s.db.SelectContext(ctx, &samples, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	return samples, nil
}

// ListLayout returns the archived layout for a run
func (s *Store) ListLayout(ctx context.Context, runID string) ([]LayoutEntry, error) {
	var entries []LayoutEntry
	query := `
		SELECT run_id, line_id, machine, position, x, y
		FROM layout
		WHERE run_id = ?
		ORDER BY line_id, position
	`

	if err := s.db.SelectContext(ctx, &entries, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list layout: %w", err)
	}
	return entries, nil
}
