package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
	q "github.com/Rasimilian/Monte-Carlo-Simulation/queries"
)

func (pg *Postgres) InsertSimulationRun(ctx context.Context, run m.SimulationRun) (int32, error) {
	sql := q.Get(q.QueryHelper.Insert.SimulationRun)
	args := pgx.NamedArgs{
		"seed":         run.Seed,
		"alpha":        run.Alpha,
		"beta":         run.Beta,
		"gamma":        run.Gamma,
		"delta":        run.Delta,
		"start_price":  run.StartPrice,
		"periods":      run.Periods,
		"horizon":      run.Horizon,
		"probability":  run.Probability,
		"trial_offset": run.TrialOffset,
		"trials":       run.Trials,
		"status":       run.Status,
	}

	var run_id int32
	if err := pg.db.QueryRow(ctx, sql, args).Scan(&run_id); err != nil {
		return 0, fmt.Errorf("error inserting simulation run: %w", err)
	}

	return run_id, nil
}

func (pg *Postgres) UpdateSimulationRunAsFailure(ctx context.Context, run_id int32, error_message string) error {
	clean_error_message := strings.TrimSpace(error_message)
	if clean_error_message == "" {
		return fmt.Errorf("error message is required if simulation run is failing, occurred in %d", run_id)
	}

	return pg.updateSimulationRun(ctx, pgx.NamedArgs{
		"id":                  run_id,
		"status":              m.RunStatusFailure,
		"trials":              null.Int64{},
		"recommended_trials":  null.Int64{},
		"negative_excursions": null.Int64{},
		"error_message":       null.NewString(clean_error_message, true),
	})
}

// SaveSimulationRunResults stores the per trial quantiles and flips the run
// to success in one transaction, recording the trial count that actually ran.
func (pg *Postgres) SaveSimulationRunResults(ctx context.Context, run_id int32, results *m.TrialResults, recommended_trials null.Int64) error {
	tx, err := pg.GetTransaction(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction to save run %d: %w", run_id, err)
	}
	defer tx.Rollback(ctx) // no-op after a commit

	if _, err := pg.InsertTrialResults(ctx, run_id, results, &tx); err != nil {
		return fmt.Errorf("error bulk inserting trial results for run %d: %w", run_id, err)
	}

	sql := q.Get(q.QueryHelper.Update.SimulationRun)
	args := pgx.NamedArgs{
		"id":                  run_id,
		"status":              m.RunStatusSuccess,
		"trials":              null.NewInt(int64(results.Count()), true),
		"recommended_trials":  recommended_trials,
		"negative_excursions": null.NewInt(int64(results.NegativeExcursions), true),
		"error_message":       null.String{},
	}
	if _, err := tx.Exec(ctx, sql, args); err != nil {
		return fmt.Errorf("error updating run %d as success: %w", run_id, err)
	}

	return tx.Commit(ctx)
}

func (pg *Postgres) GetSimulationRunByID(ctx context.Context, run_id int32) (*m.SimulationRun, error) {
	sql := q.Get(q.QueryHelper.Select.SimulationRunById)
	return QuerySingle[m.SimulationRun](ctx, pg, sql, pgx.NamedArgs{"id": run_id})
}

func (pg *Postgres) GetMostRecentSimulationRun(ctx context.Context, status string) (*m.SimulationRun, error) {
	sql := q.Get(q.QueryHelper.Select.MostRecentSimulationRun)
	return QuerySingle[m.SimulationRun](ctx, pg, sql, pgx.NamedArgs{"status": status})
}

func (pg *Postgres) DeleteStaleSimulationRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	sql := q.Get(q.QueryHelper.Delete.StaleSimulationRuns)

	tag, err := pg.db.Exec(ctx, sql, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("error deleting stale simulation runs: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (pg *Postgres) updateSimulationRun(ctx context.Context, args pgx.NamedArgs) error {
	sql := q.Get(q.QueryHelper.Update.SimulationRun)
	if _, err := pg.db.Exec(ctx, sql, args); err != nil {
		return fmt.Errorf("error updating simulation run: %w", err)
	}
	return nil
}
