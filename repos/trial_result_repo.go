package repos

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// InsertTrialResults bulk copies one quantile row per trial. Row indexes are
// absolute, the batch offset plus the position within the batch.
func (pg *Postgres) InsertTrialResults(ctx context.Context, run_id int32, results *m.TrialResults, tx *pgx.Tx) (int64, error) {
	columns := []string{"run_id", "trial_index", "quantile"}

	entries := make([][]any, results.Count())
	for i, quantile := range results.Quantiles {
		entries[i] = []any{run_id, results.Offset + i, quantile}
	}

	return pg.BulkInsert(ctx, "trial_result", columns, entries, tx)
}

func (pg *Postgres) GetTrialResultsByRunID(ctx context.Context, run_id int32) ([]*m.TrialResultRow, error) {
	query := `
		SELECT
			tr.run_id,
			tr.trial_index,
			tr.quantile
		FROM trial_result tr
		WHERE tr.run_id = @run_id
		ORDER BY tr.trial_index`

	args := pgx.NamedArgs{
		"run_id": run_id,
	}

	res, err := Query[m.TrialResultRow](ctx, pg, query, args)
	if err != nil {
		return nil, fmt.Errorf("unable to query trial results for run (%d): %w", run_id, err)
	}
	return res, nil
}
