package queries

import (
	"embed"
	"fmt"
)

//go:embed delete/*.sql insert/*.sql schema/*.sql select/*.sql update/*.sql
var Files embed.FS

// ^^^ the go:embed directive converts the files to binary data at compile time
// and embeds them in the queries package, so the binary carries its own sql

type DeleteQueries struct {
	StaleSimulationRuns string
}

type InsertQueries struct {
	SimulationRun string
}

type SchemaQueries struct {
	CreateTables string
}

type SelectQueries struct {
	MostRecentSimulationRun string
	SimulationRunById       string
}

type UpdateQueries struct {
	SimulationRun string
}

type QueryHelperStruct struct {
	Delete DeleteQueries
	Insert InsertQueries
	Schema SchemaQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Delete: DeleteQueries{
		StaleSimulationRuns: "delete/stale_simulation_runs.sql",
	},
	Insert: InsertQueries{
		SimulationRun: "insert/simulation_run.sql",
	},
	Schema: SchemaQueries{
		CreateTables: "schema/create_tables.sql",
	},
	Select: SelectQueries{
		MostRecentSimulationRun: "select/most_recent_simulation_run.sql",
		SimulationRunById:       "select/simulation_run_by_id.sql",
	},
	Update: UpdateQueries{
		SimulationRun: "update/simulation_run.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
