package models

import "github.com/guregu/null/v6"

// SimulationSettingsResources will be the resources for the simulation settings, rest will be simple numbers provided by user
type SimulationSettingsResources struct {
	Horizons      map[string]int            `json:"horizons"`      // named return horizons in days
	Probabilities map[string]float64        `json:"probabilities"` // named tail probabilities
	Defaults      SimulationRequestSettings `json:"defaults"`
}

// GetSimulationSettingsResources will return the simulation settings resources.
// This approach makes sure everything is mapped correctly so uses a shared resource
func GetSimulationSettingsResources() SimulationSettingsResources {
	horizons := map[string]int{
		"oneDay": HorizonOneDay,
		"tenDay": HorizonTenDay,
	}

	probabilities := map[string]float64{
		"p01": 0.01,
		"p05": 0.05,
		"p10": 0.10,
	}

	return SimulationSettingsResources{
		Horizons:      horizons,
		Probabilities: probabilities,
		Defaults:      DefaultSimulationSettings(),
	}
}

// SimulationRequestSettings will be the request from the front end to the simulation controller
type SimulationRequestSettings struct {
	Alpha float64 `json:"alpha" yaml:"alpha"` // stability index, (0, 2]
	Beta  float64 `json:"beta" yaml:"beta"`   // skewness, [-1, 1]
	Gamma float64 `json:"gamma" yaml:"gamma"` // scale, > 0
	Delta float64 `json:"delta" yaml:"delta"` // location

	StartPrice  float64 `json:"startPrice" yaml:"start_price"`
	Periods     int     `json:"periods" yaml:"periods"`
	Horizon     int     `json:"horizon" yaml:"horizon"`
	Probability float64 `json:"probability" yaml:"probability"`

	Trials      int   `json:"trials" yaml:"trials"`
	TrialOffset int   `json:"trialOffset" yaml:"-"`
	Seed        int64 `json:"seed" yaml:"seed"`

	// Tolerance is the CI half-width target for the convergence report.
	// Zero means one percent of the estimate magnitude.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`

	Workers   int `json:"workers" yaml:"workers"`
	BatchSize int `json:"batchSize" yaml:"batch_size"`
}

func DefaultSimulationSettings() SimulationRequestSettings {
	return SimulationRequestSettings{
		Alpha:       DefaultAlpha,
		Beta:        DefaultBeta,
		Gamma:       DefaultGamma,
		Delta:       DefaultDelta,
		StartPrice:  DefaultStartPrice,
		Periods:     DefaultPeriods,
		Horizon:     HorizonTenDay,
		Probability: DefaultProbability,
		Trials:      DefaultTrials,
		Seed:        42,
		Workers:     DefaultWorkers,
		BatchSize:   DefaultBatchSize,
	}
}

// SimulationResponse will be the response from the simulation controller and what is sent to the front end
type SimulationResponse struct {
	RunId       null.Int64                `json:"runId"`
	Settings    SimulationRequestSettings `json:"settings"`
	Results     *TrialResults             `json:"results"`
	Convergence *ConvergenceReport        `json:"convergence"`
	Histogram   Histogram                 `json:"histogram"`
}

// SufficiencyRequestSettings drives the adaptive run: grow the trial count
// until two interleaved samples agree, checking after every CheckEvery trials
// per sample.
type SufficiencyRequestSettings struct {
	SimulationRequestSettings

	CheckEvery   int     `json:"checkEvery" yaml:"check_every"`
	Discrepancy  float64 `json:"discrepancy" yaml:"discrepancy"`
	Significance float64 `json:"significance" yaml:"significance"`
	MaxTrials    int     `json:"maxTrials" yaml:"max_trials"`
}

func DefaultSufficiencySettings() SufficiencyRequestSettings {
	return SufficiencyRequestSettings{
		SimulationRequestSettings: DefaultSimulationSettings(),
		CheckEvery:                DefaultCheckEvery,
		Discrepancy:               DefaultDiscrepancy,
		Significance:              DefaultSignificance,
		MaxTrials:                 DefaultMaxTrials,
	}
}

// SufficiencyResponse pairs the adaptive check outcome with the report over
// everything that was run.
type SufficiencyResponse struct {
	RunId       null.Int64                 `json:"runId"`
	Settings    SufficiencyRequestSettings `json:"settings"`
	Check       SufficiencyResult          `json:"check"`
	Results     *TrialResults              `json:"results"`
	Convergence *ConvergenceReport         `json:"convergence"`
}
