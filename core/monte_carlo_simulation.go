package core

import (
	"log"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	ex "github.com/Rasimilian/Monte-Carlo-Simulation/extensions"
	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

type job struct {
	start int
	end   int
}

func GetNumberOfJobsAndWorkers(trials int, batchSize int, workers int) ([]job, int) {
	// total number of batches is the trial count over the batch size, rounded up
	// to the nearest int
	nJobs := int(math.Ceil(float64(trials) / float64(batchSize)))

	// we have a max number of workers, so we take the minimum of the number of
	// jobs and the number of workers
	nWorkers := ex.Min(nJobs, workers)

	// jobs store the batch-relative trial index range they cover, truncating the
	// last job to the trial count if needed. the master seed offset is applied
	// when each trial seeds its own stream
	jobs := make([]job, nJobs)
	for i := range nJobs {
		jobs[i] = job{
			start: i * batchSize,
			end:   ex.Min((i+1)*batchSize, trials),
		}
	}

	return jobs, nWorkers
}

func (sc *ServiceContext) RunMonteCarloSimulation(settings *m.SimulationRequestSettings) (*m.TrialResults, error) {
	if err := validateSimulationSettings(settings); err != nil {
		return nil, err
	}

	jobs, nWorkers := GetNumberOfJobsAndWorkers(settings.Trials, settings.BatchSize, settings.Workers)

	log.Println("Starting monte carlo simulation:")
	log.Printf("\t Stable law: alpha %v, beta %v, gamma %v, delta %v", settings.Alpha, settings.Beta, settings.Gamma, settings.Delta)
	log.Printf("\t Price path: %v periods from %v, return horizon %v days", settings.Periods, settings.StartPrice, settings.Horizon)
	log.Printf("\t Tail probability: %v", settings.Probability)
	log.Printf("\t Trials: %v starting at offset %v, seed %v", settings.Trials, settings.TrialOffset, settings.Seed)
	log.Printf("\t Batches: %v of size %v across %v workers", len(jobs), settings.BatchSize, nWorkers)

	return sc.runTrialBatch(settings)
}

// runTrialBatch is the pool without the settings banner, shared with the
// adaptive runner which calls it once per growth step.
func (sc *ServiceContext) runTrialBatch(settings *m.SimulationRequestSettings) (*m.TrialResults, error) {
	jobs, nWorkers := GetNumberOfJobsAndWorkers(settings.Trials, settings.BatchSize, settings.Workers)

	// results are indexed by trial so worker completion order never shows up in
	// the output
	quantiles := make([]float64, settings.Trials)
	excursions := make([]int, settings.Trials)

	// this is the channel that will hold all the jobs to be processed, workers
	// will steal jobs from this channel as they process other jobs
	jobsChannel := make(chan job, len(jobs))
	for _, v := range jobs {
		jobsChannel <- v
	}
	close(jobsChannel) // close the job channel, there isnt anything else being added to it

	// using the service context to DERIVE the err group context here will allow for a few things:
	// if a user cancels the request, the trials will also be cancelled
	// if a worker errors, it wont take down the user's context
	g, ctx := errgroup.WithContext(sc.Context)

	for range nWorkers {
		g.Go(func() error {
			// this will loop over available jobs, and will reup if a job finishes
			// and there are more jobs
			for j := range jobsChannel {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				for trial := j.start; trial < j.end; trial++ {
					// every trial draws from its own stream keyed by the master
					// seed and the trial's absolute index, so sequential and
					// parallel runs produce identical results and a later batch
					// continues exactly where this one stops
					src := rand.NewPCG(uint64(settings.Seed), uint64(settings.TrialOffset+trial))

					generator, err := NewPathGenerator(*settings, src)
					if err != nil {
						log.Printf("error building path generator for trial %d: %v", trial, err)
						return err
					}

					path := generator.GeneratePath()

					returns, err := OverlappingReturns(path.Prices, settings.Horizon)
					if err != nil {
						log.Printf("error computing overlapping returns for trial %d: %v", trial, err)
						return err
					}

					quantile, err := EmpiricalQuantile(settings.Probability, returns)
					if err != nil {
						log.Printf("error extracting quantile for trial %d: %v", trial, err)
						return err
					}

					quantiles[trial] = quantile
					excursions[trial] = path.NegativeExcursions
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &m.TrialResults{
		Quantiles:          quantiles,
		Probability:        settings.Probability,
		Horizon:            settings.Horizon,
		Seed:               settings.Seed,
		Offset:             settings.TrialOffset,
		NegativeExcursions: ex.Sum(excursions),
	}, nil
}

// RunSimulationUntilSufficient grows the trial count until two interleaved
// samples of the quantile estimates agree under a two sample KS test, or the
// ceiling is hit. A ceiling hit is not an error, the caller reads Passed.
func (sc *ServiceContext) RunSimulationUntilSufficient(settings *m.SufficiencyRequestSettings) (*m.TrialResults, *m.SufficiencyResult, error) {
	start := time.Now()

	if err := validateSufficiencySettings(settings); err != nil {
		return nil, nil, err
	}

	log.Println("Starting adaptive monte carlo simulation:")
	log.Printf("\t Growth step: %v trials per sample", settings.CheckEvery)
	log.Printf("\t Discrepancy threshold: %v", settings.Discrepancy)
	log.Printf("\t Significance threshold: %v", settings.Significance)
	log.Printf("\t Trial ceiling: %v", settings.MaxTrials)
	log.Printf("\t Seed %v starting at offset %v", settings.Seed, settings.TrialOffset)

	batch := settings.SimulationRequestSettings
	batch.Trials = ex.Min(2*settings.CheckEvery, settings.MaxTrials)

	res, err := sc.runTrialBatch(&batch)
	if err != nil {
		return nil, nil, err
	}

	check := &m.SufficiencyResult{}
	for {
		first, second := splitAlternating(res.Quantiles)

		statistic, pValue, err := TwoSampleKS(first, second)
		if err != nil {
			return nil, nil, err
		}

		check.TrialsUsed = res.Count()
		check.Statistic = statistic
		check.PValue = pValue
		check.Passed = statistic <= settings.Discrepancy && pValue >= settings.Significance

		if check.Passed {
			log.Printf("trial count sufficient at %d trials, statistic %.5f, p value %.3f, took %s", res.Count(), statistic, pValue, time.Since(start))
			return res, check, nil
		}

		if res.Count() >= settings.MaxTrials {
			log.Printf("trial ceiling %d hit without agreement, statistic %.5f, p value %.3f, took %s", settings.MaxTrials, statistic, pValue, time.Since(start))
			return res, check, nil
		}

		batch.Trials = ex.Min(2*settings.CheckEvery, settings.MaxTrials-res.Count())
		batch.TrialOffset = res.Offset + res.Count()

		more, err := sc.runTrialBatch(&batch)
		if err != nil {
			return nil, nil, err
		}

		if err := res.Merge(more); err != nil {
			return nil, nil, err
		}
	}
}

// splitAlternating deals the sequence into its even and odd indexed halves,
// two samples with no trial streams in common.
func splitAlternating(values []float64) ([]float64, []float64) {
	first := make([]float64, 0, (len(values)+1)/2)
	second := make([]float64, 0, len(values)/2)

	for i, v := range values {
		if i%2 == 0 {
			first = append(first, v)
		} else {
			second = append(second, v)
		}
	}

	return first, second
}
