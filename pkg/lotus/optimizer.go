// Package lotus implements the Lotus-Effect search: a population-based
// stochastic optimizer over the membership scoring parameters. Candidates
// take heavy-tailed Levy-flight steps combined with attraction toward the
// global best, under greedy not-worse acceptance and elitist retention.
package lotus

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ParameterVector is one point in the scoring-parameter space. Immutable
// value; the optimizer creates new vectors rather than mutating in place.
type ParameterVector struct {
	Alpha       float64 `json:"alpha"`
	TauAccept   float64 `json:"tau_accept"`
	TauTransfer float64 `json:"tau_transfer"`
}

const numDimensions = 3

func (v ParameterVector) array() [numDimensions]float64 {
	return [numDimensions]float64{v.Alpha, v.TauAccept, v.TauTransfer}
}

func fromArray(a [numDimensions]float64) ParameterVector {
	return ParameterVector{Alpha: a[0], TauAccept: a[1], TauTransfer: a[2]}
}

// Bounds holds per-parameter valid ranges. A degenerate range (lower ==
// upper) pins that parameter to a fixed value.
type Bounds struct {
	Lower ParameterVector `json:"lower"`
	Upper ParameterVector `json:"upper"`
}

// DefaultBounds searches the full unit cube
func DefaultBounds() Bounds {
	return Bounds{
		Lower: ParameterVector{Alpha: 0, TauAccept: 0, TauTransfer: 0},
		Upper: ParameterVector{Alpha: 1, TauAccept: 1, TauTransfer: 1},
	}
}

// Validate checks range consistency
func (b Bounds) Validate() error {
	lo, hi := b.Lower.array(), b.Upper.array()
	names := [numDimensions]string{"alpha", "tau_accept", "tau_transfer"}
	for d := 0; d < numDimensions; d++ {
		if lo[d] > hi[d] {
			return fmt.Errorf("invalid %s range: lower %f above upper %f", names[d], lo[d], hi[d])
		}
		if lo[d] < 0 || hi[d] > 1 {
			return fmt.Errorf("%s range [%f, %f] outside [0, 1]", names[d], lo[d], hi[d])
		}
	}
	return nil
}

// Clip clamps a vector into the bounds, returning the number of clamped
// components. Out-of-range values are clamped at the bound, never wrapped
// or reflected.
func (b Bounds) Clip(v ParameterVector) (ParameterVector, int) {
	arr, lo, hi := v.array(), b.Lower.array(), b.Upper.array()
	clipped := 0
	for d := 0; d < numDimensions; d++ {
		if arr[d] < lo[d] {
			arr[d] = lo[d]
			clipped++
		} else if arr[d] > hi[d] {
			arr[d] = hi[d]
			clipped++
		}
	}
	return fromArray(arr), clipped
}

// Objective evaluates a parameter vector; higher is better. Must be pure:
// evaluations may run concurrently.
type Objective func(ParameterVector) float64

// Candidate is one population member
type Candidate struct {
	Vector    ParameterVector `json:"vector"`
	Fitness   float64         `json:"fitness"`
	Evaluated bool            `json:"evaluated"`
}

// Config contains optimizer settings
type Config struct {
	PopulationSize   int     `json:"population_size"`
	MaxEvaluations   int     `json:"max_evaluations"`
	StagnationWindow int     `json:"stagnation_window"` // generations without improvement; 0 disables
	Bounds           Bounds  `json:"bounds"`
	LevyBeta         float64 `json:"levy_beta"`
	StepScale        float64 `json:"step_scale"`
	Attraction       float64 `json:"attraction"`
	AttractionDecay  float64 `json:"attraction_decay"`
	RandomSeed       int64   `json:"random_seed"` // negative means time-based
	Parallel         bool    `json:"parallel"`
	NumWorkers       int     `json:"num_workers"`

	ProgressCallback func(generation, evaluations int, bestFitness float64) `json:"-"`
}

// DefaultConfig returns the standard search settings
func DefaultConfig() Config {
	return Config{
		PopulationSize:   30,
		MaxEvaluations:   500,
		StagnationWindow: 0,
		Bounds:           DefaultBounds(),
		LevyBeta:         1.5,
		StepScale:        0.01,
		Attraction:       0.5,
		AttractionDecay:  0.99,
		RandomSeed:       -1,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.PopulationSize < 1 {
		return fmt.Errorf("population size must be at least 1, got %d", c.PopulationSize)
	}
	if c.MaxEvaluations < 1 {
		return fmt.Errorf("evaluation budget must be at least 1, got %d", c.MaxEvaluations)
	}
	if c.LevyBeta <= 0 || c.LevyBeta >= 2 {
		return fmt.Errorf("levy beta must be in (0, 2), got %f", c.LevyBeta)
	}
	if c.AttractionDecay <= 0 || c.AttractionDecay > 1 {
		return fmt.Errorf("attraction decay must be in (0, 1], got %f", c.AttractionDecay)
	}
	return c.Bounds.Validate()
}

// Result contains the search outcome. The best candidate found so far is
// always returned, whether or not the search converged.
type Result struct {
	BestVector  ParameterVector `json:"best_vector"`
	BestFitness float64         `json:"best_fitness"`
	Evaluations int             `json:"evaluations"`
	Generations int             `json:"generations"`
	History     []float64       `json:"history"` // best fitness after each generation
	Clipped     int             `json:"clipped"` // proposal components clamped into bounds
	Stagnated   bool            `json:"stagnated"`
}

// Optimizer runs the Lotus-Effect search. All randomness flows through a
// single seeded generator touched only in the sequential proposal phase,
// so a fixed seed reproduces the full trajectory even with parallel
// evaluation enabled.
type Optimizer struct {
	config Config
	logger zerolog.Logger
}

// New creates an optimizer with a validated configuration
func New(config Config, logger zerolog.Logger) (*Optimizer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimizer config: %w", err)
	}
	return &Optimizer{
		config: config,
		logger: logger.With().Str("component", "lotus").Logger(),
	}, nil
}

// Run executes the search until the evaluation budget is exhausted or the
// stagnation window expires. Context cancellation is checked between
// generations and stops the search early, returning the best found so far.
func (o *Optimizer) Run(ctx context.Context, objective Objective) (*Result, error) {
	seed := o.config.RandomSeed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	popSize := o.config.PopulationSize
	budget := o.config.MaxEvaluations

	o.logger.Info().
		Int("population", popSize).
		Int("budget", budget).
		Int64("seed", seed).
		Msg("Starting Lotus-Effect search")

	result := &Result{History: make([]float64, 0)}

	// Initialization: uniform samples within bounds
	population := make([]Candidate, popSize)
	for i := range population {
		population[i].Vector = o.sampleUniform(rng)
	}

	n := minInt(popSize, budget-result.Evaluations)
	fits := o.evaluateAll(population[:n], objective)

	var best Candidate
	for i := 0; i < n; i++ {
		population[i].Fitness = fits[i]
		population[i].Evaluated = true
		result.Evaluations++
		if !best.Evaluated || fits[i] > best.Fitness {
			best = population[i]
		}
	}
	result.History = append(result.History, best.Fitness)

	stagnation := 0
	for result.Evaluations < budget {
		if err := ctx.Err(); err != nil {
			o.logger.Warn().Err(err).Msg("Search cancelled, returning best so far")
			break
		}

		result.Generations++
		eta := o.config.Attraction * math.Pow(o.config.AttractionDecay, float64(result.Generations-1))

		// Sequential proposal phase: the only place the RNG is used
		n = minInt(popSize, budget-result.Evaluations)
		proposals := make([]Candidate, n)
		for i := 0; i < n; i++ {
			vec, clipped := o.perturb(rng, population[i].Vector, best.Vector, eta)
			proposals[i].Vector = vec
			result.Clipped += clipped
		}

		fits = o.evaluateAll(proposals, objective)

		// Merge in fixed candidate order: parallel evaluation must never
		// change the accept/reject sequence
		improved := false
		for i := 0; i < n; i++ {
			result.Evaluations++
			if !population[i].Evaluated || fits[i] >= population[i].Fitness {
				population[i] = Candidate{Vector: proposals[i].Vector, Fitness: fits[i], Evaluated: true}
			}
			if fits[i] > best.Fitness {
				best = Candidate{Vector: proposals[i].Vector, Fitness: fits[i], Evaluated: true}
				improved = true
			}
		}
		result.History = append(result.History, best.Fitness)

		if improved {
			stagnation = 0
		} else {
			stagnation++
		}

		if o.config.ProgressCallback != nil {
			o.config.ProgressCallback(result.Generations, result.Evaluations, best.Fitness)
		}
		if result.Generations%10 == 0 {
			o.logger.Debug().
				Int("generation", result.Generations).
				Int("evaluations", result.Evaluations).
				Float64("best_fitness", best.Fitness).
				Float64("eta", eta).
				Msg("Search progress")
		}

		if o.config.StagnationWindow > 0 && stagnation >= o.config.StagnationWindow {
			result.Stagnated = true
			o.logger.Info().
				Int("window", o.config.StagnationWindow).
				Msg("Stagnation window reached, stopping")
			break
		}
	}

	result.BestVector = best.Vector
	result.BestFitness = best.Fitness

	o.logger.Info().
		Int("evaluations", result.Evaluations).
		Int("generations", result.Generations).
		Float64("best_fitness", result.BestFitness).
		Float64("alpha", result.BestVector.Alpha).
		Float64("tau_accept", result.BestVector.TauAccept).
		Float64("tau_transfer", result.BestVector.TauTransfer).
		Msg("Lotus-Effect search completed")

	return result, nil
}

// sampleUniform draws a vector uniformly within the bounds
func (o *Optimizer) sampleUniform(rng *rand.Rand) ParameterVector {
	lo, hi := o.config.Bounds.Lower.array(), o.config.Bounds.Upper.array()
	var arr [numDimensions]float64
	for d := 0; d < numDimensions; d++ {
		arr[d] = lo[d] + rng.Float64()*(hi[d]-lo[d])
	}
	return fromArray(arr)
}

// perturb moves a candidate toward the global best and adds a Levy step,
// then clamps the result into the bounds
func (o *Optimizer) perturb(rng *rand.Rand, current, best ParameterVector, eta float64) (ParameterVector, int) {
	arr, bestArr := current.array(), best.array()
	step := o.levyStep(rng)
	for d := 0; d < numDimensions; d++ {
		arr[d] += eta*(bestArr[d]-arr[d]) + step[d]
	}
	return o.config.Bounds.Clip(fromArray(arr))
}

// levyStep draws one heavy-tailed step using Mantegna's algorithm for
// symmetric Levy-stable variates: frequent small steps with occasional
// large exploratory jumps.
func (o *Optimizer) levyStep(rng *rand.Rand) [numDimensions]float64 {
	beta := o.config.LevyBeta
	sigma := math.Pow(
		math.Gamma(1+beta)*math.Sin(math.Pi*beta/2)/
			(math.Gamma((1+beta)/2)*beta*math.Pow(2, (beta-1)/2)),
		1/beta)

	var step [numDimensions]float64
	for d := 0; d < numDimensions; d++ {
		u := rng.NormFloat64() * sigma
		v := rng.NormFloat64()
		step[d] = o.config.StepScale * u / math.Pow(math.Abs(v), 1/beta)
	}
	return step
}

// evaluateAll computes fitness for each candidate. With Parallel enabled,
// evaluations fan out to workers writing only their own result slot; the
// caller merges in fixed order afterward.
func (o *Optimizer) evaluateAll(candidates []Candidate, objective Objective) []float64 {
	fits := make([]float64, len(candidates))
	if !o.config.Parallel || len(candidates) < 2 {
		for i := range candidates {
			fits[i] = objective(candidates[i].Vector)
		}
		return fits
	}

	workers := o.config.NumWorkers
	if workers < 1 {
		workers = len(candidates)
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				fits[i] = objective(candidates[i].Vector)
			}
		}()
	}
	for i := range candidates {
		indices <- i
	}
	close(indices)
	wg.Wait()

	return fits
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
