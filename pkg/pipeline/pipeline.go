// Package pipeline wires the full refinement flow: load a network and its
// annotations, produce an initial hard partition, tune the scoring
// parameters, and derive and report the final overlapping assignment.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/overlap-community-service/pkg/affinity"
	"github.com/gilchrisn/overlap-community-service/pkg/annotation"
	"github.com/gilchrisn/overlap-community-service/pkg/evaluation"
	"github.com/gilchrisn/overlap-community-service/pkg/fitness"
	"github.com/gilchrisn/overlap-community-service/pkg/graph"
	"github.com/gilchrisn/overlap-community-service/pkg/lotus"
	"github.com/gilchrisn/overlap-community-service/pkg/mcl"
	"github.com/gilchrisn/overlap-community-service/pkg/overlap"
)

// Options are the per-run inputs. Everything else comes from Config.
type Options struct {
	NetworkPath    string `validate:"required"`
	AnnotationPath string // GAF file; empty runs structure-only
	PartitionPath  string // precomputed partition CSV; empty runs MCL
	ReferencePath  string // reference partition CSV for evaluation; optional
}

// Result summarizes a completed run
type Result struct {
	RunID       string                `json:"run_id"`
	BestVector  lotus.ParameterVector `json:"best_vector"`
	BestFitness float64               `json:"best_fitness"`
	Breakdown   fitness.Breakdown     `json:"breakdown"`
	Metrics     *evaluation.Metrics   `json:"metrics"`
	Evaluations int                   `json:"evaluations"`
	Generations int                   `json:"generations"`
	NumClusters int                   `json:"num_clusters"`
	Overlapping int                   `json:"overlapping_nodes"`
	Runtime     time.Duration         `json:"runtime"`
	OutputDir   string                `json:"output_dir"`
}

// Pipeline runs the end-to-end refinement
type Pipeline struct {
	config   *Config
	logger   zerolog.Logger
	validate *validator.Validate
}

// New creates a pipeline from configuration
func New(config *Config) *Pipeline {
	return &Pipeline{
		config:   config,
		logger:   config.CreateLogger(),
		validate: validator.New(),
	}
}

// Run executes the full pipeline and writes all report files
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := p.validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	runID := uuid.New().String()
	start := time.Now()
	logger := p.logger.With().Str("run_id", runID).Logger()

	logger.Info().
		Str("network", opts.NetworkPath).
		Str("annotations", opts.AnnotationPath).
		Msg("Starting overlap refinement pipeline")

	// Step 1: load the network
	g, err := graph.LoadEdgeList(opts.NetworkPath, p.config.NormalizeWeights())
	if err != nil {
		return nil, fmt.Errorf("failed to load network: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network: %w", err)
	}
	logger.Info().
		Int("nodes", g.NumNodes()).
		Int("edges", g.NumEdges).
		Msg("Network loaded")

	// Step 2: load annotations
	var sets annotation.Sets
	if opts.AnnotationPath != "" {
		sets, err = annotation.LoadGAF(opts.AnnotationPath, annotation.GAFOptions{
			UseSymbol: p.config.GAFUseSymbol(),
			TaxonID:   p.config.GAFTaxon(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load annotations: %w", err)
		}
		logger.Info().
			Int("annotated_nodes", sets.NumAnnotated()).
			Msg("Annotations loaded")
	} else {
		logger.Warn().Msg("No annotation file given, running structure-only")
	}

	// Step 3: initial hard partition
	part, err := p.initialPartition(ctx, g, opts, logger)
	if err != nil {
		return nil, err
	}
	if min := p.config.MinClusterSize(); min > 1 {
		before := part.NumClusters()
		part = part.FilterMinSize(min)
		logger.Info().
			Int("before", before).
			Int("after", part.NumClusters()).
			Int("min_size", min).
			Msg("Filtered small clusters")
	}
	if err := part.Validate(g); err != nil {
		return nil, fmt.Errorf("invalid partition: %w", err)
	}

	// Step 4: precompute scoring state
	importance := annotation.BuildTermImportance(part, sets)
	model := affinity.NewModel(g, part, sets, importance)
	assigner := overlap.NewAssigner(model)
	fitFn := fitness.NewFunction(g, model, fitness.Config{
		LambdaInter:    p.config.LambdaInter(),
		LambdaFragment: p.config.LambdaFragment(),
	})

	// Step 5: parameter search
	objective := func(v lotus.ParameterVector) float64 {
		a := assigner.Assign(v.Alpha, v.TauAccept, v.TauTransfer)
		return fitFn.Score(a, v.Alpha)
	}

	optConfig := lotus.Config{
		PopulationSize:   p.config.PopulationSize(),
		MaxEvaluations:   p.config.MaxEvaluations(),
		StagnationWindow: p.config.StagnationWindow(),
		Bounds: lotus.Bounds{
			Lower: lotus.ParameterVector{
				Alpha:       p.config.AlphaMin(),
				TauAccept:   p.config.TauAcceptMin(),
				TauTransfer: p.config.TauTransferMin(),
			},
			Upper: lotus.ParameterVector{
				Alpha:       p.config.AlphaMax(),
				TauAccept:   p.config.TauAcceptMax(),
				TauTransfer: p.config.TauTransferMax(),
			},
		},
		LevyBeta:        p.config.LevyBeta(),
		StepScale:       p.config.StepScale(),
		Attraction:      p.config.Attraction(),
		AttractionDecay: p.config.AttractionDecay(),
		RandomSeed:      p.config.RandomSeed(),
		Parallel:        p.config.Parallel(),
		NumWorkers:      p.config.NumWorkers(),
	}
	if p.config.EnableProgress() {
		optConfig.ProgressCallback = func(generation, evaluations int, best float64) {
			logger.Info().
				Int("generation", generation).
				Int("evaluations", evaluations).
				Float64("best_fitness", best).
				Msg("Search progress")
		}
	}

	searchResult := &lotus.Result{BestVector: optConfig.Bounds.Lower}
	if p.config.SearchEnabled() {
		optimizer, err := lotus.New(optConfig, logger)
		if err != nil {
			return nil, err
		}
		searchResult, err = optimizer.Run(ctx, objective)
		if err != nil {
			return nil, fmt.Errorf("parameter search failed: %w", err)
		}
	} else {
		searchResult.BestFitness = objective(searchResult.BestVector)
		searchResult.Evaluations = 1
		logger.Info().
			Float64("alpha", searchResult.BestVector.Alpha).
			Float64("tau_accept", searchResult.BestVector.TauAccept).
			Float64("tau_transfer", searchResult.BestVector.TauTransfer).
			Msg("Search disabled, using lower-bound parameters")
	}

	// Step 6: final assignment at the best parameters
	best := searchResult.BestVector
	final := assigner.Assign(best.Alpha, best.TauAccept, best.TauTransfer)
	breakdown := fitFn.Evaluate(final, best.Alpha)

	// Step 7: evaluation metrics
	evaluator := evaluation.NewEvaluator(g, sets, logger)
	if opts.ReferencePath != "" {
		ref, err := graph.LoadPartitionCSV(opts.ReferencePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference partition: %w", err)
		}
		evaluator = evaluator.WithReference(ref)
	}
	metrics := evaluator.Evaluate(final)

	result := &Result{
		RunID:       runID,
		BestVector:  best,
		BestFitness: searchResult.BestFitness,
		Breakdown:   breakdown,
		Metrics:     metrics,
		Evaluations: searchResult.Evaluations,
		Generations: searchResult.Generations,
		NumClusters: metrics.NumClusters,
		Overlapping: metrics.OverlapCount,
		Runtime:     time.Since(start),
		OutputDir:   filepath.Join(p.config.OutputDir(), runID),
	}

	// Step 8: reports
	if err := os.MkdirAll(result.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	writer := newOutputWriter(result.OutputDir, p.config.TopTerms())
	if err := writer.WriteAll(result, part, importance, model, final, best.Alpha); err != nil {
		return nil, fmt.Errorf("failed to write outputs: %w", err)
	}

	logger.Info().
		Float64("best_fitness", result.BestFitness).
		Float64("alpha", best.Alpha).
		Float64("tau_accept", best.TauAccept).
		Float64("tau_transfer", best.TauTransfer).
		Int("overlapping_nodes", result.Overlapping).
		Dur("runtime", result.Runtime).
		Str("output_dir", result.OutputDir).
		Msg("Pipeline completed")

	return result, nil
}

// initialPartition loads a precomputed partition or runs MCL
func (p *Pipeline) initialPartition(ctx context.Context, g *graph.Graph, opts Options, logger zerolog.Logger) (*graph.Partition, error) {
	if opts.PartitionPath != "" {
		part, err := graph.LoadPartitionCSV(opts.PartitionPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load partition: %w", err)
		}
		logger.Info().
			Int("clusters", part.NumClusters()).
			Str("path", opts.PartitionPath).
			Msg("Loaded precomputed partition")
		return part, nil
	}

	clusterer := mcl.NewClusterer(p.config.Inflation(), logger)
	clusterer.BinaryPath = p.config.MCLBinary()
	if p.config.AllowFallback() {
		return clusterer.ClusterWithFallback(ctx, g)
	}
	return clusterer.Cluster(ctx, g)
}
