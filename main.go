package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gilchrisn/overlap-community-service/pkg/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	opts := pipeline.Options{NetworkPath: os.Args[1]}
	config := pipeline.NewConfig()

	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--annotations":
			i++
			if i >= len(args) {
				fmt.Println("Error: --annotations requires a file path")
				os.Exit(1)
			}
			opts.AnnotationPath = args[i]
		case "--partition":
			i++
			if i >= len(args) {
				fmt.Println("Error: --partition requires a file path")
				os.Exit(1)
			}
			opts.PartitionPath = args[i]
		case "--reference":
			i++
			if i >= len(args) {
				fmt.Println("Error: --reference requires a file path")
				os.Exit(1)
			}
			opts.ReferencePath = args[i]
		case "--config":
			i++
			if i >= len(args) {
				fmt.Println("Error: --config requires a file path")
				os.Exit(1)
			}
			if err := config.LoadFromFile(args[i]); err != nil {
				fmt.Printf("Error: failed to load config: %v\n", err)
				os.Exit(1)
			}
		case "--seed":
			i++
			if i >= len(args) {
				fmt.Println("Error: --seed requires an integer")
				os.Exit(1)
			}
			config.Set("search.random_seed", args[i])
		default:
			fmt.Printf("Unknown argument: %s\n", args[i])
			printUsage()
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.New(config).Run(ctx, opts)
	if err != nil {
		fmt.Printf("Pipeline failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Overlapping Community Refinement")
	fmt.Println("================================")
	fmt.Printf("Run ID:            %s\n", result.RunID)
	fmt.Printf("Best fitness:      %.6f\n", result.BestFitness)
	fmt.Printf("  alpha:           %.4f\n", result.BestVector.Alpha)
	fmt.Printf("  tau_accept:      %.4f\n", result.BestVector.TauAccept)
	fmt.Printf("  tau_transfer:    %.4f\n", result.BestVector.TauTransfer)
	fmt.Printf("Clusters:          %d\n", result.NumClusters)
	fmt.Printf("Overlapping nodes: %d\n", result.Overlapping)
	fmt.Printf("Evaluations:       %d\n", result.Evaluations)
	fmt.Printf("Runtime:           %v\n", result.Runtime)
	fmt.Printf("Reports:           %s\n", result.OutputDir)
}

func printUsage() {
	fmt.Println("Overlapping Community Refinement Service")
	fmt.Println()
	fmt.Println("Usage: overlap-community-service <network_file> [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --annotations <file>  GAF annotation file (plain or gzip)")
	fmt.Println("  --partition <file>    precomputed partition CSV, skips MCL")
	fmt.Println("  --reference <file>    reference partition CSV for evaluation")
	fmt.Println("  --config <file>       configuration file (yaml/json/toml)")
	fmt.Println("  --seed <n>            random seed for the parameter search")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  overlap-community-service data/network.tsv --annotations data/goa.gaf.gz")
	fmt.Println("  overlap-community-service data/network.tsv --partition data/clusters.csv --seed 42")
}
