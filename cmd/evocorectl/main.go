package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"evocore/internal/driver"
	"evocore/internal/persist"
	"evocore/pkg/evocore"
)

const (
	defaultDBPath = "evocore.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "benchmark":
		return runBenchmark(ctx, args[1:])
	case "monitor":
		return runMonitorDemo(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evocorectl <init|run|benchmark|monitor> [flags]", msg)
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", persist.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := evocore.NewClient(ctx, evocore.Options{StoreKind: *storeKind, StorePath: *dbPath})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func commonRunFlags(fs *flag.FlagSet) (benchmark, runID, storeKind, dbPath *string, population, genomeSize, generations, tournament *int, experimentation *float64, seed *int64) {
	benchmark = fs.String("benchmark", "sphere", "benchmark fitness function: sphere|rastrigin")
	runID = fs.String("run-id", "", "explicit run id (defaults to a generated uuid)")
	storeKind = fs.String("store", persist.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", defaultDBPath, "sqlite database path")
	population = fs.Int("pop", 50, "population size")
	genomeSize = fs.Int("genome-size", 16, "genome byte length")
	generations = fs.Int("gens", 100, "generation count")
	tournament = fs.Int("tournament", 3, "tournament selection size")
	experimentation = fs.Float64("experimentation-rate", 0.05, "probability of a random reinit instead of crossover")
	seed = fs.Int64("seed", 1, "rng seed")
	return
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	benchmark, runID, storeKind, dbPath, population, genomeSize, generations, tournament, experimentation, seed := commonRunFlags(fs)
	negRegistry := fs.Bool("negative-registry", true, "track and penalize repeated failure patterns")
	temporalLearning := fs.Bool("temporal", true, "track best fitness in time-bucketed history")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fitness, err := benchmarkFitness(*benchmark)
	if err != nil {
		return err
	}

	client, err := evocore.NewClient(ctx, evocore.Options{StoreKind: *storeKind, StorePath: *dbPath})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	id := *runID
	if id == "" {
		id = uuid.NewString()
	}

	req := evocore.RunRequest{
		RunID:               id,
		PopulationSize:      *population,
		GenomeSize:          *genomeSize,
		Generations:         *generations,
		TournamentSize:      *tournament,
		ExperimentationRate: *experimentation,
		Fitness:             fitness,
		Seed:                *seed,
		NegativeRegistry:    *negRegistry,
	}
	if *temporalLearning {
		req.ContextParamCount = 2
		req.TemporalRetention = 50
	}

	result, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s generations=%d best=%.6f avg=%.6f\n", id, result.Generations, result.BestFitness, result.AvgFitness)
	if result.NegRegistry != nil {
		fmt.Printf("negative_patterns=%s\n", humanize.Comma(int64(result.NegRegistry.Len())))
	}
	return nil
}

func runBenchmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	benchmark, _, _, _, population, genomeSize, generations, tournament, experimentation, seed := commonRunFlags(fs)
	trials := fs.Int("trials", 5, "number of independent repetitions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fitness, err := benchmarkFitness(*benchmark)
	if err != nil {
		return err
	}

	var sum, best float64
	for t := 0; t < *trials; t++ {
		cfg := driver.DefaultConfig()
		cfg.PopulationSize = *population
		cfg.GenomeSize = *genomeSize
		cfg.MaxGenerations = *generations
		cfg.TournamentK = *tournament
		cfg.ExperimentationRate = *experimentation

		drv, err := driver.New(cfg, fitness, nil, *seed+int64(t))
		if err != nil {
			return err
		}
		for g := 0; g < *generations; g++ {
			if _, err := drv.RunGeneration(ctx); err != nil {
				return err
			}
		}
		trialBest := drv.Population().BestFitness()
		sum += trialBest
		if t == 0 || trialBest > best {
			best = trialBest
		}
	}
	fmt.Printf("benchmark=%s trials=%s mean_best=%.6f overall_best=%.6f\n",
		*benchmark, humanize.Comma(int64(*trials)), sum/float64(*trials), best)
	return nil
}

func runMonitorDemo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	benchmark, _, _, _, population, genomeSize, generations, tournament, experimentation, seed := commonRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fitness, err := benchmarkFitness(*benchmark)
	if err != nil {
		return err
	}

	events := make(chan driver.Event, 1)
	sink := func(ev driver.Event) {
		events <- ev
	}

	cfg := driver.DefaultConfig()
	cfg.PopulationSize = *population
	cfg.GenomeSize = *genomeSize
	cfg.MaxGenerations = *generations
	cfg.TournamentK = *tournament
	cfg.ExperimentationRate = *experimentation

	drv, err := driver.New(cfg, fitness, nil, *seed, driver.WithEventSink(sink))
	if err != nil {
		return err
	}

	go func() {
		for g := 0; g < *generations; g++ {
			if _, err := drv.RunGeneration(ctx); err != nil {
				break
			}
		}
		close(events)
	}()

	program := tea.NewProgram(newMonitorModel(events, *generations))
	_, err = program.Run()
	return err
}
