package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/lobsim/lobsim/sim/runner"
)

var (
	benchIterations  int
	benchConcurrency int
	benchOutputDir   string
)

// BenchResult aggregates wall-clock timings over benchmark iterations.
type BenchResult struct {
	Iterations      int
	MeanTime        float64
	StdTime         float64
	MinTime         float64
	MaxTime         float64
	TotalEvents     int64
	EventsPerSecond float64
}

// runBench executes sc iterations times with seeds Seed, Seed+1, ... and at
// most concurrency runs in flight. Runs are independent, so the per-seed
// results do not depend on concurrency.
func runBench(sc runner.Scenario, iterations, concurrency int) (BenchResult, error) {
	if iterations <= 0 {
		return BenchResult{}, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	times := make([]float64, iterations)
	events := make([]int64, iterations)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for i := 0; i < iterations; i++ {
		i := i
		run := sc
		run.Simulation.Seed = sc.Simulation.Seed + int64(i)
		g.Go(func() error {
			res, err := run.Run(logrus.NewEntry(quiet))
			if err != nil {
				return fmt.Errorf("iteration %d (seed %d): %w", i, run.Simulation.Seed, err)
			}
			times[i] = res.SimulationTimeSeconds
			events[i] = res.TotalEventsProcessed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BenchResult{}, err
	}

	br := BenchResult{Iterations: iterations, MinTime: times[0], MaxTime: times[0]}
	var wall float64
	for i, t := range times {
		br.MinTime = min(br.MinTime, t)
		br.MaxTime = max(br.MaxTime, t)
		br.TotalEvents += events[i]
		wall += t
	}
	br.MeanTime, br.StdTime = stat.PopMeanStdDev(times, nil)
	if wall > 0 {
		br.EventsPerSecond = float64(br.TotalEvents) / wall
	}
	return br, nil
}

func (br BenchResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Benchmark Results (%d iterations):\n", br.Iterations)
	fmt.Fprintf(&b, "  Mean Time: %.3f seconds\n", br.MeanTime)
	fmt.Fprintf(&b, "  Std Time: %.3f seconds\n", br.StdTime)
	fmt.Fprintf(&b, "  Min Time: %.3f seconds\n", br.MinTime)
	fmt.Fprintf(&b, "  Max Time: %.3f seconds\n", br.MaxTime)
	fmt.Fprintf(&b, "  Events/Second: %.0f\n", br.EventsPerSecond)
	return b.String()
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the simulator over several seeds",
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := benchFlags.resolve(cmd)
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		logrus.Infof("Benchmarking %d iterations of %d steps, concurrency %d", benchIterations, sc.Steps, benchConcurrency)

		br, err := runBench(sc, benchIterations, benchConcurrency)
		if err != nil {
			logrus.Fatalf("Benchmark failed: %v", err)
		}
		fmt.Print(br.String())

		if err := os.MkdirAll(benchOutputDir, 0o755); err != nil {
			logrus.Fatalf("Creating output directory: %v", err)
		}
		path := filepath.Join(benchOutputDir, "benchmark_results.txt")
		report := fmt.Sprintf("Steps: %d\nSeed: %d\nConcurrency: %d\n\n%s", sc.Steps, sc.Simulation.Seed, benchConcurrency, br.String())
		if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
			logrus.Fatalf("Writing benchmark results: %v", err)
		}
		fmt.Printf("\nBenchmark results saved to: %s\n", path)
	},
}

func registerBench(root *cobra.Command) {
	benchFlags.register(benchCmd)
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 5, "Number of benchmark iterations")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 1, "Maximum runs in flight")
	benchCmd.Flags().StringVar(&benchOutputDir, "output-dir", "output", "Directory for benchmark_results.txt")
	root.AddCommand(benchCmd)
}
