package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lobsim/lobsim/sim"
	"github.com/lobsim/lobsim/sim/analysis"
	"github.com/lobsim/lobsim/sim/export"
	"github.com/lobsim/lobsim/sim/runner"
	"github.com/lobsim/lobsim/sim/trace"
)

var (
	logLevel   string // Log verbosity level
	outputDir  string // Directory for CSV files and reports
	noCSV      bool   // Skip writing CSV files
	runFlags   scenarioFlags
	benchFlags scenarioFlags
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "lobsim",
	Short: "Deterministic limit-order-book market simulator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd executes one simulation using a preset and/or CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one market simulation",
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := runFlags.resolve(cmd)
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}

		logrus.Infof("Starting simulation: %d steps, seed=%d, time_step=%dns, trace=%s",
			sc.Steps, sc.Simulation.Seed, sc.Simulation.TimeStep, sc.Simulation.TraceLevel)

		res, err := sc.Run(nil)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		printRunSummary(res)

		if !noCSV {
			paths, err := export.WriteCSV(outputDir, export.NewTables(res))
			if err != nil {
				logrus.Fatalf("Saving results: %v", err)
			}
			for _, name := range []string{export.TradesFile, export.SnapshotsFile, export.PnLFile, export.SummaryFile, export.HeaderFile} {
				logrus.Infof("Wrote %s", paths[name])
			}
			fmt.Printf("\nResults saved to: %s\n", filepath.Clean(outputDir))
		}

		logrus.Info("Simulation complete.")
	},
}

// printRunSummary writes the headline counters and liquidity metrics to stdout.
func printRunSummary(res *sim.RunResult) {
	fmt.Println("Simulation Summary")
	fmt.Println("------------------------------")
	fmt.Printf("Total Events Processed: %d\n", res.TotalEventsProcessed)
	fmt.Printf("Total Trades: %d\n", res.TotalTrades)
	fmt.Printf("Total Volume: %d\n", res.TotalVolume)
	fmt.Printf("Rejected Orders: %d\n", res.RejectedOrders)
	fmt.Printf("Cancelled Orders: %d\n", res.CancelledOrders)
	fmt.Printf("Simulation Duration: %d ns\n", res.SimulationDuration)
	fmt.Printf("Execution Time: %.3f seconds\n", res.SimulationTimeSeconds)
	fmt.Printf("Events per second: %.0f\n", res.EventsPerSecond())

	spread := analysis.Spreads(res.MarketSnapshots)
	if spread.Samples > 0 {
		liq := analysis.Liquidity(res.MarketSnapshots)
		fmt.Println("\nLiquidity Metrics:")
		fmt.Printf("Average Spread: %.2f\n", spread.Mean)
		fmt.Printf("Average Depth: %.2f\n", liq.MeanDepth)
		fmt.Printf("Spread Volatility: %.2f\n", spread.StdDev)
	}

	for _, st := range res.FinalAgents {
		fmt.Printf("%-13s pnl=%.2f inventory=%d\n", res.AgentNames[st.ID], st.PnL, st.Inventory)
	}

	if res.Trace != nil {
		ts := trace.Summarize(res.Trace)
		fmt.Println("\nOrder Trace:")
		fmt.Printf("Orders: %d (rejected %d, filled %d, partial %d, unfilled %d)\n",
			ts.TotalOrders, ts.RejectedCount, ts.FullyFilled, ts.PartiallyFilled, ts.Unfilled)
		fmt.Printf("Mean fill ratio: %.3f, rested: %d\n", ts.MeanFillRatio, ts.Rested)
		fmt.Printf("Cancels: %d (%d hit)\n", ts.TotalCancels, ts.CancelHits)
		if res.Trace.Dropped > 0 {
			fmt.Printf("Records dropped at cap: %d\n", res.Trace.Dropped)
		}
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runFlags.register(runCmd)
	runCmd.Flags().StringVar(&outputDir, "output-dir", "output", "Directory for CSV files and the summary report")
	runCmd.Flags().BoolVar(&noCSV, "no-csv", false, "Skip writing CSV files")

	rootCmd.AddCommand(runCmd)
	registerBench(rootCmd)
	registerReport(rootCmd)
	registerServe(rootCmd)
}

// scenarioFlags are the CLI knobs that override a preset. Only flags the user
// actually set are applied, so preset values survive unless overridden.
type scenarioFlags struct {
	preset      string
	presetsPath string

	steps               int64
	seed                int64
	timeStep            int64
	maxSteps            int64
	snapshotInterval    int64
	initialPrice        int64
	referenceVolatility float64
	traceLevel          string
	traceMaxRecords     int

	makerSpread           int64
	makerQuantity         int64
	makerRefresh          int64
	makerMaxInventory     int64
	makerInventoryPenalty float64

	takerIntensity       float64
	takerSideBias        float64
	takerQuantityMean    float64
	takerQuantityStd     float64
	takerUseMarketOrders bool

	noiseLimitIntensity    float64
	noiseCancelIntensity   float64
	noiseQuantityMean      float64
	noiseQuantityStd       float64
	noisePriceVolatility   float64
	noiseCancelProbability float64
}

func (o *scenarioFlags) register(c *cobra.Command) {
	d := runner.DefaultScenario()
	f := c.Flags()

	f.StringVar(&o.preset, "preset", "", "Scenario preset: a name from the presets file or a path to a .yaml scenario")
	f.StringVar(&o.presetsPath, "presets-filepath", "defaults.yaml", "Path to the named presets file")

	f.Int64Var(&o.steps, "steps", d.Steps, "Number of simulation steps")
	f.Int64Var(&o.seed, "seed", d.Simulation.Seed, "Master random seed")
	f.Int64Var(&o.timeStep, "time-step", d.Simulation.TimeStep, "Simulated nanoseconds per step")
	f.Int64Var(&o.maxSteps, "max-steps", d.Simulation.MaxSteps, "Hard cap on steps per run")
	f.Int64Var(&o.snapshotInterval, "snapshot-interval", d.Simulation.SnapshotInterval, "Steps between market snapshots")
	f.Int64Var(&o.initialPrice, "initial-price", d.Simulation.InitialPrice, "Initial reference price in ticks")
	f.Float64Var(&o.referenceVolatility, "reference-volatility", d.Simulation.ReferenceVolatility, "Per-step std dev of the reference price walk (0 = off)")
	f.StringVar(&o.traceLevel, "trace", string(d.Simulation.TraceLevel), "Order trace level (none, orders)")
	f.IntVar(&o.traceMaxRecords, "trace-max-records", d.Simulation.TraceMaxRecords, "Cap on trace records (0 = unbounded)")

	f.Int64Var(&o.makerSpread, "maker-spread", d.MarketMaker.Spread, "Market maker quoted spread in ticks")
	f.Int64Var(&o.makerQuantity, "maker-quantity", d.MarketMaker.Quantity, "Market maker quote size")
	f.Int64Var(&o.makerRefresh, "maker-refresh", d.MarketMaker.RefreshInterval, "Market maker requote interval in ns")
	f.Int64Var(&o.makerMaxInventory, "maker-max-inventory", d.MarketMaker.MaxInventory, "Inventory above which quotes are skewed")
	f.Float64Var(&o.makerInventoryPenalty, "maker-inventory-penalty", d.MarketMaker.InventoryPenalty, "Ticks of skew per unit of inventory")

	f.Float64Var(&o.takerIntensity, "taker-intensity", d.Taker.Intensity, "Taker arrivals per step")
	f.Float64Var(&o.takerSideBias, "taker-side-bias", d.Taker.SideBias, "Probability a taker arrival buys")
	f.Float64Var(&o.takerQuantityMean, "taker-quantity-mean", d.Taker.QuantityMean, "Taker mean order size")
	f.Float64Var(&o.takerQuantityStd, "taker-quantity-std", d.Taker.QuantityStd, "Taker order size std dev")
	f.BoolVar(&o.takerUseMarketOrders, "taker-market-orders", d.Taker.UseMarketOrders, "Taker sends market orders (false: crossing limits)")

	f.Float64Var(&o.noiseLimitIntensity, "noise-limit-intensity", d.NoiseTrader.LimitIntensity, "Noise trader limit arrivals per step")
	f.Float64Var(&o.noiseCancelIntensity, "noise-cancel-intensity", d.NoiseTrader.CancelIntensity, "Noise trader cancel arrivals per step")
	f.Float64Var(&o.noiseQuantityMean, "noise-quantity-mean", d.NoiseTrader.QuantityMean, "Noise trader mean order size")
	f.Float64Var(&o.noiseQuantityStd, "noise-quantity-std", d.NoiseTrader.QuantityStd, "Noise trader order size std dev")
	f.Float64Var(&o.noisePriceVolatility, "noise-price-volatility", d.NoiseTrader.PriceVolatility, "Std dev of noise prices around the mid, in ticks")
	f.Float64Var(&o.noiseCancelProbability, "noise-cancel-probability", d.NoiseTrader.CancelProbability, "Probability a cancel arrival cancels")
}

func (o *scenarioFlags) overrides() map[string]func(*runner.Scenario) {
	return map[string]func(*runner.Scenario){
		"steps":                func(s *runner.Scenario) { s.Steps = o.steps },
		"seed":                 func(s *runner.Scenario) { s.Simulation.Seed = o.seed },
		"time-step":            func(s *runner.Scenario) { s.Simulation.TimeStep = o.timeStep },
		"max-steps":            func(s *runner.Scenario) { s.Simulation.MaxSteps = o.maxSteps },
		"snapshot-interval":    func(s *runner.Scenario) { s.Simulation.SnapshotInterval = o.snapshotInterval },
		"initial-price":        func(s *runner.Scenario) { s.Simulation.InitialPrice = o.initialPrice },
		"reference-volatility": func(s *runner.Scenario) { s.Simulation.ReferenceVolatility = o.referenceVolatility },
		"trace":                func(s *runner.Scenario) { s.Simulation.TraceLevel = trace.TraceLevel(o.traceLevel) },
		"trace-max-records":    func(s *runner.Scenario) { s.Simulation.TraceMaxRecords = o.traceMaxRecords },

		"maker-spread":            func(s *runner.Scenario) { s.MarketMaker.Spread = o.makerSpread },
		"maker-quantity":          func(s *runner.Scenario) { s.MarketMaker.Quantity = o.makerQuantity },
		"maker-refresh":           func(s *runner.Scenario) { s.MarketMaker.RefreshInterval = o.makerRefresh },
		"maker-max-inventory":     func(s *runner.Scenario) { s.MarketMaker.MaxInventory = o.makerMaxInventory },
		"maker-inventory-penalty": func(s *runner.Scenario) { s.MarketMaker.InventoryPenalty = o.makerInventoryPenalty },

		"taker-intensity":     func(s *runner.Scenario) { s.Taker.Intensity = o.takerIntensity },
		"taker-side-bias":     func(s *runner.Scenario) { s.Taker.SideBias = o.takerSideBias },
		"taker-quantity-mean": func(s *runner.Scenario) { s.Taker.QuantityMean = o.takerQuantityMean },
		"taker-quantity-std":  func(s *runner.Scenario) { s.Taker.QuantityStd = o.takerQuantityStd },
		"taker-market-orders": func(s *runner.Scenario) { s.Taker.UseMarketOrders = o.takerUseMarketOrders },

		"noise-limit-intensity":    func(s *runner.Scenario) { s.NoiseTrader.LimitIntensity = o.noiseLimitIntensity },
		"noise-cancel-intensity":   func(s *runner.Scenario) { s.NoiseTrader.CancelIntensity = o.noiseCancelIntensity },
		"noise-quantity-mean":      func(s *runner.Scenario) { s.NoiseTrader.QuantityMean = o.noiseQuantityMean },
		"noise-quantity-std":       func(s *runner.Scenario) { s.NoiseTrader.QuantityStd = o.noiseQuantityStd },
		"noise-price-volatility":   func(s *runner.Scenario) { s.NoiseTrader.PriceVolatility = o.noisePriceVolatility },
		"noise-cancel-probability": func(s *runner.Scenario) { s.NoiseTrader.CancelProbability = o.noiseCancelProbability },
	}
}

// resolve builds the scenario for c: the preset (or defaults), then every
// flag the user changed.
func (o *scenarioFlags) resolve(c *cobra.Command) (runner.Scenario, error) {
	sc := runner.DefaultScenario()
	if o.preset != "" {
		var err error
		if sc, err = loadPreset(o.preset, o.presetsPath); err != nil {
			return runner.Scenario{}, err
		}
	}
	for name, apply := range o.overrides() {
		if c.Flags().Changed(name) {
			apply(&sc)
		}
	}
	return sc, sc.Validate()
}
