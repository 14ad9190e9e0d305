// Package sim provides the discrete-event kernel of the limit-order market
// simulator.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - simulator.go: Simulator, Run and the per-step loop (runContext)
//   - rng.go: PartitionedRNG and seekable Streams, the source of all randomness
//   - result.go: RunResult and the aggregator that builds it
//
// # Architecture
//
// The sim package owns scheduling and bookkeeping; the moving parts live in
// sub-packages:
//   - sim/book/: order book and price-time matching engine
//   - sim/agent/: MarketMaker, Taker and NoiseTrader behind the Agent interface
//   - sim/trace/: optional order-flow trace
//   - sim/analysis/: post-run statistics over a RunResult
//   - sim/export/: tabular conversion, CSV files and the summary report
//   - sim/runner/: concurrent run registry with status and metrics
//
// # Determinism
//
// A run is a pure function of SimulationConfig, the three agent configs and
// the step count. Every stochastic draw comes from a named Stream derived
// from the seed, agents are queried in a fixed order (market maker, taker,
// noise trader), and intents reach the book in the order they were produced.
// Throughput comes from running independent seeds concurrently, never from
// parallelism inside a run.
package sim
