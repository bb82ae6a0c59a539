// Command hxc-bench drives synthetic get/put/search load against a
// cluster through the public hxc.Client API and prints latency and
// throughput statistics.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dreamware/hxc"
)

const (
	keyCoordinator  = "coordinator"
	keySpace        = "space"
	keyMode         = "mode"
	keyOps          = "ops"
	keyConcurrency  = "concurrency"
	keyValueBytes   = "value-bytes"
	keyKeyspace     = "keyspace"
	keyTimeout      = "timeout"
	keyFlushTimeout = "flush-timeout"
	keyVerbose      = "verbose"

	envPrefix = "HXCBENCH_"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand()
	ctx := withSignalCancel(context.Background())
	if err := cmd.ExecuteContext(ctx); err != nil {
		if err != context.Canceled {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		return 1
	}
	return 0
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hxc-bench",
		Short: "Benchmark a hyperspace-hashed cluster through the hxc client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), loadBenchConfig())
		},
	}

	flags := cmd.Flags()
	flags.String(keyCoordinator, "127.0.0.1:1982", "coordinator address")
	flags.String(keySpace, "phonebook", "space to benchmark")
	flags.String(keyMode, "put", "workload: get, put, or search")
	flags.Int(keyOps, 1000, "total operations to issue")
	flags.Int(keyConcurrency, 1, "number of pipelined operations in flight at once")
	flags.Int(keyValueBytes, 64, "size in bytes of generated put values")
	flags.Int(keyKeyspace, 1000, "number of distinct keys to cycle through")
	flags.Duration(keyTimeout, 30*time.Second, "overall Connect timeout")
	flags.Duration(keyFlushTimeout, 5*time.Second, "per-Flush timeout")
	flags.Bool(keyVerbose, false, "enable debug logging")

	mustBindFlag(keyCoordinator, flags.Lookup(keyCoordinator))
	mustBindFlag(keySpace, flags.Lookup(keySpace))
	mustBindFlag(keyMode, flags.Lookup(keyMode))
	mustBindFlag(keyOps, flags.Lookup(keyOps))
	mustBindFlag(keyConcurrency, flags.Lookup(keyConcurrency))
	mustBindFlag(keyValueBytes, flags.Lookup(keyValueBytes))
	mustBindFlag(keyKeyspace, flags.Lookup(keyKeyspace))
	mustBindFlag(keyTimeout, flags.Lookup(keyTimeout))
	mustBindFlag(keyFlushTimeout, flags.Lookup(keyFlushTimeout))
	mustBindFlag(keyVerbose, flags.Lookup(keyVerbose))

	return cmd
}

func mustBindFlag(key string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("hxc-bench: flag for key %s not found", key))
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if err := viper.BindEnv(key, envPrefix+key); err != nil {
		panic(err)
	}
}

type benchConfig struct {
	coordinator  string
	space        string
	mode         string
	ops          int
	concurrency  int
	valueBytes   int
	keyspace     int
	connTimeout  time.Duration
	flushTimeout time.Duration
	verbose      bool
}

func loadBenchConfig() benchConfig {
	return benchConfig{
		coordinator:  viper.GetString(keyCoordinator),
		space:        viper.GetString(keySpace),
		mode:         viper.GetString(keyMode),
		ops:          viper.GetInt(keyOps),
		concurrency:  viper.GetInt(keyConcurrency),
		valueBytes:   viper.GetInt(keyValueBytes),
		keyspace:     viper.GetInt(keyKeyspace),
		connTimeout:  viper.GetDuration(keyTimeout),
		flushTimeout: viper.GetDuration(keyFlushTimeout),
		verbose:      viper.GetBool(keyVerbose),
	}
}

func runBench(ctx context.Context, cfg benchConfig) error {
	logger, err := newBenchLogger(cfg.verbose)
	if err != nil {
		return fmt.Errorf("hxc-bench: build logger: %w", err)
	}
	defer logger.Sync()

	client := hxc.New(cfg.coordinator, hxc.WithLogger(logger))
	connectCtx, cancel := context.WithTimeout(ctx, cfg.connTimeout)
	defer cancel()
	if rc := client.Connect(connectCtx); rc != hxc.SUCCESS {
		return fmt.Errorf("hxc-bench: connect to %s: %s", cfg.coordinator, rc)
	}

	run, err := drive(client, cfg)
	if err != nil {
		return err
	}
	printStats(run)
	return nil
}

func newBenchLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// benchStats summarizes one workload run: throughput, latency
// percentiles, and outcome counts keyed by ReturnCode.
type benchStats struct {
	label     string
	ops       int
	elapsed   time.Duration
	opsPerSec float64
	avg       time.Duration
	min       time.Duration
	max       time.Duration
	p50       time.Duration
	p90       time.Duration
	p99       time.Duration
	outcomes  map[hxc.ReturnCode]int64
}

// drive issues cfg.ops operations of cfg.mode against client, cfg.concurrency
// at a time, and returns the aggregated latency/outcome statistics. Each
// worker owns no client state of its own; concurrency here means
// "operations dispatched before the next Flush", not parallel goroutines,
// since a Client is not safe for concurrent use.
func drive(client *hxc.Client, cfg benchConfig) (benchStats, error) {
	if cfg.ops <= 0 {
		return benchStats{}, fmt.Errorf("hxc-bench: ops must be positive")
	}
	batch := cfg.concurrency
	if batch <= 0 {
		batch = 1
	}

	rng := rand.New(rand.NewSource(1))
	payload := make([]byte, cfg.valueBytes)
	rng.Read(payload)

	samples := make([]time.Duration, 0, cfg.ops)
	outcomes := make(map[hxc.ReturnCode]int64)
	var mu sync.Mutex
	var issued int
	start := time.Now()

	for issued < cfg.ops {
		want := batch
		if issued+want > cfg.ops {
			want = cfg.ops - issued
		}
		dispatchStarts := make([]time.Time, want)
		for i := 0; i < want; i++ {
			i := i
			key := benchKey(rng, cfg.keyspace)
			dispatchStarts[i] = time.Now()
			// A synchronous failure is already reported through done, so
			// the dispatch return code is not counted a second time.
			dispatchOne(client, cfg, key, payload, func(rc hxc.ReturnCode) {
				mu.Lock()
				samples = append(samples, time.Since(dispatchStarts[i]))
				outcomes[rc]++
				mu.Unlock()
			})
		}
		if rc := client.Flush(cfg.flushTimeout); rc != hxc.SUCCESS {
			return benchStats{}, fmt.Errorf("hxc-bench: flush: %s", rc)
		}
		issued += want
	}

	elapsed := time.Since(start)
	return buildStats(cfg.mode, elapsed, samples, outcomes), nil
}

// dispatchOne issues a single operation of cfg.mode against key/payload,
// normalizing the three callback shapes hxc exposes down to a single
// ReturnCode reported through done.
func dispatchOne(client *hxc.Client, cfg benchConfig, key, payload []byte, done func(hxc.ReturnCode)) hxc.ReturnCode {
	switch cfg.mode {
	case "get":
		return client.Get(cfg.space, key, func(rc hxc.ReturnCode, values [][]byte) {
			done(rc)
		})
	case "put":
		return client.Put(cfg.space, key, [][]byte{payload}, func(rc hxc.ReturnCode) {
			done(rc)
		})
	case "search":
		equality := map[string][]byte{}
		return client.Search(cfg.space, equality, nil, nil, func(rc hxc.ReturnCode, k []byte, value [][]byte) {
			done(rc)
		})
	default:
		done(hxc.LOGICERROR)
		return hxc.LOGICERROR
	}
}

func benchKey(rng *rand.Rand, keyspace int) []byte {
	if keyspace <= 0 {
		keyspace = 1
	}
	return []byte(fmt.Sprintf("bench-%d", rng.Intn(keyspace)))
}

func buildStats(label string, elapsed time.Duration, samples []time.Duration, outcomes map[hxc.ReturnCode]int64) benchStats {
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	stats := benchStats{
		label:    label,
		ops:      len(samples),
		elapsed:  elapsed,
		outcomes: outcomes,
	}
	if elapsed > 0 {
		stats.opsPerSec = float64(len(samples)) / elapsed.Seconds()
	}
	if len(samples) > 0 {
		stats.avg = time.Duration(int64(total) / int64(len(samples)))
		stats.min = samples[0]
		stats.max = samples[len(samples)-1]
		stats.p50 = percentile(samples, 50)
		stats.p90 = percentile(samples, 90)
		stats.p99 = percentile(samples, 99)
	}
	return stats
}

func percentile(samples []time.Duration, pct float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if pct <= 0 {
		return samples[0]
	}
	if pct >= 100 {
		return samples[len(samples)-1]
	}
	pos := (pct / 100.0) * float64(len(samples)-1)
	idx := int(math.Round(pos))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	return samples[idx]
}

func printStats(s benchStats) {
	fmt.Printf("mode=%s ops=%d elapsed=%s ops/s=%.1f avg=%s p50=%s p90=%s p99=%s min=%s max=%s\n",
		s.label, s.ops, s.elapsed, s.opsPerSec, s.avg, s.p50, s.p90, s.p99, s.min, s.max)
	codes := make([]hxc.ReturnCode, 0, len(s.outcomes))
	for rc := range s.outcomes {
		codes = append(codes, rc)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, rc := range codes {
		fmt.Printf("  %s=%d\n", rc, s.outcomes[rc])
	}
}
