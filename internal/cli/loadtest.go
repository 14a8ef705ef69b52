package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/storage/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	tokens      int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

func newLoadtestCmd() *cobra.Command {
	opts := &loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure authenticate and invalidate latency against a Redis blacklist",
		Long: `Issue a batch of tokens, then run three concurrent phases:
authenticate, invalidate every token once, and authenticate again expecting
every token to be blacklisted.

Without --redis-addr, REDIS_ADDR is used, and without either an in-process
miniredis is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.tokens <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("tokens, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.tokens, "tokens", 10000, "number of tokens to issue")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 50000, "operations for each authenticate phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "gotoken-lt", "blacklist key prefix")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts *loadtestOptions) error {
	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	secret, err := internal.NewSecret(internal.MinSecretSize)
	if err != nil {
		return err
	}
	cfg := goToken.DefaultConfig()
	cfg.Signing.PrivateKey = secret
	cfg.Metrics.Enabled = true

	engine, err := goToken.New().
		WithConfig(cfg).
		WithStore(redisstore.New(client, opts.prefix)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "issuing %d tokens...\n", opts.tokens)
	seedStart := time.Now()
	tokens := make([]string, opts.tokens)
	for i := range tokens {
		t, err := engine.Issue(ctx, map[string]any{goToken.ClaimSubject: fmt.Sprintf("user-%d", i)})
		if err != nil {
			return fmt.Errorf("issue: %w", err)
		}
		tokens[i] = t.String()
	}
	fmt.Fprintf(out, "issued in %s\n", time.Since(seedStart).Round(time.Millisecond))

	authStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	revokeStats := runPhase(len(tokens), opts.concurrency, func(_ *rand.Rand, i int) error {
		return engine.Invalidate(ctx, tokens[i])
	})
	rejectStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		if errors.Is(err, goToken.ErrTokenBlacklisted) {
			return nil
		}
		if err == nil {
			return errors.New("revoked token accepted")
		}
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "authenticate", authStats)
	printStats(out, "invalidate", revokeStats)
	printStats(out, "authenticate-revoked", rejectStats)
	return nil
}

// runPhase calls fn ops times across concurrency workers. i is the
// operation index; errors count as failures.
func runPhase(ops, concurrency int, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					break
				}
				t0 := time.Now()
				if err := fn(r, i); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
