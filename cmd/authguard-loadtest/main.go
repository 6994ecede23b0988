package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authguard"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type nopUsers struct{}

func (nopUsers) GetUserByEmail(context.Context, string) (authguard.UserRecord, error) {
	return authguard.UserRecord{}, authguard.ErrUserNotFound
}

func (nopUsers) MarkEmailVerified(context.Context, string) error { return nil }

func main() {
	var (
		keys        = flag.Int("keys", 1000, "number of distinct rate-limit keys")
		limit       = flag.Int("limit", 20, "requests allowed per key per window")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (rate limit + tokens)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		memoryOnly  = flag.Bool("memory", false, "skip Redis and exercise the in-memory counter")
	)
	flag.Parse()

	if *keys <= 0 || *limit <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "keys, limit, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authguard.DefaultConfig()
	cfg.Audit.Enabled = false

	b := authguard.New().
		WithConfig(cfg).
		WithTokenStore(authguard.NewRedisTokenStore(client, cfg.Tokens, nil)).
		WithUserProvider(nopUsers{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true)
	if !*memoryOnly {
		b = b.WithRedis(client)
	}
	engine, err := b.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	rl := runRateLimitPhase(ctx, engine, *keys, *limit, *ops, *concurrency)
	tok := runTokenPhase(ctx, engine, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("rate-limit", rl.phaseStats)
	fmt.Printf("rate-limit: allowed=%d denied=%d max_allowed=%d fallback=%d\n",
		rl.allowed, rl.denied, *keys**limit, rl.fallback)
	if rl.allowed > int64(*keys**limit) {
		fmt.Fprintln(os.Stderr, "rate-limit: allowed count exceeds keys*limit")
		os.Exit(1)
	}
	printStats("token create+consume", tok)

	snap := engine.MetricsSnapshot()
	fmt.Printf("metrics: issued=%d consumed=%d store_failures=%d\n",
		snap.Counters[authguard.MetricTokenIssued],
		snap.Counters[authguard.MetricTokenConsumeSuccess],
		snap.Counters[authguard.MetricTokenStoreFailure],
	)
}

type rateLimitStats struct {
	phaseStats
	allowed  int64
	denied   int64
	fallback int64
}

func runRateLimitPhase(ctx context.Context, engine *authguard.Engine, keys, limit, ops, concurrency int) rateLimitStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		allowed   int64
		denied    int64
		fallback  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				key := fmt.Sprintf("loadtest:login:ip:10.0.%d", r.Intn(keys))
				t0 := time.Now()
				res := engine.CheckRateLimit(ctx, key, limit, time.Hour)
				d := time.Since(t0)
				if res.Allowed {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&denied, 1)
				}
				if res.Fallback {
					atomic.AddInt64(&fallback, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return rateLimitStats{
		phaseStats: computeStats(total, latencies, 0),
		allowed:    allowed,
		denied:     denied,
		fallback:   fallback,
	}
}

func runTokenPhase(ctx context.Context, engine *authguard.Engine, ops, concurrency int) phaseStats {
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
			// One address per worker keeps each create/consume pair uncontended.
			email := fmt.Sprintf("load-%d@example.com", worker)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := createAndConsume(ctx, engine, email)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func createAndConsume(ctx context.Context, engine *authguard.Engine, email string) error {
	raw, err := engine.CreateToken(ctx, email, authguard.PurposeReset)
	if err != nil {
		return err
	}
	status, err := engine.ConsumeToken(ctx, email, authguard.PurposeReset, raw)
	if err != nil {
		return err
	}
	if status != authguard.ConsumeSuccess {
		return errors.New("consume: " + status.String())
	}
	return nil
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
		return phaseStats{total: total}
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
