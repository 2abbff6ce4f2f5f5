// Command identity-loadtest measures refresh-token rotation throughput against Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/refresh"
)

type chain struct {
	userID  string
	current string
	stale   string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of refresh chains to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "rotations to perform")
		replays     = flag.Int("replays", 1000, "stale tokens to present after the rotation phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "irt-load", "refresh token key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *replays < 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	recorder, err := events.NewRecorder(events.RecorderConfig{Store: events.NewMemoryStore()})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	allowAll := refresh.SubjectValidatorFunc(func(context.Context, string) error { return nil })
	ledger, err := refresh.NewLedger(refresh.NewRedisStore(client, *prefix), allowAll, recorder, refresh.Config{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	chains := make([]*chain, *users)
	fmt.Printf("seeding %d chains...\n", *users)
	startSeed := time.Now()
	for i := range chains {
		userID := fmt.Sprintf("load-user-%d", i)
		tok, err := ledger.Create(ctx, userID, "127.0.0.1")
		if err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
		chains[i] = &chain{userID: userID, current: tok.Value}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	rotateStats := runRotatePhase(ctx, ledger, chains, *ops, *concurrency)
	replayStats, detected := runReplayPhase(ctx, ledger, chains, *replays)

	fmt.Println("---- results ----")
	printStats("rotate", rotateStats)
	printStats("replay", replayStats)
	fmt.Printf("replay detected: %d/%d\n", detected, replayStats.ops)
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// runRotatePhase refreshes random chains. Each chain is rotated by one worker at a time so
// every failure is a real error rather than a replay.
func runRotatePhase(ctx context.Context, ledger *refresh.Ledger, chains []*chain, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				c := chains[r.Intn(len(chains))]

				c.mu.Lock()
				t0 := time.Now()
				rot, err := ledger.Refresh(ctx, c.current, "127.0.0.1", "identity-loadtest")
				d := time.Since(t0)
				if err == nil {
					c.stale, c.current = c.current, rot.Next.Value
				} else {
					atomic.AddInt64(&failures, 1)
				}
				c.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runReplayPhase presents superseded tokens. Each one should revoke its chain.
func runReplayPhase(ctx context.Context, ledger *refresh.Ledger, chains []*chain, n int) (phaseStats, int) {
	var (
		latencies = make([]time.Duration, 0, n)
		failures  int64
		detected  int
	)
	start := time.Now()
	for _, c := range chains {
		if len(latencies) >= n {
			break
		}
		if c.stale == "" {
			continue
		}
		t0 := time.Now()
		_, err := ledger.Refresh(ctx, c.stale, "127.0.0.1", "identity-loadtest")
		latencies = append(latencies, time.Since(t0))
		switch {
		case errors.Is(err, refresh.ErrReplayDetected):
			detected++
		default:
			failures++
		}
	}
	return computeStats(time.Since(start), latencies, failures), detected
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

func percentile(sorted []time.Duration, p int) time.Duration {
	switch {
	case len(sorted) == 0:
		return 0
	case p >= 100:
		return sorted[len(sorted)-1]
	case p <= 0:
		return sorted[0]
	}
	return sorted[(len(sorted)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures, s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}
