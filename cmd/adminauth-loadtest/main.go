package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/notify"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/store/sqlstore"
)

const loadPassword = "Load-test-pass-1!"

type frozenClock struct{ now time.Time }

func (c frozenClock) Now() time.Time { return c.now }

func main() {
	var (
		users       = flag.Int("users", 500, "number of users to seed and log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "validate operations")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		driver      = flag.String("driver", sqlstore.DriverSQLite, "store driver (sqlite or postgres)")
		dsn         = flag.String("dsn", ":memory:", "store DSN")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: *driver, DSN: *dsn}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	cfg := adminauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Login.MaxAttempts = 1 << 20

	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(store).
		WithNotifier(&notify.Recorder{}).
		WithClock(frozenClock{now: now}).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d sessions...\n", *users)
	startSeed := time.Now()
	tokens, err := seed(ctx, engine, store, *users, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := engine.Validate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	// Every token is logged out once; later calls hit the idempotent path.
	logoutStats := runPhase(len(tokens)*2, *concurrency, func(_ *rand.Rand, i int) error {
		return engine.Logout(ctx, tokens[i%len(tokens)])
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("logout", logoutStats)
}

// seed creates n users and runs both login stages for each.
func seed(ctx context.Context, engine *adminauth.Engine, store *sqlstore.Store, n int, now time.Time) ([]string, error) {
	hash, err := engine.HashPassword(loadPassword)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("load-%d@example.com", i)
		if _, err := store.Users().Create(ctx, admin.NewUser{
			Email: email, Name: email, PasswordHash: hash, Role: permission.RoleViewer, CreatedAt: now,
		}); err != nil {
			return nil, err
		}
		creds, err := engine.SubmitCredentials(ctx, email, loadPassword)
		if err != nil {
			return nil, err
		}
		code, err := totp.GenerateCodeCustom(creds.Enrollment.Secret, now, totp.ValidateOpts{
			Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return nil, err
		}
		res, err := engine.SubmitSecondFactor(ctx, creds.UserID, code)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, res.Token)
	}
	return tokens, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
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
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
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
