package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	erpclient "github.com/anujChoudhary-1712/erp-fn-sub001"
	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/erptest"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	loadWorkers  int
	loadRequests int
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Fire concurrent requests with an expired token and check refresh single-flight",
	Long: `Start the fake backend in-process, store an expired token in Redis and send
--workers concurrent requests through one client. Every request must succeed and
the backend must see exactly one refresh call.

Redis comes from --redis-addr, then REDIS_ADDR, then an in-process miniredis.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadWorkers <= 0 || loadRequests <= 0 {
			return fmt.Errorf("workers and requests must be > 0")
		}
		addr := redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		report, err := runLoadtest(ctx, loadtestOptions{
			Workers:   loadWorkers,
			Requests:  loadRequests,
			RedisAddr: addr,
			Prefix:    redisPrefix,
			Logger:    logger,
			Out:       cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		report.print(cmd.OutOrStdout())
		return report.check()
	},
}

func init() {
	loadtestCmd.Flags().IntVarP(&loadWorkers, "workers", "n", 64, "number of concurrent workers")
	loadtestCmd.Flags().IntVar(&loadRequests, "requests", 1, "requests per worker")
}

type loadtestOptions struct {
	Workers   int
	Requests  int
	RedisAddr string
	Prefix    string
	Logger    *zap.Logger
	Out       io.Writer
}

type loadtestReport struct {
	total        time.Duration
	ok           int64
	failed       int64
	retried      int64
	refreshCalls int64
	p50          time.Duration
	p95          time.Duration
	p99          time.Duration
	snapshot     erpclient.MetricsSnapshot
}

func runLoadtest(ctx context.Context, opts loadtestOptions) (*loadtestReport, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	rc, cleanup, err := openLoadtestRedis(opts.RedisAddr, opts.Out)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	srv, err := erptest.NewServer(erptest.Options{})
	if err != nil {
		return nil, err
	}
	defer srv.Close()

	store := credential.NewRedisStore(rc, opts.Prefix+":loadtest", credential.KeyAccessToken, 0)
	expired, err := srv.IssueToken(-time.Second)
	if err != nil {
		return nil, err
	}
	if err := store.Set(ctx, expired); err != nil {
		return nil, err
	}
	defer func() { _ = store.Clear(context.Background()) }()

	cfg := erpclient.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	client, err := erpclient.New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithLogger(opts.Logger).
		Build()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var (
		report    loadtestReport
		latencies = make([]time.Duration, 0, opts.Workers*opts.Requests)
		mu        sync.Mutex
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		worker := w
		g.Go(func() error {
			for i := 0; i < opts.Requests; i++ {
				token, err := client.Token(gctx)
				if err != nil {
					atomic.AddInt64(&report.failed, 1)
					continue
				}
				t0 := time.Now()
				resp, err := client.Get(gctx, "/api/orders/"+strconv.Itoa(worker*opts.Requests+i), nil, token)
				d := time.Since(t0)
				switch {
				case err != nil || !resp.OK():
					atomic.AddInt64(&report.failed, 1)
				default:
					atomic.AddInt64(&report.ok, 1)
					if resp.Retried {
						atomic.AddInt64(&report.retried, 1)
					}
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.total = time.Since(start)
	report.refreshCalls = srv.RefreshCalls()
	report.snapshot = client.MetricsSnapshot()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	report.p50 = percentile(latencies, 50)
	report.p95 = percentile(latencies, 95)
	report.p99 = percentile(latencies, 99)
	return &report, nil
}

func openLoadtestRedis(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
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

func (r *loadtestReport) print(w io.Writer) {
	c := r.snapshot.Counters
	fmt.Fprintln(w, "---- results ----")
	fmt.Fprintf(w, "requests: ok=%d failed=%d replayed=%d total=%s p50=%s p95=%s p99=%s\n",
		r.ok, r.failed, r.retried,
		r.total.Round(time.Millisecond),
		r.p50.Round(time.Microsecond),
		r.p95.Round(time.Microsecond),
		r.p99.Round(time.Microsecond),
	)
	fmt.Fprintf(w, "refresh: backend_calls=%d started=%d queued=%d stale_replays=%d\n",
		r.refreshCalls,
		c[erpclient.MetricRefreshStarted],
		c[erpclient.MetricRequestQueued],
		c[erpclient.MetricStaleReplay],
	)
}

// check fails unless every request succeeded behind a single refresh.
func (r *loadtestReport) check() error {
	if r.failed > 0 {
		return fmt.Errorf("%d requests failed", r.failed)
	}
	if r.refreshCalls != 1 {
		return fmt.Errorf("expected 1 refresh call, backend saw %d", r.refreshCalls)
	}
	return nil
}
