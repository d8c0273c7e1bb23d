// Command bench runs a synthetic multi-owner resolution workload against a
// pool and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/typecache/config"
	pmet "github.com/IvanBrykalov/typecache/metrics/prom"
	"github.com/IvanBrykalov/typecache/pool"
	"github.com/IvanBrykalov/typecache/sweeper"
)

// loader is the synthetic owner scope.
type loader struct {
	id     int
	parent *loader
}

// typeDesc is the synthetic resolved value.
type typeDesc struct {
	name string
	size int
}

var errNotFound = errors.New("class not found")

func main() {
	// ---- Flags ----
	var (
		configPath = flag.String("config", "", "YAML config file; flags given explicitly override it")

		capacity = flag.Int("cap", 0, "maximum entries per scope")
		expire   = flag.Duration("expire", 0, "expire-after-access (must be even)")
		shards   = flag.Int("shards", 0, "number of shards per scope (0=auto)")
		policy   = flag.String("policy", "", "eviction policy: lru | 2q")

		owners   = flag.Int("owners", 0, "number of live owner scopes")
		names    = flag.Int("names", 0, "name space size per owner")
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 0, "benchmark duration")
		churn    = flag.Duration("churn", 0, "replace one owner every interval (0 = never)")
		cost     = flag.Duration("resolve_cost", 0, "simulated resolver latency")
		failPct  = flag.Int("fail", 0, "resolver failure percentage [0..100]")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// ---- Config: file (or defaults), then explicit flags ----
	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.LoadConfig(*configPath, logger); err != nil {
			logger.Fatal("load config", zap.Error(err))
		}
	}
	cfg.Workload.Workers = *workers
	cfg.Workload.Seed = *seed
	cfg.Metrics.Addr = *metricsAddr
	cfg.Metrics.PprofAddr = *pprofAddr
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cap":
			cfg.Pool.MaximumSize = *capacity
			if cfg.Pool.InitialCapacity > *capacity {
				cfg.Pool.InitialCapacity = *capacity
			}
		case "expire":
			cfg.Pool.ExpireAfterAccess = *expire
		case "shards":
			cfg.Pool.Shards = *shards
		case "policy":
			cfg.Pool.Policy = *policy
		case "owners":
			cfg.Workload.Owners = *owners
		case "names":
			cfg.Workload.Names = *names
		case "duration":
			cfg.Workload.Duration = *duration
		case "churn":
			cfg.Workload.ChurnEvery = *churn
		case "resolve_cost":
			cfg.Workload.ResolveCost = *cost
		case "fail":
			cfg.Workload.FailPct = *failPct
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// ---- pprof server (on DefaultServeMux) ----
	if addr := cfg.Metrics.PprofAddr; addr != "" {
		go func() {
			logger.Info("pprof: serving", zap.String("addr", addr))
			logger.Warn("pprof stopped", zap.Error(http.ListenAndServe(addr, nil)))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, cfg.Metrics.Namespace, cfg.Metrics.Subsystem, nil)
	if addr := cfg.Metrics.Addr; addr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics: serving", zap.String("addr", addr))
			logger.Warn("metrics stopped", zap.Error(http.ListenAndServe(addr, nil)))
		}()
	}

	// ---- Build pool ----
	sw := sweeper.New(sweeper.Options{Logger: logger.Named("sweeper"), Metrics: metrics})
	defer func() { _ = sw.Close() }()

	bootstrap := &loader{id: -1}
	p, err := pool.New(pool.Options[loader, *typeDesc]{
		Settings:        cfg.Pool,
		Seed:            &pool.Seed[*typeDesc]{Name: "java.lang.Object", Value: &typeDesc{name: "java.lang.Object"}},
		Normalize:       pool.SubstituteNil(bootstrap),
		Sweeper:         sw,
		Metrics:         metrics,
		RegistryMetrics: metrics,
		Logger:          logger.Named("pool"),
	})
	if err != nil {
		logger.Fatal("build pool", zap.Error(err))
	}
	defer func() { _ = p.Close() }()

	// ---- Owners; slot 0 is the privileged (nil) scope ----
	wl := cfg.Workload
	slots := make([]atomic.Pointer[loader], wl.Owners)
	var nextID atomic.Int64
	for i := 1; i < len(slots); i++ {
		slots[i].Store(&loader{id: int(nextID.Add(1)), parent: bootstrap})
	}

	// ---- Resolver ----
	var resolves, failures atomic.Uint64
	resolver := pool.ResolverFunc[*typeDesc](func(ctx context.Context, name string) (*typeDesc, error) {
		resolves.Add(1)
		if wl.ResolveCost > 0 {
			select {
			case <-time.After(wl.ResolveCost):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if wl.FailPct > 0 && rand.Intn(100) < wl.FailPct {
			failures.Add(1)
			return nil, fmt.Errorf("%s: %w", name, errNotFound)
		}
		return &typeDesc{name: name, size: len(name)}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), wl.Duration)
	defer cancel()

	// ---- Owner churn: dropped owners become garbage and their scopes are reaped ----
	var churned atomic.Uint64
	if wl.ChurnEvery > 0 && len(slots) > 1 {
		go func() {
			r := rand.New(rand.NewSource(wl.Seed))
			t := time.NewTicker(wl.ChurnEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					i := 1 + r.Intn(len(slots)-1)
					slots[i].Store(&loader{id: int(nextID.Add(1)), parent: bootstrap})
					churned.Add(1)
				}
			}
		}()
	}

	// ---- Snapshot for goroutines ----
	workersN := wl.Workers
	if workersN <= 0 {
		workersN = 1
	}
	namesMax := uint64(wl.Names - 1)

	// ---- Load generation ----
	var total, hits, errs uint64
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(wl.Seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, wl.ZipfS, wl.ZipfV, namesMax)

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				owner := slots[localR.Intn(len(slots))].Load() // nil for slot 0
				name := "com.example.T" + strconv.FormatUint(localZipf.Uint64(), 10)

				scope, err := p.Scope(owner)
				if err != nil {
					atomic.AddUint64(&errs, 1)
					continue
				}
				if _, ok := scope.Find(name); ok {
					atomic.AddUint64(&hits, 1)
					continue
				}
				if _, err := p.Resolve(ctx, owner, name, resolver); err != nil {
					atomic.AddUint64(&errs, 1)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	hitsN := atomic.LoadUint64(&hits)
	hitRate := 0.0
	if ops > 0 {
		hitRate = float64(hitsN) / float64(ops) * 100
	}

	fmt.Printf("policy=%s cap=%d expire=%v shards=%d owners=%d workers=%d names=%d dur=%v seed=%d\n",
		cfg.Pool.Policy, cfg.Pool.MaximumSize, cfg.Pool.ExpireAfterAccess, cfg.Pool.Shards,
		wl.Owners, workersN, wl.Names, elapsed, wl.Seed)
	fmt.Printf("ops=%d (%.0f ops/s)  hits=%d  hit-rate=%.2f%%  errors=%d\n",
		ops, float64(ops)/elapsed.Seconds(), hitsN, hitRate, atomic.LoadUint64(&errs))
	fmt.Printf("resolver calls=%d  failures=%d  churned owners=%d  live scopes=%d  sweeps scheduled=%d\n",
		resolves.Load(), failures.Load(), churned.Load(), p.Owners(), sw.Len())
}
