// Command poolbench drives allocate/release load against a bounded store
// and reports live-allocation accounting.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/coachpo/blockpool/config"
	"github.com/coachpo/blockpool/errs"
	"github.com/coachpo/blockpool/lib/async"
	"github.com/coachpo/blockpool/lib/telemetry"
	"github.com/coachpo/blockpool/observability"
	"github.com/coachpo/blockpool/pool"
)

const (
	frameStoreName           = "frame"
	reportInterval           = time.Second
	backpressureRetryDelay   = time.Millisecond
	workerShutdownTimeout    = 10 * time.Second
	drainTimeout             = 5 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

// frame is the pooled payload the bench churns through.
type frame struct {
	Seq     int64
	Payload []byte
}

func (f *frame) Reset() {
	f.Seq = 0
	f.Payload = f.Payload[:0]
}

type summary struct {
	RunID       string                         `json:"run_id"`
	Environment string                         `json:"environment"`
	Workers     int                            `json:"workers"`
	Cycles      int                            `json:"cycles"`
	Capacity    int                            `json:"capacity"`
	ElapsedMS   int64                          `json:"elapsed_ms"`
	Live        int64                          `json:"live_allocations"`
	Metrics     *observability.MetricsSnapshot `json:"metrics,omitempty"`
}

func main() {
	cfgPath := flag.String("config", "", "path to YAML configuration")
	workers := flag.Int("workers", 0, "override bench worker count")
	cycles := flag.Int("cycles", 0, "override allocate/release cycles per worker")
	capacity := flag.Int("capacity", -1, "override frame store capacity")
	pace := flag.Int("rate", -1, "override allocation pacing in ops/sec (0 = unpaced)")
	flag.Parse()

	logger := log.New(os.Stderr, "poolbench ", log.LstdFlags|log.Lmsgprefix)
	observability.SetLogger(observability.NewStdLogger(logger))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx, *cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *workers > 0 {
		cfg.Bench.Workers = *workers
	}
	if *cycles > 0 {
		cfg.Bench.Cycles = *cycles
	}
	if *capacity >= 0 {
		cfg.Stores[frameStoreName] = config.StoreSettings{Capacity: *capacity}
	}
	if *pace >= 0 {
		cfg.Bench.RatePerSecond = *pace
	}

	runtimeMetrics := installMetrics(ctx, cfg, logger)

	store := pool.NewStore[frame](cfg.Stores[frameStoreName].Capacity, pool.WithName(frameStoreName))
	registry := pool.NewRegistry()
	if err := registry.Register(frameStoreName, store); err != nil {
		logger.Fatalf("register store: %v", err)
	}

	runID := uuid.NewString()
	logger.Printf("run %s: workers=%d cycles=%d capacity=%d rate=%d",
		runID, cfg.Bench.Workers, cfg.Bench.Cycles, store.Capacity(), cfg.Bench.RatePerSecond)

	started := time.Now()
	if err := run(ctx, cfg, store); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("run aborted: %v", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := registry.Drain(drainCtx); err != nil {
		logger.Printf("drain: %v", err)
	}

	result := summary{
		RunID:       runID,
		Environment: string(cfg.Environment),
		Workers:     cfg.Bench.Workers,
		Cycles:      cfg.Bench.Cycles,
		Capacity:    store.Capacity(),
		ElapsedMS:   time.Since(started).Milliseconds(),
		Live:        store.Allocations(),
	}
	if runtimeMetrics != nil {
		snapshot := runtimeMetrics.Snapshot()
		result.Metrics = &snapshot
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatalf("marshal summary: %v", err)
	}
	fmt.Println(string(out))
}

// installMetrics wires either the OTLP exporter or an in-memory
// accumulator, returning the accumulator when one is used.
func installMetrics(ctx context.Context, cfg config.AppConfig, logger *log.Logger) *observability.RuntimeMetrics {
	if cfg.Telemetry.OTLPEndpoint != "" && cfg.Telemetry.EnableMetrics {
		providers, shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
		if err != nil {
			logger.Fatalf("init telemetry: %v", err)
		}
		observability.SetMetrics(telemetry.NewMetrics(providers.MeterProvider))
		go func() {
			<-ctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
			defer cancel()
			_ = shutdown(shCtx)
		}()
		return nil
	}
	runtimeMetrics := observability.NewRuntimeMetrics()
	observability.SetMetrics(runtimeMetrics)
	return runtimeMetrics
}

func run(ctx context.Context, cfg config.AppConfig, store *pool.Store[frame]) error {
	workers, err := async.NewPool(cfg.Bench.Workers, cfg.Bench.QueueDepth)
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Bench.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Bench.RatePerSecond), cfg.Bench.RatePerSecond)
	}

	g, runCtx := errgroup.WithContext(ctx)
	reporterStop := make(chan struct{})

	g.Go(func() error {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-reporterStop:
				return nil
			case <-runCtx.Done():
				return nil
			case <-ticker.C:
				observability.Log().Info("progress",
					observability.Field{Key: "live", Value: store.Allocations()})
			}
		}
	})

	g.Go(func() error {
		defer close(reporterStop)

		total := cfg.Bench.Workers * cfg.Bench.Cycles
		for i := 0; i < total; i++ {
			if err := limiter.Wait(runCtx); err != nil {
				break
			}
			seq := int64(i)
			task := func(context.Context) error {
				block := store.Allocate()
				block.Value().Seq = seq
				block.Value().Payload = append(block.Value().Payload, byte(seq))
				block.Release()
				return nil
			}
			if err := submitWithRetry(runCtx, workers, task); err != nil {
				break
			}
		}

		shCtx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
		defer cancel()
		return workers.Shutdown(shCtx)
	})

	return g.Wait()
}

// submitWithRetry absorbs queue backpressure; every other error is fatal
// to the run.
func submitWithRetry(ctx context.Context, workers *async.Pool, task async.Task) error {
	for {
		err := workers.Submit(ctx, task)
		if err == nil {
			return nil
		}
		var envelope *errs.E
		if !errors.As(err, &envelope) || envelope.Code != errs.CodeUnavailable {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backpressureRetryDelay):
		}
	}
}
