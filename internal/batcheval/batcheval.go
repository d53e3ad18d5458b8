// Package batcheval dispatches fitness evaluation over a batch of genomes,
// either serially, across CPU worker goroutines, or via an optional
// accelerator backend. The worker-pool shape follows a job/result channel
// pattern over a bounded set of workers.
package batcheval

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"evocore/internal/ecerr"
	"evocore/internal/genome"
)

// maxWorkers caps the CPU worker-pool size regardless of GOMAXPROCS.
const maxWorkers = 16

// serialThreshold is the batch size at or below which the serial path is used
// even when the CPU pool is available.
const serialThreshold = 10

// Accelerator is an opaque, pluggable fast-path batch scorer (e.g. a GPU
// dispatcher). Implementations must write one fitness per input genome,
// in input order, or return an error so the evaluator falls back to CPU.
type Accelerator interface {
	EvaluateBatch(ctx context.Context, genomes []genome.Genome, fn FitnessFunc, out []float64) error
}

// FitnessFunc scores one genome.
type FitnessFunc func(ctx context.Context, g genome.Genome) (float64, error)

// Result reports what happened during one Evaluate call.
type Result struct {
	CountEvaluated      int
	UsedAccelerator     bool
	WallTimeAccelerator time.Duration
	WallTimeSerial      time.Duration
}

// Evaluator dispatches fitness scoring over a batch of genomes.
type Evaluator struct {
	accelerator Accelerator
	enabled     bool
	mu          sync.Mutex
}

// New returns an Evaluator. accelerator may be nil, in which case the CPU
// path is always used.
func New(accelerator Accelerator) *Evaluator {
	return &Evaluator{accelerator: accelerator, enabled: accelerator != nil}
}

// SetEnabled toggles accelerator use. Disabling mid-run only affects
// batches started after the call returns; in-flight batches complete
// normally (cooperative cancellation).
func (e *Evaluator) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

func (e *Evaluator) isEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled && e.accelerator != nil
}

// Evaluate scores genomes with fn, writing results in input order into out
// (which must have len(genomes) capacity) and returns a Result describing
// the dispatch path taken. Input genomes are borrowed and must not be
// mutated by fn or by the caller while Evaluate runs.
func (e *Evaluator) Evaluate(ctx context.Context, genomes []genome.Genome, fn FitnessFunc, out []float64) (Result, error) {
	if fn == nil {
		return Result{}, fmt.Errorf("%w: fitness function", ecerr.ErrNullArgument)
	}
	if len(out) < len(genomes) {
		return Result{}, fmt.Errorf("%w: out must have len >= %d", ecerr.ErrInvalidArgument, len(genomes))
	}
	if len(genomes) == 0 {
		return Result{}, nil
	}

	if e.isEnabled() {
		start := time.Now()
		err := e.accelerator.EvaluateBatch(ctx, genomes, fn, out)
		elapsed := time.Since(start)
		if err == nil {
			return Result{
				CountEvaluated:      len(genomes),
				UsedAccelerator:     true,
				WallTimeAccelerator: elapsed,
			}, nil
		}
		// Fall through to CPU path on any accelerator failure.
	}

	start := time.Now()
	if err := e.evaluateCPU(ctx, genomes, fn, out); err != nil {
		return Result{}, err
	}
	elapsed := time.Since(start)
	return Result{
		CountEvaluated: len(genomes),
		WallTimeSerial: elapsed,
	}, nil
}

func (e *Evaluator) evaluateCPU(ctx context.Context, genomes []genome.Genome, fn FitnessFunc, out []float64) error {
	if len(genomes) <= serialThreshold {
		for i, g := range genomes {
			if err := ctx.Err(); err != nil {
				return err
			}
			fit, err := fn(ctx, g)
			if err != nil {
				return err
			}
			out[i] = fit
		}
		return nil
	}

	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(genomes) {
		workers = len(genomes)
	}

	jobs := make(chan int, len(genomes))
	errCh := make(chan error, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					select {
					case errCh <- err:
					default:
					}
					return
				}
				fit, err := fn(ctx, genomes[idx])
				if err != nil {
					select {
					case errCh <- err:
					default:
					}
					return
				}
				out[idx] = fit
			}
		}()
	}
	for i := range genomes {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(errCh)
	if err, ok := <-errCh; ok {
		return err
	}
	return ctx.Err()
}
