package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"
)

// PipelineExecutor runs queries on a pool of workers. Queries share the
// engine's manager; each one is driven by a single goroutine. An executor
// may be reused and shared; failures are tracked per Execute call.
type PipelineExecutor struct {
	numWorkers int
}

// NewPipelineExecutor creates an executor. numWorkers defaults to NumCPU if <= 0.
func NewPipelineExecutor(numWorkers int) *PipelineExecutor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &PipelineExecutor{numWorkers: numWorkers}
}

// Execute runs every query to completion and returns their results in
// order. On the first failure the remaining queries are cancelled and all
// results are released.
func (ex *PipelineExecutor) Execute(ctx context.Context, queries []*Query) ([]*Result, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan int, len(queries))
	for i := range queries {
		queue <- i
	}
	close(queue)

	results := make([]*Result, len(queries))
	var (
		wg       sync.WaitGroup
		firstErr error
		errOnce  sync.Once
	)
	worker := func() {
		defer wg.Done()
		for idx := range queue {
			if ctx.Err() != nil {
				return
			}
			res, err := ex.runOne(ctx, queries[idx])
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				cancel()
				return
			}
			results[idx] = res
		}
	}

	workers := min(ex.numWorkers, len(queries))
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		for _, r := range results {
			r.Release()
		}
		return nil, firstErr
	}
	return results, nil
}

func (ex *PipelineExecutor) runOne(ctx context.Context, q *Query) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("query %s panicked: %v", q.Name, r)
		}
	}()
	return q.Run(ctx)
}
