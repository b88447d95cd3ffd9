package filter

import (
	"context"
	"errors"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// EvaluatorOption configures an evaluator
type EvaluatorOption func(*ConcurrentEvaluator)

// WithWorkers sets the number of worker goroutines
func WithWorkers(workers int) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		if workers > 0 {
			e.workerCount = workers
		}
	}
}

// WithBatchSize sets the batch size for chunked processing
func WithBatchSize(size int) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// WithStrict makes Evaluate fail on the first row the filter cannot be
// evaluated on, instead of skipping it.
func WithStrict(strict bool) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		e.strict = strict
	}
}

// WithLogger sets the logger reporting skipped rows
func WithLogger(logger zerolog.Logger) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		e.logger = logger
	}
}

// ConcurrentEvaluator evaluates filters over rows, splitting large sets in
// chunks evaluated in parallel.
type ConcurrentEvaluator struct {
	workerCount int
	batchSize   int
	strict      bool
	logger      zerolog.Logger
}

// NewConcurrentEvaluator creates a new concurrent evaluator
func NewConcurrentEvaluator(opts ...EvaluatorOption) *ConcurrentEvaluator {
	e := &ConcurrentEvaluator{
		workerCount: runtime.GOMAXPROCS(0),
		batchSize:   100,
		logger:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evaluate returns the rows matching filter in their original order
func (e *ConcurrentEvaluator) Evaluate(ctx context.Context, filter CompiledFilter, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return []Row{}, nil
	}

	// For small sets, don't bother with concurrency
	if len(rows) < e.batchSize || e.workerCount == 1 {
		return e.evaluateChunk(ctx, filter, rows)
	}

	return e.evaluateConcurrent(ctx, filter, rows)
}

func (e *ConcurrentEvaluator) evaluateChunk(ctx context.Context, filter CompiledFilter, rows []Row) ([]Row, error) {
	matches := make([]Row, 0, len(rows)/4)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ok, err := filter.Match(row)
		if err != nil {
			if e.strict {
				return nil, err
			}
			var evalErr *EvaluationError
			if errors.As(err, &evalErr) {
				e.logger.Debug().Err(evalErr.Err).Str("row", evalErr.RowID).Msg("Skipping row the filter cannot evaluate")
			}
			continue
		}
		if ok {
			matches = append(matches, row)
		}
	}
	return matches, nil
}

func (e *ConcurrentEvaluator) evaluateConcurrent(ctx context.Context, filter CompiledFilter, rows []Row) ([]Row, error) {
	chunkSize := max(len(rows)/e.workerCount, e.batchSize)
	chunks := (len(rows) + chunkSize - 1) / chunkSize
	results := make([][]Row, chunks)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount)

	for i := range chunks {
		start := i * chunkSize
		end := min(start+chunkSize, len(rows))

		g.Go(func() error {
			matches, err := e.evaluateChunk(ctx, filter, rows[start:end])
			if err != nil {
				return err
			}
			results[i] = matches
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}

	matches := make([]Row, 0, total)
	for _, r := range results {
		matches = append(matches, r...)
	}
	return matches, nil
}
