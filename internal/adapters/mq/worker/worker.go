package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/diarisk/internal/adapters/mq/queue"
	"github.com/okian/diarisk/internal/adapters/narrator"
	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/pkg/logger"
	"github.com/okian/diarisk/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultJobTimeout = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Narrator writes the report for a job.
type Narrator interface {
	Generate(ctx context.Context, in model.NarrativeInput) (string, error)
	Name() string
}

// ReportWriter records the outcome of a job on the stored assessment.
type ReportWriter interface {
	AttachReport(ctx context.Context, id, report string) error
	MarkReportFailed(ctx context.Context, id, reason string) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes report jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	narrator   Narrator
	writer     ReportWriter
	name       string
	jobTimeout time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	aborted bool

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, n Narrator, w ReportWriter, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:      q,
		narrator:   n,
		writer:     w,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(wk)
	}
	if wk.name != "worker" {
		wk.logger = wk.logger.Named(wk.name)
	}
	return wk
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// The queue forwarder and the job in hand both stop with this context.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !w.setCancel(cancel) {
		return
	}

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Warn(ctx, "report job failed",
					logger.String("assessmentID", job.AssessmentID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for it to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) setCancel(cancel context.CancelFunc) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted {
		return false
	}
	w.cancel = cancel
	return true
}

// abort stops the worker without waiting for the job in hand.
func (w *InMemoryWorker) abort() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	w.mu.Lock()
	defer w.mu.Unlock()
	w.aborted = true
	if w.cancel != nil {
		w.cancel()
	}
}

// processJob narrates one assessment and stores the outcome.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	metrics.IncWorkerActive()
	defer func() {
		metrics.DecWorkerActive()
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	nctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	report, err := w.narrator.Generate(nctx, job.Input)
	cancel()

	// The outcome is recorded even when the worker was aborted mid-job.
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		kind := narrator.Kind(err)
		metrics.RecordNarrationError(kind)
		metrics.RecordWorkerError()
		metrics.RecordReport(string(model.ReportFailed))
		if merr := w.writer.MarkReportFailed(ctx, job.AssessmentID, kind); merr != nil {
			metrics.RecordErrorByComponent("worker", "store_error")
			return fmt.Errorf("mark report failed for %s: %w", job.AssessmentID, merr)
		}
		return fmt.Errorf("narrate %s with %s: %w", job.AssessmentID, w.narrator.Name(), err)
	}

	if err := w.writer.AttachReport(ctx, job.AssessmentID, report); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("attach report to %s: %w", job.AssessmentID, err)
	}
	metrics.RecordReport(string(model.ReportReady))
	w.logger.Debug(ctx, "report attached",
		logger.String("assessmentID", job.AssessmentID),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive workerCount means one
// worker per CPU.
func NewPool(workerCount int, q Queue, n Narrator, w ReportWriter, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, n, w, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Shutdown closes the queue and lets workers drain what is left before
// returning. Workers still busy when ctx expires are aborted: the job in
// hand is canceled and recorded as failed.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			worker.abort()
		}
	}
	return ctx.Err()
}
