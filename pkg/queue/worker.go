package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	xperrors "github.com/xowlabs/expopulse/pkg/errors"
	"github.com/xowlabs/expopulse/pkg/logging"
)

// WorkerStatus represents the worker's current status.
type WorkerStatus string

const (
	WorkerStatusStarting WorkerStatus = "starting"
	WorkerStatusHealthy  WorkerStatus = "healthy"
	WorkerStatusDraining WorkerStatus = "draining"
	WorkerStatusStopped  WorkerStatus = "stopped"
)

// Handler processes one queue message.
type Handler func(ctx context.Context, msg Message) error

// WorkerConfig configures the processing worker pool.
type WorkerConfig struct {
	Count             int           `yaml:"count"`
	BatchSize         int           `yaml:"batch_size"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// DefaultWorkerConfig returns sensible defaults: a few workers, one
// recording at a time each, generous visibility for the two model calls.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Count:             4,
		BatchSize:         1,
		VisibilityTimeout: 300 * time.Second,
		PollInterval:      1 * time.Second,
		ShutdownTimeout:   60 * time.Second,
	}
}

// Worker drains the processing queue one message at a time.
type Worker struct {
	ID           string
	Config       WorkerConfig
	Status       WorkerStatus
	Queue        Queue
	Handler      Handler
	StartedAt    time.Time
	LastActivity time.Time

	ProcessedCount atomic.Int64
	FailedCount    atomic.Int64

	logger     logging.Logger
	metrics    MetricsRecorder
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         *sync.WaitGroup
}

// NewWorker creates a new worker. metrics may be nil.
func NewWorker(config WorkerConfig, q Queue, handler Handler, logger logging.Logger, metrics MetricsRecorder) *Worker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		ID:         id,
		Config:     config,
		Status:     WorkerStatusStarting,
		Queue:      q,
		Handler:    handler,
		logger:     logger.With(logging.F("component", "worker"), logging.F("worker_id", id)),
		metrics:    metrics,
		ctx:        ctx,
		cancelFunc: cancel,
		wg:         &sync.WaitGroup{},
	}
}

// Start begins processing messages.
func (w *Worker) Start() {
	w.StartedAt = time.Now()
	w.Status = WorkerStatusHealthy
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		w.processLoop()
	}()
}

// Stop gracefully stops the worker, waiting up to ShutdownTimeout for the
// in-flight message to finish.
func (w *Worker) Stop() {
	w.Status = WorkerStatusDraining
	w.cancelFunc()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.Config.ShutdownTimeout):
	}
	w.Status = WorkerStatusStopped
}

func (w *Worker) processLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			messages, err := w.Queue.Dequeue(w.Config.BatchSize, w.Config.PollInterval)
			if err != nil {
				if w.ctx.Err() != nil {
					return
				}
				w.logger.Warn("dequeue failed", logging.Err(err))
				time.Sleep(w.Config.PollInterval)
				continue
			}

			for _, qm := range messages {
				if w.ctx.Err() != nil {
					return
				}
				w.processMessage(qm)
			}
		}
	}
}

func (w *Worker) processMessage(qm *QueuedMessage) {
	w.LastActivity = time.Now()

	if !qm.EnqueuedAt.IsZero() {
		w.metrics.RecordQueueWait(w.Queue.Name(), time.Since(qm.EnqueuedAt).Seconds())
	}

	msg, err := qm.ParseMessage()
	if err != nil {
		w.Queue.MoveToDeadLetter(qm.ID, fmt.Sprintf("parse error: %v", err))
		w.FailedCount.Add(1)
		return
	}

	// Finish before the visibility deadline or another worker takes over.
	handlerTimeout := w.Config.VisibilityTimeout - 10*time.Second
	if handlerTimeout <= 0 {
		handlerTimeout = w.Config.VisibilityTimeout
	}
	ctx, cancel := context.WithTimeout(w.ctx, handlerTimeout)
	defer cancel()

	if err := w.Handler(ctx, msg); err != nil {
		// Transient failures go back on the queue; everything else is
		// final for this message since the recording already carries the
		// error status.
		if xperrors.IsErrorRetryable(err) {
			w.Queue.Nack(qm.ID)
		} else {
			w.Queue.MoveToDeadLetter(qm.ID, err.Error())
		}
		w.FailedCount.Add(1)
		w.logger.Warn("message processing failed",
			logging.F("message_id", qm.ID),
			logging.F("recording_id", msg.GetRecordingID()),
			logging.Err(err))
		return
	}

	w.Queue.Ack(qm.ID)
	w.ProcessedCount.Add(1)
}

// Pool manages a set of identical workers draining one queue.
type Pool struct {
	Config  WorkerConfig
	Workers []*Worker
	Queue   Queue
	Handler Handler

	logger  logging.Logger
	metrics MetricsRecorder
	mu      sync.RWMutex
}

// NewPool creates a new worker pool. metrics may be nil.
func NewPool(config WorkerConfig, q Queue, handler Handler, logger logging.Logger, metrics MetricsRecorder) *Pool {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pool{
		Config:  config,
		Queue:   q,
		Handler: handler,
		Workers: make([]*Worker, 0, config.Count),
		logger:  logger,
		metrics: metrics,
	}
}

// Start starts all workers in the pool.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.Config.Count; i++ {
		worker := NewWorker(p.Config, p.Queue, p.Handler, p.logger, p.metrics)
		worker.Start()
		p.Workers = append(p.Workers, worker)
	}
	p.logger.Info("worker pool started", logging.F("workers", len(p.Workers)))
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var wg sync.WaitGroup
	for _, worker := range p.Workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}
	wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{WorkerCount: len(p.Workers)}
	for _, w := range p.Workers {
		if w.Status == WorkerStatusHealthy {
			stats.ActiveCount++
		}
		stats.Processed += w.ProcessedCount.Load()
		stats.Failed += w.FailedCount.Load()
	}
	return stats
}

// PoolStats contains pool statistics.
type PoolStats struct {
	WorkerCount int
	ActiveCount int
	Processed   int64
	Failed      int64
}
