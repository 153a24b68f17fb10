// Package worker drains the delivery queue, syncs each delivery to the CRM
// and dead-letters the ones that fail.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/crmflow/internal/adapters/mq/queue"
	"github.com/okian/crmflow/internal/adapters/repository"
	"github.com/okian/crmflow/internal/domain/crmsync"
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/pipeline"
	"github.com/okian/crmflow/pkg/logger"
	"github.com/okian/crmflow/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU(); work is I/O bound on the CRM
	defaultSyncTimeout      = 60 * time.Second
	poolShutdownTimeout     = 30 * time.Second
	abandonGrace            = 5 * time.Second
)

// Dead-letter reasons.
const (
	ReasonValidation = "validation"
	ReasonSync       = "sync"
	ReasonShutdown   = "shutdown"
)

// ErrAbandoned is recorded on deliveries that were accepted but not synced
// before the pool stopped.
var ErrAbandoned = errors.New("stopped before the delivery was synced")

// AbandonFunc is called for every delivery dead-lettered at shutdown.
type AbandonFunc func(ctx context.Context, d Delivery)

// Delivery abstracts what workers read off the queue.
type Delivery = queue.Delivery

// Syncer upserts one payload into the CRM.
type Syncer interface {
	Sync(ctx context.Context, payload model.Payload) (*crmsync.Outcome, error)
}

// DeadLetters records failed deliveries and successful outcomes.
type DeadLetters interface {
	Write(ctx context.Context, l repository.Letter) (string, error)
	WriteEvent(ctx context.Context, eventType string, data any) (string, error)
}

// Queue defines how workers receive deliveries.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Delivery
}

// Worker processes deliveries.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	syncer      Syncer
	letters     DeadLetters
	name        string
	syncTimeout time.Duration
	busy        *atomic.Int64
	now         func() time.Time
	onAbandon   AbandonFunc

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
// letters may be nil, in which case failures are only logged.
func NewInMemoryWorker(q Queue, syncer Syncer, letters DeadLetters, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		syncer:      syncer,
		letters:     letters,
		name:        "worker",
		syncTimeout: defaultSyncTimeout,
		busy:        &atomic.Int64{},
		now:         time.Now,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop. A delivery already taken off the queue is
// finished before Run returns.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	deliveries := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			_ = w.Process(ctx, d)
		}
	}
}

// Shutdown gracefully stops the worker.
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

// Process syncs one delivery. Failures are dead-lettered and returned.
func (w *InMemoryWorker) Process(ctx context.Context, d Delivery) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	active := w.busy.Add(1)
	metrics.UpdateWorkerActiveCount(int(active))
	start := time.Now()
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.busy.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx = logger.WithRequestID(ctx, d.RequestID)
	syncCtx, cancel := context.WithTimeout(ctx, w.syncTimeout)
	defer cancel()

	out, err := w.syncer.Sync(syncCtx, d.Payload)
	if err != nil {
		reason := ReasonSync
		switch {
		case errors.Is(err, pipeline.ErrValidation):
			reason = ReasonValidation
			metrics.RecordValidationFailure()
		case ctx.Err() != nil:
			reason = ReasonShutdown
		}
		metrics.RecordCRMSync("error")
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", reason+"_error")
		w.logger.Error(ctx, "crm sync failed",
			logger.String("key", d.Key),
			logger.String("reason", reason),
			logger.Error(err),
		)
		w.deadLetter(ctx, d, reason, err)
		if reason == ReasonShutdown {
			w.abandon(ctx, d)
		}
		return fmt.Errorf("sync delivery %s: %w", d.Key, err)
	}

	metrics.RecordCRMSync("ok")
	metrics.RecordEventClassified(out.Normalized.License.EventType.String())
	w.logger.Info(ctx, "crm sync complete",
		logger.String("key", d.Key),
		logger.String("event_type", out.Normalized.License.EventType.String()),
		logger.String("contact_id", out.ContactID),
		logger.Bool("new_contact", out.NewContact),
		logger.String("deal_id", out.DealID),
		logger.Bool("deal_updated", out.DealUpdated),
	)
	w.recordSuccess(ctx, d, out)
	return nil
}

func (w *InMemoryWorker) deadLetter(ctx context.Context, d Delivery, reason string, cause error) { //nolint:gocritic // hugeParam
	if w.letters == nil {
		return
	}
	body := d.Body
	if len(body) == 0 {
		body, _ = json.Marshal(d.Payload)
	}
	name, err := w.letters.Write(context.WithoutCancel(ctx), repository.Letter{
		Timestamp: w.now(),
		Payload:   repository.RawPayload(body),
		Error:     cause.Error(),
		Headers:   d.Headers,
	})
	if err != nil {
		metrics.RecordErrorByComponent("worker", "deadletter_error")
		w.logger.Error(ctx, "dead letter write failed", logger.String("key", d.Key), logger.Error(err))
		return
	}
	metrics.RecordDeadLetter(reason)
	w.logger.Warn(ctx, "delivery dead-lettered", logger.String("key", d.Key), logger.String("name", name))
}

func (w *InMemoryWorker) abandon(ctx context.Context, d Delivery) { //nolint:gocritic // hugeParam
	if w.onAbandon != nil {
		w.onAbandon(context.WithoutCancel(ctx), d)
	}
}

// successEvent is the analytic record of a synced delivery.
type successEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Key         string    `json:"key"`
	EventType   string    `json:"eventType"`
	Stage       string    `json:"stage,omitempty"`
	ContactID   string    `json:"contactId"`
	NewContact  bool      `json:"newContact"`
	CompanyID   string    `json:"companyId,omitempty"`
	ProductID   string    `json:"productId,omitempty"`
	DealID      string    `json:"dealId,omitempty"`
	DealUpdated bool      `json:"dealUpdated"`
}

func (w *InMemoryWorker) recordSuccess(ctx context.Context, d Delivery, out *crmsync.Outcome) { //nolint:gocritic // hugeParam
	if w.letters == nil {
		return
	}
	ev := successEvent{
		Timestamp:   w.now().UTC(),
		Key:         d.Key,
		EventType:   out.Normalized.License.EventType.String(),
		Stage:       out.Normalized.License.Stage,
		ContactID:   out.ContactID,
		NewContact:  out.NewContact,
		CompanyID:   out.CompanyID,
		ProductID:   out.ProductID,
		DealID:      out.DealID,
		DealUpdated: out.DealUpdated,
	}
	if _, err := w.letters.WriteEvent(context.WithoutCancel(ctx), "success", ev); err != nil {
		w.logger.Warn(ctx, "analytic event write failed", logger.Error(err))
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	cancel  context.CancelFunc
	logger  logger.Logger
}

// NewPool creates a new worker pool. Options apply to every worker.
func NewPool(workerCount int, q Queue, syncer Syncer, letters DeadLetters, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}

	busy := &atomic.Int64{}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, syncer, letters, wopts...)
		w.busy = busy
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// OnAbandon registers fn for deliveries dead-lettered because the pool
// stopped before syncing them. Call it before Start.
func (p *Pool) OnAbandon(fn AbandonFunc) {
	for _, w := range p.workers {
		w.onAbandon = fn
	}
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
}

// Shutdown closes the queue and waits for workers to drain it. When ctx
// ends first the workers are canceled, and every delivery that was not
// synced is dead-lettered with ReasonShutdown.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	drained := p.wait(ctx, shutdownCtx)
	if p.cancel != nil {
		p.cancel()
	}
	if !drained {
		graceCtx, graceCancel := context.WithTimeout(context.WithoutCancel(ctx), abandonGrace)
		p.wait(ctx, graceCtx)
		graceCancel()
	}
	p.abandonRemaining(ctx)

	if !drained {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}

// wait reports whether every worker stopped before waitCtx ended.
func (p *Pool) wait(ctx, waitCtx context.Context) bool {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-waitCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return false
		}
	}
	return true
}

func (p *Pool) abandonRemaining(ctx context.Context) {
	drainer, ok := p.queue.(interface{ Drain() []Delivery })
	if !ok || len(p.workers) == 0 {
		return
	}
	left := drainer.Drain()
	if len(left) == 0 {
		return
	}
	p.logger.Warn(ctx, "dead-lettering deliveries left at shutdown", logger.Int("count", len(left)))
	w := p.workers[0]
	for _, d := range left {
		w.deadLetter(ctx, d, ReasonShutdown, ErrAbandoned)
		w.abandon(ctx, d)
	}
}
