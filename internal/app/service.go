// Package service assembles the pipeline, its stores and the CRM sync
// workers into one runnable service and exposes its HTTP handler.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/crmflow/internal/adapters/crm"
	"github.com/okian/crmflow/internal/adapters/http/api"
	"github.com/okian/crmflow/internal/adapters/http/swagger"
	"github.com/okian/crmflow/internal/adapters/mq/queue"
	"github.com/okian/crmflow/internal/adapters/mq/worker"
	"github.com/okian/crmflow/internal/adapters/repository"
	"github.com/okian/crmflow/internal/config"
	"github.com/okian/crmflow/internal/domain/crmsync"
	"github.com/okian/crmflow/internal/domain/dedupe"
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/pipeline"
	"github.com/okian/crmflow/internal/domain/rules"
	"github.com/okian/crmflow/pkg/logger"
	"github.com/okian/crmflow/pkg/metrics"
)

// ErrNotStarted is returned by Ready before Start succeeds.
var ErrNotStarted = errors.New("service not started")

// Service owns every long-lived component of the process.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	rules     *rules.Store
	watcher   *rules.Watcher
	processor *pipeline.Processor
	deduper   dedupe.Deduper
	letters   repository.Store
	crm       crmsync.CRMClient
	syncer    *crmsync.Syncer
	queue     queue.Queue
	pool      *worker.Pool

	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCRMClient replaces the CRM client built from configuration. The CRM
// sync is enabled whenever a client is set.
func WithCRMClient(c crmsync.CRMClient) Option {
	return func(s *Service) { s.crm = c }
}

// WithDeadLetterStore replaces the dead-letter store built from configuration.
func WithDeadLetterStore(st repository.Store) Option {
	return func(s *Service) { s.letters = st }
}

// WithDeduper replaces the dedupe store built from configuration.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) { s.deduper = d }
}

// New constructs a Service. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	return s
}

// Start opens the stores, loads the rules and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting crmflow service...")

	if err := s.startRules(ctx); err != nil {
		return err
	}
	s.processor = pipeline.New(s.rules)

	if err := s.openDeduper(ctx); err != nil {
		return err
	}
	if err := s.openLetters(ctx); err != nil {
		return err
	}
	if err := s.openCRM(); err != nil {
		return err
	}

	// Workers outlive the caller's context so Stop can drain the queue.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if s.crm != nil {
		s.syncer = crmsync.New(s.processor, s.crm)
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
		s.pool = worker.NewPool(s.cfg.WorkerCount, s.queue, s.syncer, s.letters,
			worker.WithSyncTimeout(s.cfg.SyncTimeout()))
		s.pool.OnAbandon(s.release)
		s.pool.Start(runCtx)
	} else {
		s.logger.Warn(ctx, "crm sync disabled; webhooks are normalized only")
	}

	if s.watcher != nil {
		s.watcher.Start(runCtx)
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "crmflow service started",
		logger.Bool("crm_enabled", s.crm != nil),
		logger.Int("workers", s.workerCount()),
		logger.Int("queue_size", s.cfg.QueueSize),
		logger.String("dedupe_backend", s.cfg.DedupeBackend),
		logger.String("deadletter_backend", s.cfg.DeadLetterBackend),
		logger.String("rules_path", s.rules.Path()),
	)
	return nil
}

// release forgets the dedupe mark of a delivery that was accepted but
// dead-lettered at shutdown, so the sender's retry is processed.
func (s *Service) release(ctx context.Context, d model.Delivery) { //nolint:gocritic // hugeParam
	if err := s.deduper.Unrecord(ctx, d.Key); err != nil {
		s.logger.Error(ctx, "failed to release dedupe key", logger.String("key", d.Key), logger.Error(err))
	}
}

func (s *Service) startRules(ctx context.Context) error {
	store, warnings, err := rules.NewStore(s.cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	s.rules = store
	s.logWarnings(ctx, warnings)
	metrics.UpdateRulesLastReload(time.Now().Unix())

	if s.cfg.RulesPath == "" || !s.cfg.RulesWatch {
		return nil
	}
	w, err := rules.NewWatcher(store, rules.WithReloadFunc(func(warnings []string, err error) {
		if err != nil {
			metrics.RecordRulesReload("error")
			s.logger.Error(ctx, "rules reload failed; keeping previous rules", logger.Error(err))
			return
		}
		metrics.RecordRulesReload("ok")
		metrics.UpdateRulesLastReload(time.Now().Unix())
		s.logWarnings(ctx, warnings)
		s.logger.Info(ctx, "rules reloaded", logger.String("path", store.Path()))
	}))
	if err != nil {
		return fmt.Errorf("watch rules: %w", err)
	}
	s.watcher = w
	return nil
}

func (s *Service) logWarnings(ctx context.Context, warnings []string) {
	for _, w := range warnings {
		s.logger.Warn(ctx, "rule set warning", logger.String("warning", w))
	}
}

func (s *Service) openDeduper(ctx context.Context) error {
	if s.deduper != nil {
		return nil
	}
	switch s.cfg.DedupeBackend {
	case config.DedupeRedis:
		d, err := repository.NewRedisDeduper(ctx, s.cfg.RedisAddr, s.cfg.DedupeTTL())
		if err != nil {
			return fmt.Errorf("open dedupe store: %w", err)
		}
		s.deduper = d
	default:
		s.deduper = dedupe.NewInMemoryDeduper(
			dedupe.WithMaxSize(s.cfg.DedupeSize),
			dedupe.WithTTL(s.cfg.DedupeTTL()),
		)
	}
	return nil
}

func (s *Service) openLetters(ctx context.Context) error {
	if s.letters != nil {
		return nil
	}
	st, err := OpenDeadLetters(ctx, s.cfg)
	if err != nil {
		return err
	}
	s.letters = st
	return nil
}

// OpenDeadLetters opens the dead-letter store selected by cfg.
func OpenDeadLetters(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.DeadLetterBackend {
	case config.DeadLetterS3:
		st, err := repository.NewS3Store(ctx, repository.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("open dead-letter store: %w", err)
		}
		return st, nil
	default:
		st, err := repository.NewFileStore(cfg.DeadLetterDir)
		if err != nil {
			return nil, fmt.Errorf("open dead-letter store: %w", err)
		}
		return st, nil
	}
}

func (s *Service) openCRM() error {
	if s.crm != nil || !s.cfg.CRMEnabled {
		return nil
	}
	burst := int(s.cfg.CRMRateLimit)
	if burst < 1 {
		burst = 1
	}
	c, err := crm.New(s.cfg.CRMBaseURL, crm.Credentials{
		ClientID:     s.cfg.CRMClientID,
		ClientSecret: s.cfg.CRMClientSecret,
		RefreshToken: s.cfg.CRMRefreshToken,
		AccountsURL:  s.cfg.CRMAccountsURL,
	}, crm.WithTimeout(s.cfg.CRMTimeout()), crm.WithRateLimit(s.cfg.CRMRateLimit, burst))
	if err != nil {
		return fmt.Errorf("crm client: %w", err)
	}
	s.crm = c
	return nil
}

// Stop drains the queue and releases every store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping crmflow service...")

	var errs []error
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop rules watcher: %w", err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if closer, ok := s.deduper.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dedupe store: %w", err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "crmflow service stopped")
	return errors.Join(errs...)
}

// Ready reports whether the service can take traffic.
func (s *Service) Ready(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}
	if p, ok := s.deduper.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("dedupe store: %w", err)
		}
	}
	return nil
}

// Handler returns the HTTP handler serving the API and its docs.
func (s *Service) Handler(ctx context.Context) http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deps := api.Dependencies{
		Pipeline: s.processor,
		Deduper:  s.deduper,
		Letters:  s.letters,
		Rules:    s.rules,
		Ready:    s,
		Stats:    s,
	}
	if s.queue != nil {
		deps.Queue = s.queue
	}
	r := api.NewServer(deps).Router(ctx)
	swagger.Register(ctx, r)
	return r
}

// Processor returns the pipeline, for dry runs.
func (s *Service) Processor() *pipeline.Processor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processor
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":           s.started,
		"crmEnabled":        s.crm != nil,
		"workerCount":       s.workerCount(),
		"queueCapacity":     s.cfg.QueueSize,
		"dedupeBackend":     s.cfg.DedupeBackend,
		"deadLetterBackend": s.cfg.DeadLetterBackend,
	}
	if !s.started {
		return stats
	}
	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	stats["dedupeSize"] = s.deduper.Size()
	stats["rulesPath"] = s.rules.Path()
	if s.queue != nil {
		n := s.queue.Len(context.Background())
		stats["queueLength"] = n
		metrics.UpdateQueueSize(n)
	}
	return stats
}

func (s *Service) workerCount() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.Size()
}
