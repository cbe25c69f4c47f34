package core

import (
	"context"
	"errors"
	"time"

	"agroqc/internal/codegen"
	"agroqc/internal/infra/persistence/memory"
	"agroqc/pkg/domain"
)

// Service exposes one transactional operation per quality-control action.
// Each mutating call returns the stored record, the rule evaluation result
// and an error.
type Service struct {
	store   PersistentStore
	engine  *RulesEngine
	codes   *codegen.Generator
	limits  domain.SensorLimits
	now     func() time.Time
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	catalog map[string]summaryDefinition
}

// ServiceOption configures optional collaborators of a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock     Clock
	clockSet  bool
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	codes     *codegen.Generator
	limits    domain.SensorLimits
	limitsSet bool
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(nil),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		limits:  domain.DefaultSensorLimits(),
	}
}

// WithClock overrides the time source used for defaults, summaries and
// record timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
			o.clockSet = true
		}
	}
}

// WithLogger sets the operation logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink for mutating operations.
func WithAuditRecorder(audit AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if audit != nil {
			o.audit = audit
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithCodeGenerator sets the record code generator.
func WithCodeGenerator(gen *codegen.Generator) ServiceOption {
	return func(o *serviceOptions) {
		if gen != nil {
			o.codes = gen
		}
	}
}

// WithSensorLimits sets the bands applied to sensor readings.
func WithSensorLimits(limits domain.SensorLimits) ServiceOption {
	return func(o *serviceOptions) {
		o.limits = limits
		o.limitsSet = true
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var clock Clock
	if o.clockSet {
		clock = o.clock
	}
	now := selectNowFunc(store, clock)
	if o.codes == nil {
		o.codes = codegen.New(codegen.WithClock(now))
	}
	svc := &Service{
		store:   store,
		engine:  extractRulesEngine(store),
		codes:   o.codes,
		limits:  o.limits,
		now:     now,
		clock:   ClockFunc(now),
		logger:  o.logger,
		audit:   o.audit,
		metrics: o.metrics,
		tracer:  o.tracer,
	}
	svc.catalog = svc.summaryCatalog()
	return svc
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Rules lists the rule names evaluated on every commit.
func (s *Service) Rules() []string {
	if s.engine == nil {
		return nil
	}
	return s.engine.Rules()
}

// SensorLimits returns the bands applied to sensor readings.
func (s *Service) SensorLimits() domain.SensorLimits {
	return s.limits
}

// Close closes the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

type rulesEngineProvider interface {
	RulesEngine() *RulesEngine
}

type nowFuncProvider interface {
	NowFunc() func() time.Time
}

type nowFuncSetter interface {
	SetNowFunc(func() time.Time)
}

func extractRulesEngine(store PersistentStore) *RulesEngine {
	if p, ok := store.(rulesEngineProvider); ok {
		return p.RulesEngine()
	}
	return nil
}

// selectNowFunc picks the service time source. An explicit clock wins and is
// pushed down to stores that stamp records; otherwise the store clock is used.
func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	if clock != nil {
		now := func() time.Time { return clock.Now().UTC() }
		if setter, ok := store.(nowFuncSetter); ok {
			setter.SetNowFunc(func() time.Time { return now().Truncate(time.Microsecond) })
		}
		return now
	}
	if p, ok := store.(nowFuncProvider); ok {
		if fn := p.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	return func() time.Time { return time.Now().UTC() }
}

// run executes fn in one store transaction and records logs, metrics, spans
// and audit entries for the operation. fn returns the code of the record it
// touched.
func (s *Service) run(ctx context.Context, op string, fn func(tx Transaction) (string, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		id, err := fn(tx)
		entityID = id
		return err
	})
	elapsed := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	span.End(err)

	if err != nil {
		if isClientError(err) {
			s.logger.Warn("operation rejected", "operation", op, "entity_id", entityID, "error", err)
		} else {
			s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "error", err)
		}
		s.recordAudit(ctx, op, entityID, elapsed, err)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "message", v.Message)
	}
	s.logger.Debug("operation committed", "operation", op, "entity_id", entityID, "duration_ms", elapsed.Milliseconds())
	s.recordAuditSuccess(ctx, op, entityID, elapsed)
	return res, nil
}

// view runs a read-only operation with metrics and tracing.
func (s *Service) view(ctx context.Context, op string, fn func(TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := s.store.View(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	span.End(err)
	if err != nil && !isClientError(err) {
		s.logger.Error("read failed", "operation", op, "error", err)
	}
	return err
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := operationMeta[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// isClientError reports whether err stems from the request rather than the system.
func isClientError(err error) bool {
	var rv RuleViolationError
	return domain.IsValidation(err) || domain.IsNotFound(err) || errors.As(err, &rv) ||
		errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrReferenced) ||
		errors.Is(err, domain.ErrInvalidTransition)
}

// assignCode fills *code with a generated code when it is empty.
func (s *Service) assignCode(entity EntityType, code *string) error {
	if *code != "" {
		return nil
	}
	generated, err := s.codes.Generate(entity)
	if err != nil {
		return err
	}
	*code = generated
	return nil
}
