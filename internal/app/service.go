// Package service provides the submission forwarding pipeline used by the
// HTTP API: decode, map, dispatch, classify and journal.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/okian/epcforward/internal/adapters/audit"
	"github.com/okian/epcforward/internal/adapters/upstream"
	"github.com/okian/epcforward/internal/domain/outcome"
	"github.com/okian/epcforward/internal/domain/submission"
	"github.com/okian/epcforward/pkg/logger"
	"github.com/okian/epcforward/pkg/metrics"
)

// Dispatcher delivers a canonical submission to the workflow trigger.
type Dispatcher interface {
	Post(ctx context.Context, payload any) (*upstream.Response, error)
}

const (
	statsPendingLimit = 1000
	statsTimeout      = 2 * time.Second
)

// Sentinel errors.
var (
	ErrNoDispatcher = errors.New("no upstream dispatcher configured")
	ErrNotStarted   = errors.New("service not started")
)

// Service forwards onboarding submissions. It keeps no per-request state;
// the journal and metrics are append-only sinks.
type Service struct {
	mu sync.RWMutex

	mapper     *submission.Mapper
	dispatcher Dispatcher
	policy     *outcome.Policy
	references submission.ReferenceGenerator
	ids        *submission.ULIDSource
	journal    audit.Store
	now        func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithMapper sets the payload mapper.
func WithMapper(m *submission.Mapper) Option {
	return func(s *Service) {
		if m != nil {
			s.mapper = m
		}
	}
}

// WithDispatcher sets the upstream dispatcher. Required.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithPolicy sets the status classification policy.
func WithPolicy(p *outcome.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithReferences sets the reference number generator.
func WithReferences(g submission.ReferenceGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.references = g
		}
	}
}

// WithJournal sets the audit store. The service closes it on Stop.
func WithJournal(j audit.Store) Option {
	return func(s *Service) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithClock overrides the time source for references and journal entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		mapper:     submission.NewMapper(),
		policy:     outcome.DefaultPolicy(),
		references: submission.MillisReferences{},
		ids:        submission.NewULIDSource(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates dependencies and marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.dispatcher == nil {
		return ErrNoDispatcher
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("forwarder")
	}
	if s.journal == nil {
		s.journal = audit.NewMemoryStore()
		s.logger.Warn(ctx, "no audit journal configured, using in-memory journal")
	}

	s.started = true
	s.logger.Info(ctx, "submission forwarder started",
		logger.String("source", s.mapper.Source()),
		logger.Int("statusRules", len(s.policy.Rules())),
	)
	return nil
}

// Stop closes the journal.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.journal.Close(); err != nil {
		s.logger.Error(context.Background(), "closing audit journal failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "submission forwarder stopped")
}

// Started reports whether Start has completed.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Submit runs one submission through the pipeline and returns the reply to
// send. It never returns an error: failures are rendered into the reply.
func (s *Service) Submit(ctx context.Context, path string, body []byte) outcome.Reply {
	if !s.Started() {
		reply, _ := s.policy.Resolve(outcome.FromLocalError(ErrNotStarted), "")
		return reply
	}

	// Journal writes outlive a client disconnect, like the upstream call.
	jctx := context.WithoutCancel(ctx)

	now := s.now()
	auditID := s.ids.Next(now)
	reference := s.references.Next(now)
	log := s.logger.With(logger.String("auditId", auditID), logger.String("path", path))

	s.record(jctx, log, audit.Entry{
		ID:         auditID,
		Path:       path,
		Payload:    body,
		Status:     audit.StatusReceived,
		ReceivedAt: now,
	})
	log.Debug(ctx, "submission received", logger.Int("bytes", len(body)))

	result := s.process(ctx, log, body)
	reply, decision := s.policy.Resolve(result, reference)

	resolution := audit.Resolution{
		Kind:           string(result.Kind),
		Action:         string(decision.Action),
		UpstreamStatus: result.Status,
		ResolvedAt:     s.now(),
	}
	if decision.Action == outcome.ActionAcknowledge {
		resolution.Reference = reference
	}
	if result.Err != nil {
		resolution.Error = result.Err.Error()
	}
	s.resolve(jctx, log, auditID, resolution)

	s.report(ctx, log, result, decision, resolution.Reference)
	return reply
}

// process decodes, maps and dispatches one body.
func (s *Service) process(ctx context.Context, log logger.Logger, body []byte) outcome.Result {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		metrics.RecordErrorByComponent("forwarder", "decode")
		return outcome.FromLocalError(err)
	}
	// Valid JSON that is not an object carries no form fields.
	in, _ := decoded.(map[string]any)

	start := time.Now()
	canonical := s.mapper.Map(submission.Inbound(in))
	metrics.RecordMappingLatency(float64(time.Since(start).Microseconds()) / 1000)
	log.Debug(ctx, "submission mapped",
		logger.String("invitationCode", canonical.InvitationCode),
		logger.String("companyName", canonical.CompanyName),
		logger.Int("services", len(canonical.Services)),
	)

	start = time.Now()
	resp, err := s.dispatcher.Post(ctx, canonical)
	metrics.RecordUpstreamLatency(float64(time.Since(start).Milliseconds()))

	var result outcome.Result
	switch {
	case err == nil:
		result = outcome.FromResponse(resp.Status, resp.ContentType, resp.Body)
	case errors.Is(err, upstream.ErrBuildRequest):
		metrics.RecordErrorByComponent("upstream", "build_request")
		return outcome.FromLocalError(err)
	default:
		metrics.RecordErrorByComponent("upstream", "transport")
		result = outcome.FromTransportError(err)
	}
	metrics.RecordUpstreamRequest(result.StatusClass())
	return result
}

func (s *Service) record(ctx context.Context, log logger.Logger, e audit.Entry) {
	if err := s.journal.Save(ctx, e); err != nil {
		metrics.RecordAuditError("save")
		log.Error(ctx, "audit journal save failed", logger.Error(err))
		return
	}
	metrics.RecordAuditWrite("save")
}

func (s *Service) resolve(ctx context.Context, log logger.Logger, id string, r audit.Resolution) {
	if err := s.journal.Resolve(ctx, id, r); err != nil {
		metrics.RecordAuditError("resolve")
		log.Error(ctx, "audit journal resolve failed", logger.Error(err))
		return
	}
	metrics.RecordAuditWrite("resolve")
}

func (s *Service) report(ctx context.Context, log logger.Logger, r outcome.Result, d outcome.Decision, reference string) {
	action := string(d.Action)
	if r.Kind == outcome.KindLocalError {
		action = "error"
	}
	metrics.RecordSubmission(string(r.Kind), action)

	fields := []logger.Field{
		logger.String("outcome", string(r.Kind)),
		logger.String("action", action),
		logger.Int("upstreamStatus", r.Status),
	}
	if reference != "" {
		fields = append(fields, logger.String("referenceNumber", reference))
	}
	if r.Err != nil {
		fields = append(fields, logger.Error(r.Err))
	}

	switch {
	case r.Kind == outcome.KindLocalError:
		log.Error(ctx, "submission rejected", fields...)
	case outcome.Masked(r.Kind, d):
		metrics.RecordMaskedFailure(string(r.Kind))
		if d.Note != "" {
			fields = append(fields, logger.String("note", d.Note))
		}
		log.Warn(ctx, "upstream failure masked", fields...)
	case r.Kind != outcome.KindDelivered:
		log.Warn(ctx, "upstream status relayed", fields...)
	default:
		log.Info(ctx, "submission delivered", fields...)
	}
}

// GetStats returns service settings and the number of journal entries
// still awaiting resolution, capped at statsPendingLimit.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	started, journal := s.started, s.journal
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     started,
		"source":      s.mapper.Source(),
		"statusRules": len(s.policy.Rules()),
	}
	if !started || journal == nil {
		return stats
	}

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	pending, err := journal.Pending(ctx, statsPendingLimit)
	if err != nil {
		metrics.RecordAuditError("pending")
		s.logger.Error(ctx, "audit journal pending query failed", logger.Error(err))
		stats["pendingAudit"] = -1
		return stats
	}
	stats["pendingAudit"] = len(pending)
	return stats
}
