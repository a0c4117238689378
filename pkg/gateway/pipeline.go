package gateway

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/arbiterai/arbiter-oss/pkg/audit"
	"github.com/arbiterai/arbiter-oss/pkg/domain"
	"github.com/arbiterai/arbiter-oss/pkg/policy"
	"github.com/arbiterai/arbiter-oss/pkg/telemetry"
)

// Classifier maps a prompt to an intent. Satisfied by *intent.Classifier.
type Classifier interface {
	Predict(ctx context.Context, text string) (domain.IntentResult, error)
	Ready(ctx context.Context) error
}

// overrideVerbs are the phrases that, combined with break-glass attributes
// on an admin identity, short-circuit classification to admin_override.
var overrideVerbs = []string{"ignore", "override", "bypass"}

// Request is one caller request entering the pipeline.
type Request struct {
	// ID correlates transport, logs and audit. Assigned when empty.
	ID       string
	Identity domain.IdentityContext
	Prompt   string
}

// Result is the pipeline outcome for one request.
type Result struct {
	RequestID     string
	Allowed       bool
	Intent        domain.IntentResult
	Reason        domain.Reason
	Answer        string
	PolicyVersion string
}

// Pipeline wires the classifier, policy store, upstream and audit sink
// into a single Handle call. It holds no per-request state and is safe
// for concurrent use.
type Pipeline struct {
	classifier Classifier
	store      *policy.Store
	upstream   Upstream
	sink       audit.Sink
	metrics    *telemetry.Metrics
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewPipeline constructs a Pipeline. All dependencies are required.
func NewPipeline(classifier Classifier, store *policy.Store, upstream Upstream, sink audit.Sink, metrics *telemetry.Metrics, logger zerolog.Logger) (*Pipeline, error) {
	if classifier == nil {
		return nil, fmt.Errorf("gateway: classifier is required")
	}
	if store == nil {
		return nil, fmt.Errorf("gateway: policy store is required")
	}
	if upstream == nil {
		return nil, fmt.Errorf("gateway: upstream is required")
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	return &Pipeline{
		classifier: classifier,
		store:      store,
		upstream:   upstream,
		sink:       sink,
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer("arbiter/gateway"),
		now:        time.Now,
	}, nil
}

// Ready reports whether the pipeline can serve traffic: the classifier
// answers a dry-run prediction and a policy snapshot is loaded.
func (p *Pipeline) Ready(ctx context.Context) error {
	if p.store.Current() == nil {
		return domain.ErrPolicyNotLoaded
	}
	return p.classifier.Ready(ctx)
}

// PolicyVersion returns the version of the active policy snapshot.
func (p *Pipeline) PolicyVersion() string {
	return p.store.Version()
}

// Handle runs one request through classify, decide, forward and audit.
// An empty prompt is rejected with domain.ErrEmptyPrompt before any
// classification or audit work. A denied request returns Allowed=false with
// a nil error; errors are reserved for pipeline failures.
func (p *Pipeline) Handle(ctx context.Context, req Request) (Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		p.metrics.RecordEmptyPrompt()
		return Result{}, domain.ErrEmptyPrompt
	}

	snapshot := p.store.Current()
	if snapshot == nil {
		return Result{}, domain.ErrPolicyNotLoaded
	}

	requestID := req.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, span := p.tracer.Start(ctx, "gateway.handle")
	defer span.End()

	start := p.now()

	intentStart := p.now()
	intentResult, err := p.classify(ctx, req.Identity, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("classify prompt: %w", err)
	}
	intentElapsed := p.now().Sub(intentStart)

	policyStart := p.now()
	decision := snapshot.Decide(req.Identity.Role, intentResult.Intent, req.Identity.Attributes)
	policyElapsed := p.now().Sub(policyStart)

	// Decision latency covers classification and the policy check; upstream
	// time is deliberately excluded so the audit trail measures the gate.
	totalElapsed := p.now().Sub(start)

	result := Result{
		RequestID:     requestID,
		Allowed:       decision.Allowed,
		Intent:        intentResult,
		Reason:        decision.Reason,
		PolicyVersion: snapshot.Version(),
	}

	var upstreamErr error
	if decision.Allowed {
		answer, err := p.upstream.Invoke(ctx, prompt)
		if err != nil {
			upstreamErr = err
			p.metrics.RecordUpstreamError()
		} else {
			result.Answer = answer
		}
	}

	event := audit.Event{
		RequestID: requestID,
		Role:      req.Identity.Role,
		Attrs:     req.Identity.CloneAttributes(),
		Intent: audit.IntentRecord{
			Intent:     intentResult.Intent,
			Confidence: intentResult.Confidence,
		},
		Allowed:       decision.Allowed,
		Reason:        string(decision.Reason),
		LatencyMS:     roundMS(totalElapsed),
		IntentMS:      roundMS(intentElapsed),
		PolicyMS:      roundMS(policyElapsed),
		PromptChars:   len(prompt),
		PolicyVersion: snapshot.Version(),
		Timestamp:     audit.NewTimestamp(p.now()),
	}
	if err := p.sink.Record(ctx, event); err != nil {
		p.metrics.RecordAuditFailure()
		p.logger.Error().Err(err).Str("request_id", requestID).Msg("audit record failed")
	}

	p.metrics.RecordDecision(req.Identity.Role, intentResult.Intent, string(decision.Reason), decision.Allowed, totalElapsed, intentElapsed, policyElapsed)
	telemetry.RecordDecisionEvent(span, decision.Allowed, string(decision.Reason), intentResult.Intent, intentResult.Confidence)

	p.logger.Info().
		Str("request_id", requestID).
		Str("role", req.Identity.Role).
		Str("intent", intentResult.Intent).
		Float64("confidence", intentResult.Confidence).
		Bool("allowed", decision.Allowed).
		Str("reason", string(decision.Reason)).
		Str("policy_version", snapshot.Version()).
		Msg("decision")

	if upstreamErr != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, upstreamErr)
	}
	return result, nil
}

// classify runs the admin override nudge before the classifier: an admin
// that presents a ticket and justification and uses an override verb is
// treated as an explicit break-glass attempt at full confidence.
func (p *Pipeline) classify(ctx context.Context, id domain.IdentityContext, prompt string) (domain.IntentResult, error) {
	ticket, hasTicket := id.Attr(domain.AttrTicketID)
	justification, hasJustification := id.Attr(domain.AttrJustification)
	if id.Role == "admin" && hasTicket && ticket != "" && hasJustification && justification != "" {
		lower := strings.ToLower(prompt)
		for _, verb := range overrideVerbs {
			if strings.Contains(lower, verb) {
				return domain.IntentResult{Intent: domain.IntentAdminOverride, Confidence: 1.0}, nil
			}
		}
	}
	return p.classifier.Predict(ctx, prompt)
}

// roundMS converts a duration to milliseconds rounded to two decimals,
// the precision audit consumers expect.
func roundMS(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/1000*100) / 100
}
