package registry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pixkeys/internal/pixkey/metrics"
	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/pkg/platform/circuit"
)

const tracerName = "pixkeys/registry"

// Resilient decorates a gateway. Only offline and timeout failures count
// against the breaker; business rejections mean the registry is healthy.
type Resilient struct {
	next    ports.RegistryGateway
	breaker *circuit.Breaker
	tracer  trace.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type ResilientOption func(*Resilient)

func WithMetrics(m *metrics.Metrics) ResilientOption {
	return func(r *Resilient) { r.metrics = m }
}

func WithLogger(logger *slog.Logger) ResilientOption {
	return func(r *Resilient) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithBreaker(b *circuit.Breaker) ResilientOption {
	return func(r *Resilient) {
		if b != nil {
			r.breaker = b
		}
	}
}

func NewResilient(next ports.RegistryGateway, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:    next,
		breaker: circuit.New("registry"),
		tracer:  otel.Tracer(tracerName),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resilient) call(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "registry."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
	defer span.End()

	if !r.breaker.Allow(r.now()) {
		err := ports.NewRegistryError(ports.RegistryOffline, op, "circuit open", nil)
		span.SetStatus(codes.Error, "circuit open")
		r.metrics.ObserveRegistryCall(op, "short_circuit", 0)
		return err
	}

	start := r.now()
	err := fn(ctx)
	elapsed := r.now().Sub(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind, ok := ports.RegistryErrorKindOf(err); ok {
			outcome = string(kind)
			span.SetAttributes(attribute.String("registry.error_kind", string(kind)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	r.metrics.ObserveRegistryCall(op, outcome, elapsed)

	if unhealthy(err) {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.metrics.SetBreakerOpen(true)
			r.logger.WarnContext(ctx, "registry circuit opened", "op", op, "error", err)
		}
		return err
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.metrics.SetBreakerOpen(false)
		r.logger.InfoContext(ctx, "registry circuit closed", "op", op)
	}
	return err
}

func unhealthy(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := ports.RegistryErrorKindOf(err)
	if !ok {
		return true
	}
	return kind == ports.RegistryOffline || kind == ports.RegistryOperationTimeout
}

func keyAttrs(keyType models.KeyType) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("pix.key_type", string(keyType))}
}

func claimAttrs(req ports.ClaimActionRequest) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("pix.claim_id", req.ClaimID.String())}
}

func (r *Resilient) CreateKey(ctx context.Context, req ports.CreateKeyRequest) (out *ports.RegisteredKey, err error) {
	err = r.call(ctx, "CreateKey", keyAttrs(req.Type), func(ctx context.Context) error {
		out, err = r.next.CreateKey(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) DeleteKey(ctx context.Context, req ports.DeleteKeyRequest) error {
	return r.call(ctx, "DeleteKey", keyAttrs(req.Type), func(ctx context.Context) error {
		return r.next.DeleteKey(ctx, req)
	})
}

func (r *Resilient) CreateOwnershipClaim(ctx context.Context, req ports.ClaimRequest) (out *models.Claim, err error) {
	err = r.call(ctx, "CreateOwnershipClaim", keyAttrs(req.KeyType), func(ctx context.Context) error {
		out, err = r.next.CreateOwnershipClaim(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) CreatePortabilityClaim(ctx context.Context, req ports.ClaimRequest) (out *models.Claim, err error) {
	err = r.call(ctx, "CreatePortabilityClaim", keyAttrs(req.KeyType), func(ctx context.Context) error {
		out, err = r.next.CreatePortabilityClaim(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) CancelOwnershipClaim(ctx context.Context, req ports.ClaimActionRequest) (out *models.Claim, err error) {
	err = r.call(ctx, "CancelOwnershipClaim", claimAttrs(req), func(ctx context.Context) error {
		out, err = r.next.CancelOwnershipClaim(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) CancelPortabilityClaim(ctx context.Context, req ports.ClaimActionRequest) (out *models.Claim, err error) {
	err = r.call(ctx, "CancelPortabilityClaim", claimAttrs(req), func(ctx context.Context) error {
		out, err = r.next.CancelPortabilityClaim(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) ConfirmPortabilityClaim(ctx context.Context, req ports.ClaimActionRequest) (out *models.Claim, err error) {
	err = r.call(ctx, "ConfirmPortabilityClaim", claimAttrs(req), func(ctx context.Context) error {
		out, err = r.next.ConfirmPortabilityClaim(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) CloseClaim(ctx context.Context, req ports.ClaimActionRequest) (out *models.Claim, err error) {
	err = r.call(ctx, "CloseClaim", claimAttrs(req), func(ctx context.Context) error {
		out, err = r.next.CloseClaim(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) DenyClaim(ctx context.Context, req ports.ClaimActionRequest) (out *models.Claim, err error) {
	err = r.call(ctx, "DenyClaim", claimAttrs(req), func(ctx context.Context) error {
		out, err = r.next.DenyClaim(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) FinishClaim(ctx context.Context, req ports.ClaimActionRequest) (out *models.Claim, err error) {
	err = r.call(ctx, "FinishClaim", claimAttrs(req), func(ctx context.Context) error {
		out, err = r.next.FinishClaim(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) ListClaims(ctx context.Context, req ports.ListClaimsRequest) (out *ports.ClaimList, err error) {
	attrs := []attribute.KeyValue{attribute.Int("registry.page", req.Page)}
	err = r.call(ctx, "ListClaims", attrs, func(ctx context.Context) error {
		out, err = r.next.ListClaims(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) DecodeKey(ctx context.Context, req ports.DecodeKeyRequest) (out *models.DecodeResult, err error) {
	err = r.call(ctx, "DecodeKey", keyAttrs(req.Type), func(ctx context.Context) error {
		out, err = r.next.DecodeKey(ctx, req)
		return err
	})
	return out, err
}
