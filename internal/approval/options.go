package approval

import (
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-approval/internal/events"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a WorkflowService.
type Option func(*WorkflowService)

// WithAutoApprovalThreshold sets the amount at or below which a new
// workflow is approved without any human step.
func WithAutoApprovalThreshold(threshold decimal.Decimal) Option {
	return func(s *WorkflowService) {
		s.threshold = threshold
	}
}

// WithPublisher sets where transition events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *WorkflowService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithAuthorizer lets workspace admins cancel workflows they did not request.
func WithAuthorizer(a WorkspaceAuthorizer) Option {
	return func(s *WorkflowService) {
		s.authorizer = a
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *WorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracer overrides the tracer used for service spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *WorkflowService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMeter overrides the meter used for the transition counter.
func WithMeter(meter metric.Meter) Option {
	return func(s *WorkflowService) {
		if meter != nil {
			s.meter = meter
		}
	}
}
