package pipeline

import (
	"context"

	"github.com/aip-zerotrust/gateway/pkg/audit"
	"github.com/aip-zerotrust/gateway/pkg/model"
	"github.com/aip-zerotrust/gateway/pkg/policy"
	"github.com/aip-zerotrust/gateway/pkg/ratelimit"
)

// Pipeline wraps one tool invocation with the six fixed enforcement
// layers from spec §4.2.
//
// Nesting, outermost to innermost: audit, redact, validate, rate_limit,
// authorize, detect_attacks, then the tool call itself. Audit sits
// outermost so it observes every outcome including denials raised by any
// inner layer (testable property #6, "audit completeness"); redact sits
// just inside audit so the event it logs reflects the already-redacted
// result. Among the four gating layers, validate, rate_limit, authorize,
// detect_attacks run in that chronological order before the tool is ever
// invoked.
type Pipeline struct {
	engine *policy.Engine
	layers []Layer
}

// New builds a Pipeline bound to engine's policy snapshot, using limiter
// for the rate_limit layer and sink for the audit layer.
func New(engine *policy.Engine, limiter *ratelimit.Limiter, sink audit.Sink) *Pipeline {
	p := engine.Policy()
	return &Pipeline{
		engine: engine,
		layers: []Layer{
			auditLayer(sink, p.Audit, p.PolicyID),
			redactLayer(p.Redact),
			validateLayer(p.Validate, p.PolicyID),
			rateLimitLayer(p.RateLimit, limiter, p.PolicyID),
			authorizeLayer(engine),
			detectAttacksLayer(p.DetectAttacks, p.PolicyID),
		},
	}
}

// Execute runs inv through every layer and, if nothing denies it, through
// toolFn. The returned error is a *model.PolicyDeniedError for any
// enforcement denial, or whatever error toolFn itself produced.
func (p *Pipeline) Execute(ctx context.Context, inv model.Invocation, toolFn ToolFunc) (any, error) {
	cc := newCallContext(inv, p.engine.Policy().PolicyID)

	next := Next(func(ctx context.Context) (any, error) {
		return toolFn(ctx, inv.Arguments())
	})
	for i := len(p.layers) - 1; i >= 0; i-- {
		next = bind(p.layers[i], cc, next)
	}
	return next(ctx)
}

// bind closes a Layer over its CallContext and successor, fixing the
// variable-capture pitfall of building these closures inside a loop.
func bind(layer Layer, cc *CallContext, next Next) Next {
	return func(ctx context.Context) (any, error) {
		return layer(ctx, cc, next)
	}
}
