package pipeline

import (
	"context"

	"github.com/aip-zerotrust/gateway/pkg/model"
	"github.com/aip-zerotrust/gateway/pkg/policy"
	"github.com/aip-zerotrust/gateway/pkg/ratelimit"
)

const unknownScopeValue = "unknown"

// rateLimitKey derives the token-bucket key for inv under scope, per
// spec §4.3's scope-to-key mapping. An absent actor or session falls
// back to a shared "unknown" bucket rather than disabling the limiter,
// so unauthenticated traffic is still bounded.
func rateLimitKey(scope policy.RateLimitScope, inv model.Invocation) string {
	actor := inv.Actor()
	if actor == "" {
		actor = unknownScopeValue
	}

	switch scope {
	case policy.ScopeSession:
		session := inv.SessionID()
		if session == "" {
			session = unknownScopeValue
		}
		return "session:" + session
	case policy.ScopeTool:
		return "tool:" + inv.ToolName()
	case policy.ScopeActorTool:
		return "actor:" + actor + ":tool:" + inv.ToolName()
	default:
		return "actor:" + actor
	}
}

// rateLimitLayer enforces the keyed token-bucket limiter from spec §4.3.
func rateLimitLayer(cfg policy.RateLimitConfig, limiter *ratelimit.Limiter, policyID string) Layer {
	return func(ctx context.Context, cc *CallContext, next Next) (any, error) {
		if !cfg.Enabled || cfg.LimitPerMinute == 0 {
			return next(ctx)
		}

		key := rateLimitKey(cfg.Scope, cc.Invocation)
		allowed, telemetry := limiter.Allow(key, cfg.LimitPerMinute, cfg.Burst)
		cc.Meta["rate_limit"] = telemetry

		if !allowed {
			d := model.Deny(policyID, "Rate limit exceeded", model.LayerRateLimit, "Retry after the bucket refills.")
			cc.Decision = &d
			cc.Layer = model.LayerRateLimit
			return nil, model.NewPolicyDeniedError(d)
		}
		return next(ctx)
	}
}
