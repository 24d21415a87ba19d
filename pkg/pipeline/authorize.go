package pipeline

import (
	"context"

	"github.com/aip-zerotrust/gateway/pkg/model"
	"github.com/aip-zerotrust/gateway/pkg/policy"
)

// authorizeLayer runs the full rule-evaluation algorithm (spec §4.1) and
// records the resulting Decision on the CallContext regardless of
// outcome, so redact/audit layers further out can see it even though
// they sit outside this layer in the chain.
func authorizeLayer(engine *policy.Engine) Layer {
	return func(ctx context.Context, cc *CallContext, next Next) (any, error) {
		d := engine.Evaluate(cc.Invocation)
		cc.Decision = &d
		cc.Layer = model.LayerAuthorize

		if !d.Allowed {
			return nil, model.NewPolicyDeniedError(d)
		}
		return next(ctx)
	}
}
