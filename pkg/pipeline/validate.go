package pipeline

import (
	"context"
	"fmt"

	"github.com/aip-zerotrust/gateway/pkg/model"
	"github.com/aip-zerotrust/gateway/pkg/policy"
)

// validateLayer enforces the size gate ahead of every other check, per
// spec §4.2's pre-invocation check order. policy.Engine.Evaluate performs
// the identical check again as step one of its own algorithm (§4.1); the
// two are deliberately redundant so a future change to how authorize is
// wired can't silently drop the size gate.
func validateLayer(cfg policy.ValidateConfig, policyID string) Layer {
	return func(ctx context.Context, cc *CallContext, next Next) (any, error) {
		if cfg.MaxArgBytes > 0 {
			if size := cc.Invocation.ArgumentsSizeBytes(); size > cfg.MaxArgBytes {
				d := model.Deny(
					policyID,
					fmt.Sprintf("Arguments too large (>%d bytes)", cfg.MaxArgBytes),
					model.LayerValidate,
					"Reduce arguments payload size.",
				)
				cc.Decision = &d
				cc.Layer = model.LayerValidate
				return nil, model.NewPolicyDeniedError(d)
			}
		}
		return next(ctx)
	}
}
