package pipeline

import (
	"context"
	"errors"

	"github.com/aip-zerotrust/gateway/pkg/audit"
	"github.com/aip-zerotrust/gateway/pkg/model"
	"github.com/aip-zerotrust/gateway/pkg/policy"
)

const (
	decisionAllow = "allow"
	decisionDeny  = "deny"
	decisionError = "error"
)

// auditLayer sits outermost in the chain (see pipeline.go) so it
// observes every outcome: a clean allow, a denial raised by any inner
// layer, or an unexpected error out of the tool itself. Exactly one
// Event is emitted per Execute call, matching testable property #6.
func auditLayer(sink audit.Sink, cfg policy.AuditConfig, policyID string) Layer {
	return func(ctx context.Context, cc *CallContext, next Next) (any, error) {
		result, err := next(ctx)

		if !cfg.EnabledEffective() || sink == nil {
			return result, err
		}

		inv := cc.Invocation
		event := audit.Event{
			Timestamp:   inv.ISOTimestamp(),
			Action:      "tool_call",
			ToolName:    inv.ToolName(),
			PolicyID:    policyID,
			Actor:       inv.Actor(),
			RequestID:   inv.RequestID(),
			LatencyMS:   cc.LatencyMS(),
			Client:      inv.Client(),
			ArgsSummary: audit.Summarize(inv.Arguments()),
		}
		if cfg.IncludeArgumentValues {
			event.Arguments = inv.Arguments()
		}

		var denied *model.PolicyDeniedError
		switch {
		case err == nil:
			event.Decision = decisionAllow
			if cc.Decision != nil {
				event.Reason = cc.Decision.Reason
				event.Layer = cc.Decision.Layer
			}
			if cfg.IncludeResult {
				event.Result = result
			}
		case errors.As(err, &denied):
			event.Decision = decisionDeny
			event.Reason = denied.Decision.Reason
			event.Layer = denied.Decision.Layer
		default:
			event.Decision = decisionError
			event.Reason = err.Error()
			if cc.Decision != nil {
				event.Layer = cc.Decision.Layer
			}
		}

		sink.Emit(event)
		return result, err
	}
}
