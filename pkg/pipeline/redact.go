package pipeline

import (
	"context"

	"github.com/aip-zerotrust/gateway/pkg/policy"
	"github.com/aip-zerotrust/gateway/pkg/redact"
)

// redactLayer post-processes a successful call's result, rewriting it
// according to the policy's redact config (spec §4.4). It never
// suppresses an error from an inner layer; it only touches the happy
// path's return value.
func redactLayer(cfg policy.RedactConfig) Layer {
	return func(ctx context.Context, cc *CallContext, next Next) (any, error) {
		result, err := next(ctx)
		if err != nil {
			return result, err
		}
		if !cfg.Enabled {
			cc.Result = result
			return result, nil
		}

		redacted := redact.Value(result, redact.Config{
			DenyKeys:     cfg.DenyKeysEffective(),
			PiiEmails:    cfg.PiiEmailsEnabled(),
			PiiPhones:    cfg.PiiPhones,
			MaxStringLen: cfg.MaxStringLenEffective(),
		})
		cc.Result = redacted
		return redacted, nil
	}
}
