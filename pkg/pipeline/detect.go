package pipeline

import (
	"context"
	"regexp"

	"github.com/aip-zerotrust/gateway/pkg/model"
	"github.com/aip-zerotrust/gateway/pkg/policy"
)

// Attack-signature patterns the detect_attacks layer scans for, per spec
// §4.2. These are deliberately coarse: the layer is a pattern-matching
// speed bump ahead of the tool, not a WAF.
var (
	sqlInjectionRe  = regexp.MustCompile(`(?i)\b(select|union|insert|update|delete|drop|alter)\b|;\s*drop\s+table\b|\bor\b\s+['"]?1['"]?\s*=\s*['"]?1['"]?|--\s|/\*.*\*/`)
	pathTraversalRe = regexp.MustCompile(`(\.\./|\.\.\\|%2e%2e%2f)`)
	ssrfRe          = regexp.MustCompile(`(?i)\b(localhost|127\.0\.0\.1|0\.0\.0\.0|169\.254\.169\.254|::1)\b`)
)

const (
	onDetectDeny  = "deny"
	onDetectAllow = "allow"
)

// detectAttacksLayer scans the configured fields, collected recursively
// out of the invocation's arguments, for known attack signatures.
func detectAttacksLayer(cfg policy.DetectAttacksConfig, policyID string) Layer {
	return func(ctx context.Context, cc *CallContext, next Next) (any, error) {
		if !cfg.Enabled {
			return next(ctx)
		}

		for _, field := range collectFields(cc.Invocation.Arguments(), cfg.Fields) {
			pattern, hit := matchAttackPattern(field)
			if !hit {
				continue
			}

			onDetect := cfg.OnDetect
			if onDetect == "" {
				onDetect = onDetectDeny
			}

			if onDetect == onDetectAllow {
				cc.Meta["detect_attacks"] = pattern
				continue
			}

			d := model.Deny(policyID, "Potential "+pattern+" pattern detected in arguments", model.LayerDetectAttacks, "Remove suspicious content from arguments.")
			cc.Decision = &d
			cc.Layer = model.LayerDetectAttacks
			return nil, model.NewPolicyDeniedError(d)
		}

		return next(ctx)
	}
}

func matchAttackPattern(s string) (name string, matched bool) {
	switch {
	case sqlInjectionRe.MatchString(s):
		return "SQL injection", true
	case pathTraversalRe.MatchString(s):
		return "path traversal", true
	case ssrfRe.MatchString(s):
		return "SSRF", true
	default:
		return "", false
	}
}

// collectFields walks args recursively and returns every string value
// found under a key named in fields. A map value recurses by key; a
// slice value recurses under its parent key, so a field named "urls"
// holding a list of strings is collected the same as a scalar "url".
func collectFields(args map[string]any, fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		wanted[f] = struct{}{}
	}

	var out []string
	var walk func(key string, value any)
	walk = func(key string, value any) {
		switch v := value.(type) {
		case string:
			if _, ok := wanted[key]; ok {
				out = append(out, v)
			}
		case map[string]any:
			for k, item := range v {
				walk(k, item)
			}
		case []any:
			for _, item := range v {
				walk(key, item)
			}
		}
	}
	for k, v := range args {
		walk(k, v)
	}
	return out
}
