package policy

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/aip-zerotrust/gateway/pkg/model"
)

// Engine evaluates invocations against one immutable Policy snapshot.
// The source algorithm (§4.1): size gate, then deny-rule scan, then
// allow-rule scan (with role and constraint checks), then the policy's
// default disposition.
//
// Engine is safe for concurrent use: the Policy it holds is read-only
// after construction, and Evaluate allocates no shared state.
type Engine struct {
	policy Policy
}

// NewEngine binds an Engine to a normalized Policy snapshot.
func NewEngine(p Policy) *Engine {
	return &Engine{policy: p}
}

// Policy returns the bound policy snapshot.
func (e *Engine) Policy() Policy { return e.policy }

// Evaluate runs the full algorithm from §4.1 and returns a Decision.
func (e *Engine) Evaluate(inv model.Invocation) model.Decision {
	p := e.policy

	if p.Validate.MaxArgBytes > 0 {
		if size := inv.ArgumentsSizeBytes(); size > p.Validate.MaxArgBytes {
			return model.Deny(
				p.PolicyID,
				fmt.Sprintf("Arguments too large (>%d bytes)", p.Validate.MaxArgBytes),
				model.LayerValidate,
				"Reduce arguments payload size.",
			)
		}
	}

	if reason, ok := e.matchDeny(inv); ok {
		return model.Deny(p.PolicyID, reason, model.LayerAuthorize, "")
	}

	if rule, found := e.matchAllowRule(inv); found {
		if reason := e.roleMismatch(rule, inv); reason != "" {
			// Recorded verbatim from the source: the reason is
			// authorization-shaped but the layer tag is "validate". See
			// SPEC_FULL.md Open Question 1.
			return model.Deny(p.PolicyID, reason, model.LayerValidate, "")
		}

		if reason := e.validateConstraints(rule.Constraints, inv.Arguments()); reason != "" {
			return model.Deny(p.PolicyID, reason, model.LayerValidate, "Fix tool arguments to satisfy policy constraints.")
		}

		if p.Validate.RejectUnknownArgs {
			if extra := unknownArgs(rule.Constraints, inv.Arguments()); len(extra) > 0 {
				return model.Deny(
					p.PolicyID,
					fmt.Sprintf("Unknown arguments not allowed: %s", formatStringList(extra)),
					model.LayerValidate,
					"Remove unknown arguments.",
				)
			}
		}

		return model.Allow(p.PolicyID, "Matched allow rule", model.LayerAuthorize)
	}

	if p.Default == DispositionAllow {
		return model.Allow(p.PolicyID, "No matching rule; default allow", model.LayerAuthorize)
	}
	return model.Deny(p.PolicyID, "No matching rule; default deny", model.LayerAuthorize, "Request access via policy update.")
}

// matchDeny scans deny rules in declaration order; the first rule whose
// tool matches and whose (optional) condition is satisfied wins.
func (e *Engine) matchDeny(inv model.Invocation) (reason string, matched bool) {
	for _, rule := range e.policy.DenyRules {
		if rule.Tool != inv.ToolName() {
			continue
		}
		if rule.Condition == nil {
			return rule.Reason, true
		}
		if conditionSatisfied(rule.Condition, inv.Arguments()) {
			return rule.Reason, true
		}
	}
	return "", false
}

func conditionSatisfied(condition map[string]any, args map[string]any) bool {
	for k, want := range condition {
		got, present := args[k]
		if !present || !equalJSONValue(got, want) {
			return false
		}
	}
	return true
}

// matchAllowRule returns the first allow rule whose tool name matches,
// regardless of whether it ultimately passes role/constraint checks —
// §4.1 step 3 always stops at the first tool-name match.
func (e *Engine) matchAllowRule(inv model.Invocation) (AllowRule, bool) {
	for _, rule := range e.policy.AllowRules {
		if rule.Tool == inv.ToolName() {
			return rule, true
		}
	}
	return AllowRule{}, false
}

// roleMismatch returns a deny reason if the rule restricts roles and the
// invocation's roles don't intersect it; "" if there's no mismatch.
func (e *Engine) roleMismatch(rule AllowRule, inv model.Invocation) string {
	if rule.Roles == nil {
		return ""
	}
	allowed := make(map[string]struct{}, len(rule.Roles))
	for _, r := range rule.Roles {
		allowed[r] = struct{}{}
	}
	for _, r := range inv.Roles() {
		if _, ok := allowed[r]; ok {
			return ""
		}
	}
	return "Actor role not permitted for this tool"
}

// validateConstraints runs the two-pass algorithm in §4.1a: a required-
// presence pass, then a typed-predicate pass, both in the constraint
// set's source order. Returns "" if every constraint is satisfied.
func (e *Engine) validateConstraints(constraints ConstraintSet, args map[string]any) string {
	var reason string

	constraints.Range(func(name string, c Constraint) bool {
		if c.Required {
			if _, present := args[name]; !present {
				reason = fmt.Sprintf("Missing required argument: %s", name)
				return false
			}
		}
		return true
	})
	if reason != "" {
		return reason
	}

	constraints.Range(func(name string, c Constraint) bool {
		value, present := args[name]
		if !present {
			return true
		}
		if value == nil {
			reason = fmt.Sprintf("Argument '%s' must not be null", name)
			return false
		}

		switch c.Type {
		case ConstraintString:
			reason = validateString(name, c, value)
		case ConstraintBoolean:
			reason = validateBoolean(name, value)
		case ConstraintInteger:
			reason = validateNumeric(name, c, value, true)
		case ConstraintNumber:
			reason = validateNumeric(name, c, value, false)
		default:
			reason = fmt.Sprintf("Unsupported constraint type for '%s': %s", name, c.Type)
		}
		return reason == ""
	})

	return reason
}

func validateString(name string, c Constraint, value any) string {
	s, ok := value.(string)
	if !ok {
		return fmt.Sprintf("Argument '%s' must be a string", name)
	}
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Sprintf("Invalid regex pattern in policy for '%s'", name)
		}
		// Matches Python's re.match: anchored at the start of the
		// string, not required to consume it (see SPEC_FULL.md §E.4).
		loc := re.FindStringIndex(s)
		if loc == nil || loc[0] != 0 {
			return fmt.Sprintf("Argument '%s' does not match pattern", name)
		}
	}
	if c.Enum != nil {
		found := false
		for _, e := range c.Enum {
			if equalJSONValue(s, e) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("Argument '%s' must be one of %s", name, formatAnyList(c.Enum))
		}
	}
	return ""
}

func validateBoolean(name string, value any) string {
	if _, ok := value.(bool); !ok {
		return fmt.Sprintf("Argument '%s' must be a boolean", name)
	}
	return ""
}

func validateNumeric(name string, c Constraint, value any, integer bool) string {
	if _, isBool := value.(bool); isBool {
		kind := "a number"
		if integer {
			kind = "an integer"
		}
		return fmt.Sprintf("Argument '%s' must be %s", name, kind)
	}

	num, isNumeric := asFloat(value)
	if !isNumeric {
		kind := "a number"
		if integer {
			kind = "an integer"
		}
		return fmt.Sprintf("Argument '%s' must be %s", name, kind)
	}
	if integer && !isWholeNumber(value, num) {
		return fmt.Sprintf("Argument '%s' must be an integer", name)
	}

	if c.Min != nil && num < *c.Min {
		return fmt.Sprintf("Argument '%s' must be >= %s", name, trimFloat(*c.Min))
	}
	if c.Max != nil && num > *c.Max {
		return fmt.Sprintf("Argument '%s' must be <= %s", name, trimFloat(*c.Max))
	}
	return ""
}

// asFloat reports whether value is a JSON number (int or float) and its
// float64 value.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// isWholeNumber reports whether value is an integral type, or a
// floating-point type holding a whole number (JSON decoders surface all
// numbers as float64, so 3 and 3.0 are indistinguishable on the wire —
// both count as "integer" per spec §4.1a's intent).
func isWholeNumber(value any, num float64) bool {
	switch value.(type) {
	case int, int32, int64:
		return true
	}
	return num == float64(int64(num))
}

func unknownArgs(constraints ConstraintSet, args map[string]any) []string {
	var extra []string
	for k := range args {
		if !constraints.HasKey(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return extra
}

func equalJSONValue(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func formatStringList(items []string) string {
	out := "["
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("'%s'", s)
	}
	return out + "]"
}

func formatAnyList(items []any) string {
	out := "["
	for i, v := range items {
		if i > 0 {
			out += ", "
		}
		if s, ok := v.(string); ok {
			out += fmt.Sprintf("'%s'", s)
		} else {
			out += fmt.Sprintf("%v", v)
		}
	}
	return out + "]"
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
