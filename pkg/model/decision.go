package model

import "fmt"

// Layer tags identify which enforcement stage produced a Decision.
const (
	LayerValidate      = "validate"
	LayerRateLimit     = "rate_limit"
	LayerAuthorize     = "authorize"
	LayerDetectAttacks = "detect_attacks"
)

// Decision is the structured outcome of evaluating a policy (or a
// pipeline layer) against an Invocation. Immutable.
type Decision struct {
	Allowed     bool
	Reason      string
	PolicyID    string
	Remediation string
	// Layer is one of the Layer* constants. Always set when Allowed is
	// false (invariant 1 of spec §3).
	Layer string
}

// Deny builds a denying Decision. remediation may be "".
func Deny(policyID, reason, layer, remediation string) Decision {
	return Decision{
		Allowed:     false,
		Reason:      reason,
		PolicyID:    policyID,
		Remediation: remediation,
		Layer:       layer,
	}
}

// Allow builds an allowing Decision.
func Allow(policyID, reason, layer string) Decision {
	return Decision{
		Allowed:  true,
		Reason:   reason,
		PolicyID: policyID,
		Layer:    layer,
	}
}

// PolicyDeniedError is returned by a pipeline layer (or raised directly
// by an Enforcer) when a tool call is denied. It carries the Decision so
// callers can branch on layer/reason/remediation without string parsing.
type PolicyDeniedError struct {
	Decision Decision
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("denied: %s", e.Decision.Reason)
}

// NewPolicyDeniedError wraps a denying Decision as an error.
func NewPolicyDeniedError(d Decision) *PolicyDeniedError {
	return &PolicyDeniedError{Decision: d}
}
