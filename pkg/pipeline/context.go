// Package pipeline composes the six enforcement layers from gateway
// spec §4.2 around a user-supplied tool function, carrying one
// CallContext per execute call.
package pipeline

import (
	"time"

	"github.com/aip-zerotrust/gateway/pkg/model"
)

// CallContext is mutable state scoped to exactly one invocation (spec
// §3). It is never shared across invocations; Pipeline.Execute allocates
// a fresh one per call.
type CallContext struct {
	Invocation model.Invocation
	PolicyID   string
	start      time.Time

	// Decision holds the Decision that determined the call's outcome,
	// once any layer has produced one.
	Decision *model.Decision
	// Result holds the tool's return value, set once the tool has run
	// and (if enabled) after redaction.
	Result any
	// Layer records the tag of whichever layer last touched Decision.
	Layer string
	// Meta is free-form per-call telemetry, e.g. Meta["rate_limit"].
	Meta map[string]any
}

func newCallContext(inv model.Invocation, policyID string) *CallContext {
	return &CallContext{
		Invocation: inv,
		PolicyID:   policyID,
		start:      time.Now(),
		Meta:       make(map[string]any),
	}
}

// LatencyMS is the elapsed wall time since the call began, in
// milliseconds, using the monotonic clock reading time.Now() carries
// internally (spec §3's "start timestamp, monotonic nanoseconds").
func (c *CallContext) LatencyMS() int64 {
	return time.Since(c.start).Milliseconds()
}
