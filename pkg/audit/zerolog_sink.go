package audit

import "github.com/rs/zerolog"

// ZerologSink emits one zerolog JSON line per Event, the way
// houzhh15-mote and lvonguyen-agentguard wire zerolog into their own
// structured logging: a zerolog.Logger is constructed by the caller (see
// internal/logging) and handed in here rather than the sink owning global
// logger state.
type ZerologSink struct {
	logger   zerolog.Logger
	denyKeys []string
}

// NewZerologSink builds a sink that logs through logger. denyKeys
// controls which argument/client/result keys get masked before they
// reach the log; pass nil to use redact.DefaultDenyKeys.
func NewZerologSink(logger zerolog.Logger, denyKeys []string) *ZerologSink {
	return &ZerologSink{logger: logger, denyKeys: denyKeys}
}

// Emit writes one structured log line for e. Null-valued fields (per
// spec §4.2) are simply omitted by the Event's own `omitempty` tags plus
// the zerolog builder only attaching fields that are non-empty here.
func (s *ZerologSink) Emit(e Event) {
	evt := s.logger.Info().
		Str("timestamp", e.Timestamp).
		Str("action", e.Action).
		Str("tool_name", e.ToolName).
		Str("decision", e.Decision).
		Str("policy_id", e.PolicyID).
		Int64("latency_ms", e.LatencyMS).
		Interface("arguments_summary", e.ArgsSummary)

	if e.Reason != "" {
		evt = evt.Str("reason", e.Reason)
	}
	if e.Actor != "" {
		evt = evt.Str("actor", e.Actor)
	}
	if e.RequestID != "" {
		evt = evt.Str("request_id", e.RequestID)
	}
	if e.Layer != "" {
		evt = evt.Str("layer", e.Layer)
	}
	if e.Client != nil {
		evt = evt.Interface("client", redactForAudit(e.Client, s.denyKeys))
	}
	if e.Arguments != nil {
		evt = evt.Interface("arguments", redactForAudit(e.Arguments, s.denyKeys))
	}
	if e.Result != nil {
		evt = evt.Interface("result", redactForAudit(e.Result, s.denyKeys))
	}

	evt.Msg("tool_call")
}
