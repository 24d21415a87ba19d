// Package audit defines the structured event shape the audit_layer
// (spec §4.2) emits, and a Sink interface so the gateway core never
// depends on a concrete logging backend — spec §1 explicitly keeps "the
// concrete logging sink" an external collaborator.
package audit

import (
	"sort"

	"github.com/aip-zerotrust/gateway/pkg/redact"
)

// ArgumentsSummary is the always-present, never-redacted shape summary
// of a call's arguments: the sorted key list and its count.
type ArgumentsSummary struct {
	Keys     []string `json:"keys"`
	KeyCount int      `json:"key_count"`
}

// Event is one audit record: one per execute call, per spec §4.2's
// audit_layer contract and testable property #6.
type Event struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	ToolName  string `json:"tool_name"`
	// Decision is one of "allow", "deny", "error".
	Decision    string           `json:"decision"`
	Reason      string           `json:"reason,omitempty"`
	PolicyID    string           `json:"policy_id"`
	Actor       string           `json:"actor,omitempty"`
	RequestID   string           `json:"request_id,omitempty"`
	Layer       string           `json:"layer,omitempty"`
	LatencyMS   int64            `json:"latency_ms"`
	Client      map[string]any   `json:"client,omitempty"`
	ArgsSummary ArgumentsSummary `json:"arguments_summary"`
	// Arguments is populated only when the policy's
	// audit.include_argument_values is set.
	Arguments map[string]any `json:"arguments,omitempty"`
	// Result is populated only when audit.include_result is set and the
	// call was allowed.
	Result any `json:"result,omitempty"`
}

// Sink receives one Event per enforced invocation. Implementations own
// where the event goes (stdout, a file, a collector) — the core only
// knows it emits Events.
type Sink interface {
	Emit(Event)
}

// fixedRedactConfig is the redaction profile the audit sink always
// applies to Client/Arguments/Result, independent of the policy's own
// redact config: the original source's AuditLogger.log calls
// redact_value with its function defaults (pii_emails=True,
// pii_phones=False, max_string_len=2048) regardless of what the policy's
// redact section says, since audit redaction protects the log sink
// itself rather than the caller-visible result.
var fixedRedactConfig = redact.Config{
	PiiEmails:    true,
	PiiPhones:    false,
	MaxStringLen: 2048,
}

// redactForAudit applies the fixed audit redaction profile using
// denyKeys, defaulting to redact.DefaultDenyKeys when denyKeys is empty.
func redactForAudit(value any, denyKeys []string) any {
	if value == nil {
		return nil
	}
	cfg := fixedRedactConfig
	cfg.DenyKeys = denyKeys
	if len(cfg.DenyKeys) == 0 {
		cfg.DenyKeys = redact.DefaultDenyKeys
	}
	return redact.Value(value, cfg)
}

// Summarize builds the always-present, never-redacted shape summary of
// a call's arguments that the audit_layer attaches to every Event.
func Summarize(args map[string]any) ArgumentsSummary {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return ArgumentsSummary{Keys: keys, KeyCount: len(keys)}
}
