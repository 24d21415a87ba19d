// Package model defines the immutable data shapes that flow through the
// gateway: one tool invocation in, one policy decision (and optionally a
// tool result) out.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Invocation is an immutable description of a single tool call plus the
// claimed identity and context it arrived with. Construct one with New;
// the zero value is only useful as a placeholder.
type Invocation struct {
	toolName  string
	arguments map[string]any
	actor     string
	roles     []string
	requestID string
	client    map[string]any
	execCtx   map[string]any
	auth      map[string]any
	source    map[string]any
	timestamp string
}

// Option configures an Invocation at construction time.
type Option func(*Invocation)

// WithActor sets the claimed actor/initiator identifier (e.g. an email).
func WithActor(actor string) Option {
	return func(inv *Invocation) { inv.actor = actor }
}

// WithRoles sets the ordered role names associated with the actor.
func WithRoles(roles ...string) Option {
	return func(inv *Invocation) { inv.roles = append([]string(nil), roles...) }
}

// WithRequestID sets an explicit request correlation id. If omitted, New
// generates one.
func WithRequestID(id string) Option {
	return func(inv *Invocation) { inv.requestID = id }
}

// WithClient sets client metadata (app, session_id, etc.).
func WithClient(m map[string]any) Option {
	return func(inv *Invocation) { inv.client = cloneMap(m) }
}

// WithExecutionContext sets execution metadata (mcp server, transport, etc.).
func WithExecutionContext(m map[string]any) Option {
	return func(inv *Invocation) { inv.execCtx = cloneMap(m) }
}

// WithAuth sets authentication metadata (scheme, claims, etc.).
func WithAuth(m map[string]any) Option {
	return func(inv *Invocation) { inv.auth = cloneMap(m) }
}

// WithSource sets source metadata (ip, user-agent, etc.).
func WithSource(m map[string]any) Option {
	return func(inv *Invocation) { inv.source = cloneMap(m) }
}

// WithTimestamp pins an explicit ISO-8601 timestamp instead of the default
// "now, UTC at read time" behavior.
func WithTimestamp(ts string) Option {
	return func(inv *Invocation) { inv.timestamp = ts }
}

// New builds an Invocation. toolName must be non-empty. arguments may be
// nil, in which case an empty map is used. A request id is generated with
// uuid.NewString when the caller doesn't supply one via WithRequestID.
func New(toolName string, arguments map[string]any, opts ...Option) (Invocation, error) {
	if toolName == "" {
		return Invocation{}, fmt.Errorf("model: tool name must not be empty")
	}

	inv := Invocation{
		toolName:  toolName,
		arguments: cloneMap(arguments),
	}
	if inv.arguments == nil {
		inv.arguments = map[string]any{}
	}

	for _, opt := range opts {
		opt(&inv)
	}

	if inv.requestID == "" {
		inv.requestID = uuid.NewString()
	}

	return inv, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ToolName is the non-empty name of the tool being invoked.
func (i Invocation) ToolName() string { return i.toolName }

// Arguments returns the argument mapping. Callers must not mutate the
// returned map; it aliases the Invocation's internal state for read speed.
func (i Invocation) Arguments() map[string]any { return i.arguments }

// Actor is the claimed actor identifier, or "" if absent.
func (i Invocation) Actor() string { return i.actor }

// Roles are the role names claimed for the actor. May be empty.
func (i Invocation) Roles() []string { return i.roles }

// RequestID is the request correlation id.
func (i Invocation) RequestID() string { return i.requestID }

// Client returns client metadata, or nil if absent.
func (i Invocation) Client() map[string]any { return i.client }

// ExecutionContext returns execution metadata, or nil if absent.
func (i Invocation) ExecutionContext() map[string]any { return i.execCtx }

// Auth returns auth metadata, or nil if absent.
func (i Invocation) Auth() map[string]any { return i.auth }

// Source returns source metadata, or nil if absent.
func (i Invocation) Source() map[string]any { return i.source }

// ISOTimestamp returns the pinned timestamp, or the current UTC time in
// RFC3339 form if none was set at construction.
func (i Invocation) ISOTimestamp() string {
	if i.timestamp != "" {
		return i.timestamp
	}
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ArgumentsSizeBytes is the UTF-8 length of a canonical JSON encoding of
// the arguments. If encoding fails (which a decoded-JSON map practically
// never does), the size is treated as effectively infinite so any finite
// max_arg_bytes limit rejects it.
func (i Invocation) ArgumentsSizeBytes() int {
	b, err := json.Marshal(i.arguments)
	if err != nil {
		return math.MaxInt
	}
	return len(b)
}

// SessionID is a convenience accessor pulling "session_id" out of Client,
// used by the rate-limit layer's session scope.
func (i Invocation) SessionID() string {
	if i.client == nil {
		return ""
	}
	v, ok := i.client["session_id"]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
