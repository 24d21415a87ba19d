// Package policy implements the declarative policy schema (§6 of the
// gateway spec) and the evaluation algorithm that turns one Invocation
// plus a Policy snapshot into a model.Decision.
//
// The schema types here are the normalized, in-memory shape; loader.go
// picks the document format, and ConstraintSet below carries its own
// order-preserving YAML/JSON decoding.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aip-zerotrust/gateway/pkg/redact"
	"gopkg.in/yaml.v3"
)

// ConstraintType names the four typed argument constraints §4.1a supports.
type ConstraintType string

const (
	ConstraintString  ConstraintType = "string"
	ConstraintInteger ConstraintType = "integer"
	ConstraintNumber  ConstraintType = "number"
	ConstraintBoolean ConstraintType = "boolean"
)

// Constraint is a single typed argument rule inside an AllowRule.
type Constraint struct {
	Type        ConstraintType `yaml:"type" json:"type"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool           `yaml:"required,omitempty" json:"required,omitempty"`

	// string-only
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Enum    []any  `yaml:"enum,omitempty" json:"enum,omitempty"`

	// integer/number-only
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// constraintEntry is one named constraint in source order.
type constraintEntry struct {
	Name       string
	Constraint Constraint
}

// ConstraintSet holds an AllowRule's constraint map, preserving the
// insertion order of the policy source document. Constraint validation
// (§4.1a) must be deterministic and report the first error in the order
// constraints appear in the document, which a plain Go map cannot
// guarantee, so this type decodes YAML/JSON mappings by hand instead of
// delegating to map[string]Constraint.
type ConstraintSet struct {
	entries []constraintEntry
}

// Len returns the number of constraints.
func (cs ConstraintSet) Len() int { return len(cs.entries) }

// Names returns the constraint argument names in source order.
func (cs ConstraintSet) Names() []string {
	names := make([]string, len(cs.entries))
	for i, e := range cs.entries {
		names[i] = e.Name
	}
	return names
}

// Get looks up a constraint by argument name.
func (cs ConstraintSet) Get(name string) (Constraint, bool) {
	for _, e := range cs.entries {
		if e.Name == name {
			return e.Constraint, true
		}
	}
	return Constraint{}, false
}

// Range calls fn for each constraint in source order, stopping early if
// fn returns false.
func (cs ConstraintSet) Range(fn func(name string, c Constraint) bool) {
	for _, e := range cs.entries {
		if !fn(e.Name, e.Constraint) {
			return
		}
	}
}

// HasKey reports whether name is a known constraint key, used by the
// reject_unknown_args check.
func (cs ConstraintSet) HasKey(name string) bool {
	_, ok := cs.Get(name)
	return ok
}

func (cs *ConstraintSet) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == 0 {
		cs.entries = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("policy: constraints must be a mapping, got kind %d", value.Kind)
	}
	entries := make([]constraintEntry, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name string
		if err := value.Content[i].Decode(&name); err != nil {
			return fmt.Errorf("policy: constraint key: %w", err)
		}
		var c Constraint
		if err := value.Content[i+1].Decode(&c); err != nil {
			return fmt.Errorf("policy: constraint %q: %w", name, err)
		}
		entries = append(entries, constraintEntry{Name: name, Constraint: c})
	}
	cs.entries = entries
	return nil
}

func (cs ConstraintSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range cs.entries {
		var keyNode, valNode yaml.Node
		if err := keyNode.Encode(e.Name); err != nil {
			return nil, err
		}
		if err := valNode.Encode(e.Constraint); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &keyNode, &valNode)
	}
	return node, nil
}

// UnmarshalJSON decodes a JSON object while preserving member order, using
// the standard library's token-based decoder directly: encoding/json has
// no order-preserving map type, and no repository in the retrieval pack
// ships one either, so this is implemented on the standard library rather
// than inventing a dependency.
func (cs *ConstraintSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("policy: constraints must be a JSON object")
	}

	var entries []constraintEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("policy: constraint key must be a string")
		}
		var c Constraint
		if err := dec.Decode(&c); err != nil {
			return fmt.Errorf("policy: constraint %q: %w", name, err)
		}
		entries = append(entries, constraintEntry{Name: name, Constraint: c})
	}
	cs.entries = entries
	return nil
}

func (cs ConstraintSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range cs.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyB, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(keyB)
		buf.WriteByte(':')
		valB, err := json.Marshal(e.Constraint)
		if err != nil {
			return nil, err
		}
		buf.Write(valB)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// AllowRule permits a tool call, subject to role and constraint checks.
type AllowRule struct {
	Tool        string        `yaml:"tool" json:"tool"`
	Constraints ConstraintSet `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	// Roles is nil when role-unrestricted; a non-nil (possibly empty)
	// slice restricts to that role set, per spec §4.1.
	Roles []string `yaml:"roles,omitempty" json:"roles,omitempty"`
}

// DenyRule forbids a tool call when its (optional) condition matches.
type DenyRule struct {
	Tool string `yaml:"tool" json:"tool"`
	// Condition is nil when the rule always fires for Tool.
	Condition map[string]any `yaml:"condition,omitempty" json:"condition,omitempty"`
	Reason    string         `yaml:"reason,omitempty" json:"reason,omitempty"`
}

const defaultDenyReason = "Denied by policy"

// ValidateConfig configures the size gate and unknown-argument rejection.
type ValidateConfig struct {
	RejectUnknownArgs bool `yaml:"reject_unknown_args,omitempty" json:"reject_unknown_args,omitempty"`
	MaxArgBytes       int  `yaml:"max_arg_bytes,omitempty" json:"max_arg_bytes,omitempty"`
}

// RateLimitScope names the bucket-key grouping for the rate limiter.
type RateLimitScope string

const (
	ScopeActor     RateLimitScope = "actor"
	ScopeSession   RateLimitScope = "session"
	ScopeTool      RateLimitScope = "tool"
	ScopeActorTool RateLimitScope = "actor+tool"
)

const defaultRateLimitScope = ScopeActor

// RateLimitConfig configures the token-bucket limiter layer.
type RateLimitConfig struct {
	Enabled        bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	LimitPerMinute int            `yaml:"limit_per_minute,omitempty" json:"limit_per_minute,omitempty"`
	Burst          int            `yaml:"burst,omitempty" json:"burst,omitempty"`
	Scope          RateLimitScope `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// DetectAttacksConfig configures the pattern-based attack scanner.
type DetectAttacksConfig struct {
	Enabled  bool     `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	OnDetect string   `yaml:"on_detect,omitempty" json:"on_detect,omitempty"`
	Fields   []string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

const defaultOnDetect = "deny"

var defaultDetectFields = []string{"query", "sql", "where", "url", "path"}

// RedactConfig configures the redaction engine's result-rewriting pass.
type RedactConfig struct {
	Enabled      bool     `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	DenyKeys     []string `yaml:"deny_keys,omitempty" json:"deny_keys,omitempty"`
	PiiEmails    *bool    `yaml:"pii_emails,omitempty" json:"pii_emails,omitempty"`
	PiiPhones    bool     `yaml:"pii_phones,omitempty" json:"pii_phones,omitempty"`
	MaxStringLen *int     `yaml:"max_string_len,omitempty" json:"max_string_len,omitempty"`
}

var defaultDenyKeys = redact.DefaultDenyKeys

const defaultMaxStringLen = 2048

// AuditConfig configures the audit sink's event shape.
type AuditConfig struct {
	Enabled               *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	IncludeResult         bool  `yaml:"include_result,omitempty" json:"include_result,omitempty"`
	IncludeArgumentValues bool  `yaml:"include_argument_values,omitempty" json:"include_argument_values,omitempty"`
}

// Disposition is the policy's fallback decision when no rule matches.
type Disposition string

const (
	DispositionAllow Disposition = "allow"
	DispositionDeny  Disposition = "deny"
)

const defaultDisposition = DispositionDeny

// Policy is an immutable, normalized policy snapshot: the loader has
// already filled in the defaults for default, deny-rule reasons,
// rate_limit.scope, detect_attacks.on_detect/fields and redact.deny_keys.
// redact.pii_emails, redact.max_string_len and audit.enabled stay nil
// when unset and resolve to their defaults through the accessor methods
// below.
type Policy struct {
	PolicyID string      `yaml:"policy_id" json:"policy_id"`
	Version  string      `yaml:"version" json:"version"`
	Default  Disposition `yaml:"default,omitempty" json:"default,omitempty"`

	AllowRules []AllowRule `yaml:"allow_rules,omitempty" json:"allow_rules,omitempty"`
	DenyRules  []DenyRule  `yaml:"deny_rules,omitempty" json:"deny_rules,omitempty"`

	Validate      ValidateConfig      `yaml:"validate,omitempty" json:"validate,omitempty"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	DetectAttacks DetectAttacksConfig `yaml:"detect_attacks,omitempty" json:"detect_attacks,omitempty"`
	Redact        RedactConfig        `yaml:"redact,omitempty" json:"redact,omitempty"`
	Audit         AuditConfig         `yaml:"audit,omitempty" json:"audit,omitempty"`
}

// PiiEmailsEnabled resolves the effective pii_emails default (true).
func (c RedactConfig) PiiEmailsEnabled() bool {
	if c.PiiEmails == nil {
		return true
	}
	return *c.PiiEmails
}

// MaxStringLenEffective resolves the effective max_string_len default (2048).
func (c RedactConfig) MaxStringLenEffective() int {
	if c.MaxStringLen == nil {
		return defaultMaxStringLen
	}
	return *c.MaxStringLen
}

// DenyKeysEffective resolves the effective deny_keys default.
func (c RedactConfig) DenyKeysEffective() []string {
	if c.DenyKeys == nil {
		return defaultDenyKeys
	}
	return c.DenyKeys
}

// EnabledEffective resolves the effective audit enabled default (true).
func (c AuditConfig) EnabledEffective() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}
