// Package redact implements the value-tree redaction engine from the
// gateway spec §4.4: recursive, shape-preserving rewriting of JSON-shaped
// values that masks deny-listed keys and common PII patterns.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// emailRe and phoneRe are the exact patterns from spec §4.4.
var (
	emailRe = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phoneRe = regexp.MustCompile(`\b(?:\+?\d{1,3}[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)\d{3}[-.\s]?\d{4}\b`)
)

// DefaultDenyKeys is the deny-key list spec §6 documents as the
// redact.deny_keys default.
var DefaultDenyKeys = []string{"password", "token", "secret", "api_key", "authorization"}

const redactedPlaceholder = "[REDACTED]"
const redactedEmailPlaceholder = "[REDACTED_EMAIL]"
const redactedPhonePlaceholder = "[REDACTED_PHONE]"
const truncationMarker = "..."

// Config bundles the redaction parameters that §4.4's redact operation
// takes: which keys to mask outright, which PII categories to scrub from
// string content, and the string truncation threshold.
type Config struct {
	DenyKeys     []string
	PiiEmails    bool
	PiiPhones    bool
	MaxStringLen int
}

// denyKeySet is a case-folded lookup built once per Value call.
type denyKeySet map[string]struct{}

func newDenyKeySet(keys []string) denyKeySet {
	set := make(denyKeySet, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return set
}

func (s denyKeySet) contains(key string) bool {
	_, ok := s[strings.ToLower(key)]
	return ok
}

// Value recursively rewrites value according to cfg. It never returns an
// alias into value: maps and slices are always copied into fresh
// containers (invariant 5 of spec §3), so the caller's original tree is
// untouched even though individual unchanged leaves (numbers, bools) are
// reused by value.
func Value(value any, cfg Config) any {
	return redact(value, newDenyKeySet(cfg.DenyKeys), cfg)
}

func redact(value any, deny denyKeySet, cfg Config) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return redactString(v, cfg)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redact(item, deny, cfg)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if deny.contains(k) {
				out[k] = redactedPlaceholder
				continue
			}
			out[k] = redact(item, deny, cfg)
		}
		return out
	default:
		return redactUnknown(v, deny, cfg)
	}
}

func redactString(s string, cfg Config) string {
	if cfg.MaxStringLen > 0 && len(s) > cfg.MaxStringLen {
		s = s[:cfg.MaxStringLen] + truncationMarker
	}
	if cfg.PiiEmails {
		s = emailRe.ReplaceAllString(s, redactedEmailPlaceholder)
	}
	if cfg.PiiPhones {
		s = phoneRe.ReplaceAllString(s, redactedPhonePlaceholder)
	}
	return s
}

// redactUnknown stringifies any value not already handled (e.g. a
// map[any]any produced by a non-JSON decoder, or a custom Stringer) and
// redacts that string form, falling back to the placeholder if even
// stringification fails — matching §4.4's "unknown object" case.
func redactUnknown(v any, deny denyKeySet, cfg Config) any {
	s, err := stringify(v)
	if err != nil {
		return redactedPlaceholder
	}
	return redact(s, deny, cfg)
}

func stringify(v any) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("redact: could not stringify value: %v", r)
		}
	}()
	return fmt.Sprintf("%v", v), nil
}
