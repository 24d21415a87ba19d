package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadBytes parses a policy document. format must be "yaml"/"yml" or
// "json"; an unrecognized format falls back to trying YAML first (YAML
// is a superset of JSON for our purposes) and JSON second, mirroring the
// loader's "unknown extension" fallback behavior.
func LoadBytes(data []byte, format string) (Policy, error) {
	var p Policy
	var err error

	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &p)
	case "json":
		err = json.Unmarshal(data, &p)
	default:
		if yerr := yaml.Unmarshal(data, &p); yerr == nil {
			err = nil
		} else if jerr := json.Unmarshal(data, &p); jerr == nil {
			err = nil
		} else {
			err = fmt.Errorf("policy: could not parse as YAML (%v) or JSON (%w)", yerr, jerr)
		}
	}
	if err != nil {
		return Policy{}, fmt.Errorf("policy: parse: %w", err)
	}

	return normalize(p)
}

// LoadFile reads and parses a policy document from disk. The file
// extension selects YAML vs JSON parsing; any other extension falls
// back to the auto-detect path in LoadBytes.
func LoadFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: read %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadBytes(data, "yaml")
	case ".json":
		return LoadBytes(data, "json")
	default:
		return LoadBytes(data, "")
	}
}

// normalize fills in §6's documented defaults for fields a document left
// unset, and rejects documents missing the required policy_id/version.
func normalize(p Policy) (Policy, error) {
	if p.PolicyID == "" {
		return Policy{}, fmt.Errorf("policy: missing required field policy_id")
	}
	if p.Version == "" {
		return Policy{}, fmt.Errorf("policy: missing required field version")
	}

	if p.Default == "" {
		p.Default = defaultDisposition
	}
	if p.Default != DispositionAllow && p.Default != DispositionDeny {
		return Policy{}, fmt.Errorf("policy: default must be %q or %q, got %q", DispositionAllow, DispositionDeny, p.Default)
	}

	for i := range p.DenyRules {
		if p.DenyRules[i].Reason == "" {
			p.DenyRules[i].Reason = defaultDenyReason
		}
	}

	if p.RateLimit.Scope == "" {
		p.RateLimit.Scope = defaultRateLimitScope
	}

	if p.DetectAttacks.OnDetect == "" {
		p.DetectAttacks.OnDetect = defaultOnDetect
	}
	if p.DetectAttacks.Fields == nil {
		p.DetectAttacks.Fields = defaultDetectFields
	}

	if p.Redact.DenyKeys == nil {
		p.Redact.DenyKeys = defaultDenyKeys
	}

	return p, nil
}

// Loader is an injectable facade over LoadFile/LoadBytes, kept distinct
// from the package-level functions the way the original Python
// PolicyLoader wraps load_policy_from_file/load_policy_from_dict. Loader
// is a zero-size struct whose methods delegate to the package-level
// functions; it holds no state of its own.
type Loader struct{}

// LoadFile reads and parses a policy document from disk.
func (Loader) LoadFile(path string) (Policy, error) { return LoadFile(path) }

// LoadBytes parses a policy document already in memory.
func (Loader) LoadBytes(data []byte, format string) (Policy, error) { return LoadBytes(data, format) }
