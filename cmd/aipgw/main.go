// Command aipgw is a small operator CLI around the gateway core: it can
// sanity-check a policy document and run one invocation against a stub
// tool function to see how a policy would decide it, per spec.md §6's
// "no CLI... is owned by the core" — this binary is purely a harness
// around pkg/gateway.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aip-zerotrust/gateway/internal/config"
	"github.com/aip-zerotrust/gateway/internal/logging"
	"github.com/aip-zerotrust/gateway/pkg/audit"
	"github.com/aip-zerotrust/gateway/pkg/gateway"
	"github.com/aip-zerotrust/gateway/pkg/model"
	"github.com/aip-zerotrust/gateway/pkg/policy"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "aipgw",
		Short:   "Zero-trust tool-call enforcement gateway",
		Version: version,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to aipgw config file")

	rootCmd.AddCommand(newValidateCmd(), newDemoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [policy-file]",
		Short: "Load and sanity-check a policy document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

			loader := policy.Loader{}
			p, err := loader.LoadFile(args[0])
			if err != nil {
				logger.Error().Err(err).Str("file", args[0]).Msg("policy invalid")
				return err
			}

			logger.Info().
				Str("file", args[0]).
				Str("policy_id", p.PolicyID).
				Int("allow_rules", len(p.AllowRules)).
				Int("deny_rules", len(p.DenyRules)).
				Msg("policy valid")
			fmt.Printf("%s: valid (policy_id=%s, version=%s, default=%s)\n", args[0], p.PolicyID, p.Version, p.Default)
			return nil
		},
	}
	return cmd
}

func newDemoCmd() *cobra.Command {
	var (
		policyPath string
		toolName   string
		actor      string
		roles      []string
		rawArgs    []string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run one invocation through an Enforcer built from a policy file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if policyPath == "" {
				policyPath = cfg.Policy.DefaultPath
			}

			p, err := policy.LoadFile(policyPath)
			if err != nil {
				return fmt.Errorf("loading policy: %w", err)
			}

			arguments, err := parseArgs(rawArgs)
			if err != nil {
				return err
			}

			auditOut, closeAudit, err := openAuditDestination(cfg.Audit.Destination)
			if err != nil {
				return err
			}
			defer closeAudit()

			auditLogger := logging.New(cfg.Log.Level, cfg.Log.Format, auditOut)
			sink := audit.NewZerologSink(auditLogger, p.Redact.DenyKeysEffective())
			enforcer := gateway.New(p, sink)

			inv, err := model.New(toolName, arguments, model.WithActor(actor), model.WithRoles(roles...))
			if err != nil {
				return err
			}

			result, err := enforcer.Enforce(context.Background(), inv, stubTool)

			var denied *model.PolicyDeniedError
			if errors.As(err, &denied) {
				return printJSON(map[string]any{
					"allowed":     false,
					"reason":      denied.Decision.Reason,
					"layer":       denied.Decision.Layer,
					"remediation": denied.Decision.Remediation,
				})
			}
			if err != nil {
				return err
			}

			return printJSON(map[string]any{"allowed": true, "result": result})
		},
	}

	cmd.Flags().StringVar(&policyPath, "policy", "", "Path to policy document (defaults to config policy.default_path)")
	cmd.Flags().StringVar(&toolName, "tool", "", "Tool name to invoke")
	cmd.Flags().StringVar(&actor, "actor", "", "Claimed actor identifier")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role claimed for the actor (repeatable)")
	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "Argument as key=value (repeatable)")
	cmd.MarkFlagRequired("tool")

	return cmd
}

// stubTool is the demo command's tool function: it just echoes its
// arguments back, wrapped so the redact/audit layers have something to
// chew on.
func stubTool(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{"tool_ran": true, "received": args}, nil
}

// openAuditDestination resolves audit.destination into a writer: the
// literal value "stdout" maps to os.Stdout, anything else is treated as
// a file path to append to. The returned close func is always safe to
// defer, even for stdout.
func openAuditDestination(destination string) (*os.File, func() error, error) {
	if destination == "" || destination == "stdout" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(destination, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit destination %q: %w", destination, err)
	}
	return f, f.Close, nil
}

func parseArgs(raw []string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", kv)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
