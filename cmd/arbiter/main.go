// Package main is the entry point for the arbiter CLI.
// It serves the gateway and provides offline policy and audit tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arbiterai/arbiter-oss/internal/app"
	"github.com/arbiterai/arbiter-oss/pkg/audit"
	"github.com/arbiterai/arbiter-oss/pkg/config"
	"github.com/arbiterai/arbiter-oss/pkg/logging"
	"github.com/arbiterai/arbiter-oss/pkg/policy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arbiter",
		Short: "Access-control gateway for generative model requests",
		Long: `Arbiter sits between callers and an upstream model. Every request is
classified into an intent and checked against a role policy before it is
forwarded; every decision is masked and appended to the audit log.`,
	}
	rootCmd.AddCommand(newServeCmd(), newCheckCmd(), newAuditReportCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE:  runServe,
	}
	cmd.Flags().StringP("config", "c", "config.yaml", "Path to configuration file")
	cmd.Flags().StringP("listen", "a", "", "Address to listen on (overrides config)")
	cmd.Flags().StringP("log-level", "l", "", "Log level (debug, info, warn, error; overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	listenAddr, _ := cmd.Flags().GetString("listen")
	logLevel, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Address = listenAddr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	logger.Info().Str("config", configPath).Msg("starting arbiter")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a role/intent pair against a policy file",
		Long: `Loads a policy document and renders the decision for one role, intent
and attribute set without starting the server. Exits non-zero on deny so
it can gate policy changes in CI.`,
		RunE: runCheck,
	}
	cmd.Flags().StringP("policy", "p", "config/policy.yaml", "Path to policy file")
	cmd.Flags().StringP("role", "r", "", "Caller role (required)")
	cmd.Flags().StringP("intent", "i", "", "Intent label (required)")
	cmd.Flags().StringArrayP("attr", "A", nil, "Caller attribute as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("intent")
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	policyPath, _ := cmd.Flags().GetString("policy")
	role, _ := cmd.Flags().GetString("role")
	intentLabel, _ := cmd.Flags().GetString("intent")
	attrPairs, _ := cmd.Flags().GetStringArray("attr")

	attrs := make(map[string]string, len(attrPairs))
	for _, pair := range attrPairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("malformed attribute %q, expected key=value", pair)
		}
		attrs[key] = value
	}

	snap, err := policy.LoadFile(policyPath)
	if err != nil {
		return err
	}

	decision := snap.Decide(role, intentLabel, attrs)
	verdict := "DENY"
	if decision.Allowed {
		verdict = "ALLOW"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s role=%s intent=%s reason=%s policy_version=%s\n",
		verdict, role, intentLabel, decision.Reason, snap.Version())

	if !decision.Allowed {
		// Cobra would print usage for this error; it is a verdict, not misuse.
		cmd.SilenceUsage = true
		return fmt.Errorf("denied: %s", decision.Reason)
	}
	return nil
}

func newAuditReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit-report",
		Short: "Summarize an audit log as a Markdown report",
		RunE:  runAuditReport,
	}
	cmd.Flags().String("audit", "logs/audit.log", "Path to audit JSONL log")
	cmd.Flags().StringP("out", "o", "", "Output file (default stdout)")
	cmd.Flags().Int("last", 0, "Only include the last N events")
	return cmd
}

func runAuditReport(cmd *cobra.Command, _ []string) error {
	auditPath, _ := cmd.Flags().GetString("audit")
	outPath, _ := cmd.Flags().GetString("out")
	last, _ := cmd.Flags().GetInt("last")

	events, err := audit.ReadLog(auditPath, last)
	if err != nil {
		return err
	}
	md := audit.BuildReport(events).Markdown()

	if outPath == "" {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(outPath, []byte(md), 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
	return nil
}
