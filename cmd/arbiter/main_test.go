package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testPolicyYAML = `
policy_version: "2026-02-01"
roles:
  intern:
    allow: [ask_public_policy]
  admin:
    allow: ["*"]
    special:
      break_glass_requires: [ticket_id, justification]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckAllow(t *testing.T) {
	policyPath := writeFile(t, "policy.yaml", testPolicyYAML)

	out, err := runCLI(t, "check", "--policy", policyPath, "--role", "intern", "--intent", "ask_public_policy")
	if err != nil {
		t.Fatalf("expected allow, got error: %v", err)
	}
	if !strings.Contains(out, "ALLOW") {
		t.Errorf("expected ALLOW verdict, got %q", out)
	}
	if !strings.Contains(out, "policy_version=2026-02-01") {
		t.Errorf("expected policy version in output, got %q", out)
	}
}

func TestCheckDenyExitsNonZero(t *testing.T) {
	policyPath := writeFile(t, "policy.yaml", testPolicyYAML)

	out, err := runCLI(t, "check", "--policy", policyPath, "--role", "intern", "--intent", "retrieve_customer_pii")
	if err == nil {
		t.Fatal("expected deny to surface as an error")
	}
	if !strings.Contains(out, "DENY") {
		t.Errorf("expected DENY verdict, got %q", out)
	}
	if !strings.Contains(err.Error(), "not_in_allow") {
		t.Errorf("expected not_in_allow reason, got %v", err)
	}
}

func TestCheckBreakGlassAttrs(t *testing.T) {
	policyPath := writeFile(t, "policy.yaml", testPolicyYAML)

	_, err := runCLI(t, "check", "--policy", policyPath, "--role", "admin", "--intent", "admin_override")
	if err == nil {
		t.Fatal("expected deny without break-glass attributes")
	}

	out, err := runCLI(t, "check", "--policy", policyPath,
		"--role", "admin", "--intent", "admin_override",
		"--attr", "ticket_id=INC-1", "--attr", "justification=sev1")
	if err != nil {
		t.Fatalf("expected allow with break-glass attributes, got %v", err)
	}
	if !strings.Contains(out, "ALLOW") {
		t.Errorf("expected ALLOW verdict, got %q", out)
	}
}

func TestCheckMalformedAttr(t *testing.T) {
	policyPath := writeFile(t, "policy.yaml", testPolicyYAML)

	_, err := runCLI(t, "check", "--policy", policyPath, "--role", "admin", "--intent", "admin_override", "--attr", "no-equals-sign")
	if err == nil || !strings.Contains(err.Error(), "malformed attribute") {
		t.Fatalf("expected malformed attribute error, got %v", err)
	}
}

func TestAuditReportToStdout(t *testing.T) {
	auditPath := writeFile(t, "audit.log", strings.Join([]string{
		`{"role":"intern","intent":{"intent":"ask_public_policy","confidence":0.9},"allowed":true,"reason":"ok","latency_ms":12.5,"policy_version":"2026-02-01"}`,
		`{"role":"intern","intent":{"intent":"retrieve_customer_pii","confidence":0.8},"allowed":false,"reason":"not_in_allow","latency_ms":9.0,"policy_version":"2026-02-01"}`,
	}, "\n")+"\n")

	out, err := runCLI(t, "audit-report", "--audit", auditPath)
	if err != nil {
		t.Fatalf("audit-report failed: %v", err)
	}
	if !strings.Contains(out, "Total requests: **2**") {
		t.Errorf("expected total in report, got %q", out)
	}
	if !strings.Contains(out, "not_in_allow") {
		t.Errorf("expected deny reason in report, got %q", out)
	}
}

func TestAuditReportToFile(t *testing.T) {
	auditPath := writeFile(t, "audit.log",
		`{"role":"intern","intent":{"intent":"ask_public_policy","confidence":0.9},"allowed":true,"reason":"ok","latency_ms":5.0}`+"\n")
	outPath := filepath.Join(t.TempDir(), "reports", "metrics.md")

	if _, err := runCLI(t, "audit-report", "--audit", auditPath, "--out", outPath); err != nil {
		t.Fatalf("audit-report failed: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	if !strings.Contains(string(data), "# Gateway Metrics") {
		t.Errorf("unexpected report content: %s", data)
	}
}

func TestAuditReportMissingLog(t *testing.T) {
	if _, err := runCLI(t, "audit-report", "--audit", filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Fatal("expected error for missing audit log")
	}
}
