package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/backendex/backendex/pkg/export"
)

const denyJDBCPolicy = `package backendex.policies.test

import rego.v1

deny contains violation if {
	input.backend.type == "JDBC"
	violation := {
		"message": sprintf("jdbc backend %s not allowed", [input.backend.name]),
	}
}
`

func writePolicy(t *testing.T, name, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(source), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEngineExcludesMatchingBackend(t *testing.T) {
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.LoadPaths(context.Background(), []string{writePolicy(t, "no-jdbc.rego", denyJDBCPolicy)}); err != nil {
		t.Fatal(err)
	}

	policyName, err := e.Exclude(context.Background(), export.Backend{
		Application: "AppA", Tier: "T1", Type: "JDBC", Name: "ordersdb",
	})
	if err != nil {
		t.Fatal(err)
	}
	if policyName != "no-jdbc" {
		t.Errorf("policy = %q, want no-jdbc", policyName)
	}
}

func TestEngineAllowsNonMatchingBackend(t *testing.T) {
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.LoadPaths(context.Background(), []string{writePolicy(t, "no-jdbc.rego", denyJDBCPolicy)}); err != nil {
		t.Fatal(err)
	}

	policyName, err := e.Exclude(context.Background(), export.Backend{
		Application: "AppA", Tier: "T1", Type: "HTTP", Name: "checkout",
	})
	if err != nil {
		t.Fatal(err)
	}
	if policyName != "" {
		t.Errorf("unexpected exclusion by %q", policyName)
	}
}

func TestEngineBuiltinsDisabledByDefault(t *testing.T) {
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	// The loopback builtin exists but is disabled: a plain engine never
	// filters anything.
	policyName, err := e.Exclude(context.Background(), export.Backend{
		Application: "AppA", Tier: "T1", Type: "HTTP", Name: "localhost:8080",
	})
	if err != nil {
		t.Fatal(err)
	}
	if policyName != "" {
		t.Errorf("disabled builtin excluded a row via %q", policyName)
	}
}

func TestEngineRejectsBrokenPolicy(t *testing.T) {
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	err = e.LoadPaths(context.Background(), []string{
		writePolicy(t, "broken.rego", "package broken\n\ndeny contains x if {"),
	})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !export.IsConfig(err) {
		t.Errorf("expected config error class, got %v", err)
	}
}

func TestEngineMissingPolicyFile(t *testing.T) {
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	err = e.LoadPaths(context.Background(), []string{filepath.Join(t.TempDir(), "nope.rego")})
	if !export.IsConfig(err) {
		t.Errorf("expected config error, got %v", err)
	}
}
