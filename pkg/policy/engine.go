package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/backendex/backendex/pkg/export"
)

// Engine evaluates exclusion policies against backend rows. It implements
// export.RowPolicy.
type Engine struct {
	policies []*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy is a policy with its prepared deny query.
type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the built-in policies.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		logger: logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range BuiltinPolicies() {
		if err := e.compile(context.Background(), p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}

	return e, nil
}

// LoadPaths compiles additional policies from .rego files. Each file becomes
// one enabled policy named after its base name.
func (e *Engine) LoadPaths(ctx context.Context, paths []string) error {
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			return export.NewConfigError(fmt.Sprintf("reading policy file %s failed", path), err)
		}

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p := Policy{
			Name:    name,
			Rego:    string(source),
			Enabled: true,
		}
		if err := e.compile(ctx, p); err != nil {
			return export.NewConfigError(fmt.Sprintf("compiling policy %s failed", name), err)
		}
	}

	e.logger.Info().Int("count", len(e.policies)).Msg("Policies loaded")
	return nil
}

func (e *Engine) compile(ctx context.Context, p Policy) error {
	query := fmt.Sprintf("data.%s.deny", extractPackageName(p.Rego))

	prepared, err := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Query(query),
	).PrepareForEval(ctx)
	if err != nil {
		return err
	}

	e.policies = append(e.policies, &compiledPolicy{policy: p, query: prepared})
	return nil
}

// Exclude returns the name of the first enabled policy whose deny set is
// non-empty for the given row, or "" when the row is allowed.
func (e *Engine) Exclude(ctx context.Context, b export.Backend) (string, error) {
	input := Input{Backend: BackendInput{
		Application: b.Application,
		Tier:        b.Tier,
		Type:        b.Type,
		Name:        b.Name,
	}}

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}

		results, err := cp.query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return "", fmt.Errorf("policy %s evaluation failed: %w", cp.policy.Name, err)
		}

		for _, result := range results {
			for _, expr := range result.Expressions {
				if denySet, ok := expr.Value.([]interface{}); ok && len(denySet) > 0 {
					e.logger.Debug().
						Str("policy", cp.policy.Name).
						Str("backend", b.Name).
						Msg("Backend denied by policy")
					return cp.policy.Name, nil
				}
			}
		}
	}

	return "", nil
}

// extractPackageName extracts the package name from rego source.
func extractPackageName(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "backendex.policies"
}
