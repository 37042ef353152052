package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"vizpilot/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const resultQuery = "data.vizpilot.policy.result"

// Engine evaluates a chart policy bundle against generated specs.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
	bundleID   string
}

func NewEngine(ctx context.Context, bundlePath, bundleID string) (*Engine, error) {
	hash, err := ComputeBundleHash(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("hash policy bundle: %w", err)
	}

	caps := ast.CapabilitiesForThisVersion()
	caps.Builtins = filterBuiltins(caps.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(caps)

	prepared, err := rego.New(
		rego.Query(resultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare chart policy: %w", err)
	}
	if err := assertAllowedBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, bundleHash: hash, bundleID: bundleID}, nil
}

func (e *Engine) BundleHash() string { return e.bundleHash }

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	doc, err := toDocument(input)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, errors.New("chart policy produced no result")
	}
	result, err := decodeResult(rs[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
	return domain.PolicyEvaluation{BundleID: e.bundleID, BundleHash: e.bundleHash, Result: result}, nil
}

// toDocument converts the input to plain JSON values so rego sees the same
// shape a policy author sees in a request dump.
func toDocument(input domain.PolicyInput) (any, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode policy input: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode policy input: %w", err)
	}
	return doc, nil
}

func decodeResult(value any) (domain.PolicyResult, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(b, &result); err != nil {
		return domain.PolicyResult{}, fmt.Errorf("chart policy result: %w", err)
	}
	return result, nil
}

func assertAllowedBuiltins(compiler *ast.Compiler) error {
	forbidden := map[string]struct{}{}
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, builtin := ast.BuiltinMap[name]; !builtin {
				return false
			}
			if _, ok := allowedBuiltins[name]; !ok {
				forbidden[name] = struct{}{}
			}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}
