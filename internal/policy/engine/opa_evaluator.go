package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.fieldbook.access.allow"

// DefaultPolicy admits ADMIN to everything and everyone else to non-admin routes.
const DefaultPolicy = `package fieldbook.access

default allow := false

allow if input.role == "ADMIN"

allow if {
	input.role != ""
	not startswith(input.path, "/api/admin/")
}
`

// OPAEvaluator evaluates route access with OPA Rego. The query is prepared once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles modules (file name to Rego source). Nil or empty modules use DefaultPolicy.
// Every module set must define data.fieldbook.access.allow.
func NewOPAEvaluator(ctx context.Context, modules map[string]string) (*OPAEvaluator, error) {
	if len(modules) == 0 {
		modules = map[string]string{"access.rego": DefaultPolicy}
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

// Authorize reports whether the policy allows in. Undefined results deny.
func (e *OPAEvaluator) Authorize(ctx context.Context, in Input) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"user_id": in.UserID,
		"role":    in.Role,
		"method":  in.Method,
		"path":    in.Path,
	}))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	return rs.Allowed(), nil
}

// HealthCheck evaluates a known admin request against the prepared query. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"role": "ADMIN", "method": "GET", "path": "/api/admin/health",
	}))
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}
