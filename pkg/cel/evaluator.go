package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"sgbridge/pkg/models"
)

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("direction", cel.StringType),
		cel.Variable("settings", cel.StringType),
		cel.Variable("entity_type", cel.StringType),
		cel.Variable("entity_id", cel.IntType),
		cel.Variable("issue_type", cel.StringType),
		cel.Variable("issue_key", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

func (e *Evaluator) ValidateAcceptExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("accept expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

func (e *Evaluator) EvaluateAccept(ctx context.Context, expression string, req models.SyncRequest) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("accept expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.ContextEval(ctx, requestVars(req))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

// EvaluateCompiled runs a program produced by CompileExpression. Syncers
// compile their accept expression once at construction and reuse it per
// request.
func (e *Evaluator) EvaluateCompiled(ctx context.Context, program cel.Program, req models.SyncRequest) (bool, error) {
	result, _, err := program.ContextEval(ctx, requestVars(req))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func requestVars(req models.SyncRequest) map[string]interface{} {
	payload := req.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	return map[string]interface{}{
		"direction":   req.Direction,
		"settings":    req.Settings,
		"entity_type": req.EntityType,
		"entity_id":   req.EntityID,
		"issue_type":  req.IssueType,
		"issue_key":   req.IssueKey,
		"payload":     payload,
	}
}
