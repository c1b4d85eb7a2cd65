package service

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rl1809/storefront/internal/core/domain"
)

// ItemExpr is a compiled CEL predicate over item_name, price, stock and id.
type ItemExpr struct {
	source  string
	program cel.Program
}

var itemEnv = mustItemEnv()

func mustItemEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.IntType),
		cel.Variable("item_name", cel.StringType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("stock", cel.IntType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		panic(fmt.Sprintf("building item filter environment: %v", err))
	}
	return env
}

func CompileItemExpr(source string) (*ItemExpr, error) {
	ast, issues := itemEnv.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, domain.Invalid("invalid filter expression: %v", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, domain.Invalid("filter expression must evaluate to bool, got %s", ast.OutputType())
	}
	program, err := itemEnv.Program(ast)
	if err != nil {
		return nil, domain.Invalid("invalid filter expression: %v", err)
	}
	return &ItemExpr{source: source, program: program}, nil
}

func (e *ItemExpr) String() string {
	return e.source
}

func (e *ItemExpr) Match(item domain.Item) (bool, error) {
	out, _, err := e.program.Eval(map[string]any{
		"id":        item.ID,
		"item_name": item.Name,
		"price":     item.Price,
		"stock":     int64(item.Stock),
	})
	if err != nil {
		return false, domain.Invalid("evaluating filter expression on item %d: %v", item.ID, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, domain.Invalid("filter expression returned %T", out.Value())
	}
	return matched, nil
}
