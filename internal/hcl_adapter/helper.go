package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. The HCL decoder often populates optional fields with non-nil, zero-width
// expression objects, so a simple nil check is insufficient.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		return false
	}

	// A real attribute occupies bytes in the file, while a placeholder for an
	// omitted optional attribute has a zero-width range.
	exprRange := expr.Range()
	isDefined := exprRange.End.Byte > exprRange.Start.Byte

	logger.Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", exprRange.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// optionalExpr returns nil for attributes the author omitted.
func optionalExpr(ctx context.Context, expr hcl.Expression, attrName string) hcl.Expression {
	if !isExprDefined(ctx, expr, attrName) {
		return nil
	}
	return expr
}

// splitList breaks a tuple expression such as `[a, b, c]` into its element
// expressions so each argument can be resolved and reported on its own.
func splitList(ctx context.Context, expr hcl.Expression, attrName string) ([]hcl.Expression, error) {
	if !isExprDefined(ctx, expr, attrName) {
		return nil, nil
	}
	items, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s must be a list literal: %w", attrName, diags)
	}
	return items, nil
}
