package pipeline

import "context"

// Next invokes whatever comes after the current layer in the chain: the
// next layer, or ultimately the wrapped tool function.
type Next func(context.Context) (any, error)

// Layer is one enforcement stage. A layer either short-circuits by
// returning an error (typically a *model.PolicyDeniedError) without
// calling next, or calls next and optionally post-processes its result.
type Layer func(ctx context.Context, cc *CallContext, next Next) (any, error)

// ToolFunc is the caller-supplied function a Pipeline wraps: the actual
// MCP tool/handler being protected.
type ToolFunc func(ctx context.Context, arguments map[string]any) (any, error)
