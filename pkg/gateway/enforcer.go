// Package gateway exposes the Enforcer facade (spec §4.5): the single
// entry point that binds a policy engine, audit sink, and rate limiter
// and runs invocations through the pipeline.
package gateway

import (
	"context"
	"reflect"

	"github.com/aip-zerotrust/gateway/pkg/audit"
	"github.com/aip-zerotrust/gateway/pkg/model"
	"github.com/aip-zerotrust/gateway/pkg/pipeline"
	"github.com/aip-zerotrust/gateway/pkg/policy"
	"github.com/aip-zerotrust/gateway/pkg/ratelimit"
)

// ToolFunc is the signature of a tool function the Enforcer protects.
type ToolFunc = pipeline.ToolFunc

// Enforcer binds one policy snapshot, audit sink, and rate limiter, and
// builds the six-layer pipeline once at construction time.
type Enforcer struct {
	engine   *policy.Engine
	pipeline *pipeline.Pipeline
}

// New builds an Enforcer for p, emitting audit events to sink (pass nil
// to disable audit output regardless of the policy's own audit.enabled).
// A fresh rate limiter is allocated per Enforcer; share one Enforcer
// across a process rather than constructing one per call, since the
// limiter's bucket state must persist across invocations to be useful.
func New(p policy.Policy, sink audit.Sink) *Enforcer {
	engine := policy.NewEngine(p)
	return &Enforcer{
		engine:   engine,
		pipeline: pipeline.New(engine, ratelimit.NewLimiter(), sink),
	}
}

// Policy returns the bound policy snapshot.
func (e *Enforcer) Policy() policy.Policy { return e.engine.Policy() }

// Enforce runs inv through the pipeline and, if nothing denies it, calls
// toolFn. Returns a *model.PolicyDeniedError for any enforcement denial.
func (e *Enforcer) Enforce(ctx context.Context, inv model.Invocation, toolFn ToolFunc) (any, error) {
	return e.pipeline.Execute(ctx, inv, toolFn)
}

// Wrap returns a ToolFunc that enforces policy before delegating to fn,
// tagging every resulting invocation with name. This is the Go shape of
// the original's decorator: callers invoke the returned function exactly
// like fn, but every call now goes through Enforce first.
func (e *Enforcer) Wrap(name string, fn ToolFunc) ToolFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		inv, err := model.New(name, args)
		if err != nil {
			return nil, err
		}
		return e.Enforce(ctx, inv, fn)
	}
}

// WrapFunc is Wrap without an explicit name, falling back to the
// function value's reflected type string — the closest Go analogue to
// the original's "fall back to the callable's type name" clause, since
// Go function values carry no runtime name of their own.
func (e *Enforcer) WrapFunc(fn ToolFunc) ToolFunc {
	return e.Wrap(reflect.TypeOf(fn).String(), fn)
}
