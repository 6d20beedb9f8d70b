// Package gateway dispatches tool-call requests: it resolves the tool in the
// registry, validates arguments against the tool's schema, executes the
// handler, and packages the result. All side effects belong to the handlers;
// the gateway itself is bookkeeping.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/llmutils"
	"github.com/effective-security/infohub/schema"
	"github.com/effective-security/infohub/tools"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/infohub", "gateway")

// ErrorKind classifies a failed invocation.
type ErrorKind string

const (
	// KindNotFound means the request named an unregistered tool.
	KindNotFound ErrorKind = "not_found"
	// KindInvalidArguments means the arguments violate the tool's schema.
	// The handler was not executed.
	KindInvalidArguments ErrorKind = "invalid_arguments"
	// KindHandlerError means the handler executed and failed.
	KindHandlerError ErrorKind = "handler_error"
)

// Request is one tool-call request.
type Request struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Failure describes why an invocation did not produce a value.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is the outcome of one invocation: a value or a failure, never both.
type Result struct {
	Value   json.RawMessage `json:"value,omitempty"`
	Failure *Failure        `json:"failure,omitempty"`
}

// Success reports whether the invocation produced a value.
func (r *Result) Success() bool {
	return r.Failure == nil
}

// ToolDefinition is the catalog entry advertised for one tool.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// Gateway dispatches requests against a read-only tool registry.
type Gateway struct {
	registry *tools.Registry
}

func New(registry *tools.Registry) *Gateway {
	return &Gateway{
		registry: registry,
	}
}

// Invoke handles one request, exactly once, synchronously. Every failure is
// returned as a structured result; the serving process never observes a
// handler error as anything but a Result.
func (g *Gateway) Invoke(ctx context.Context, req *Request) *Result {
	tool, ok := g.registry.Lookup(req.Name)
	if !ok {
		logger.ContextKV(ctx, xlog.DEBUG, "tool", req.Name, "status", "not_found")
		return failed(KindNotFound, errors.Errorf("unknown tool: %s", req.Name))
	}

	if err := schema.ValidateArguments(tool.Parameters(), req.Arguments); err != nil {
		logger.ContextKV(ctx, xlog.DEBUG, "tool", req.Name, "status", "invalid_arguments", "err", err.Error())
		return failed(KindInvalidArguments, err)
	}

	out, err := callTool(ctx, tool, llmutils.ToJSON(req.Arguments))
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG, "tool", req.Name, "status", "failed", "err", err.Error())
		return failed(KindHandlerError, err)
	}

	return succeeded(out)
}

// Catalog returns the definitions of all registered tools in registration
// order. Order is meaningful only for display; callers address tools by name.
func (g *Gateway) Catalog() []ToolDefinition {
	list := g.registry.List()
	defs := make([]ToolDefinition, 0, len(list))
	for _, tool := range list {
		defs = append(defs, ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.Parameters(),
		})
	}
	return defs
}

// callTool executes the handler, converting a panic into an error so that one
// bad request cannot take down the serving process.
func callTool(ctx context.Context, tool tools.ITool, input string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.KV(xlog.ERROR, "tool", tool.Name(), "panic", r)
			err = errors.Errorf("internal error: tool %s panicked", tool.Name())
		}
	}()
	return tool.Call(ctx, input)
}

func failed(kind ErrorKind, err error) *Result {
	return &Result{
		Failure: &Failure{
			Kind:    kind,
			Message: err.Error(),
		},
	}
}

func succeeded(out string) *Result {
	value := json.RawMessage(out)
	if !json.Valid(value) {
		// handlers return JSON, but a plain string is packaged as one
		value, _ = json.Marshal(out)
	}
	return &Result{Value: value}
}
