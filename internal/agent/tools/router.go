package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
	"github.com/MedBuddy-core-poc-v1/server/pkg/metrics"
)

// Result is the JSON-serializable payload returned to the model for one call.
type Result = map[string]any

// Interaction checker statuses.
const (
	StatusInteractionsFound   = "interactions_found"
	StatusNoInteractionsFound = "no_interactions_found"
)

const noDataMessage = "No sources returned data."

// HasData reports whether r carries retrieved data. A result with an "error"
// field or an empty interaction lookup still goes back to the model but is not
// evidence for the answer.
func HasData(r Result) bool {
	if len(r) == 0 {
		return false
	}
	if _, failed := r["error"]; failed {
		return false
	}
	return r["status"] != StatusNoInteractionsFound
}

// Backend executes validated tool calls against one knowledge source.
type Backend interface {
	DrugInformation(ctx context.Context, args DrugInfoArgs) (Result, error)
	Compare(ctx context.Context, args ComparisonArgs) (Result, error)
	CheckInteractions(ctx context.Context, args InteractionArgs) (Result, error)
	Reimbursement(ctx context.Context, args ReimbursementArgs) (Result, error)
}

// Router maps tool names to Backend calls.
type Router struct {
	backend Backend
}

func NewRouter(backend Backend) *Router {
	return &Router{backend: backend}
}

// Route validates arguments and dispatches the call. A non-nil error always
// comes with a Result carrying an "error" field, so the caller can hand the
// result back to the model either way.
func (r *Router) Route(ctx context.Context, name, arguments string) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	args, err := ParseArgs(name, arguments)
	switch {
	case errors.Is(err, ErrUnknownTool):
		metrics.ToolCalls.WithLabelValues(name, "unknown_tool").Inc()
		logx.Warn().Str("tool", name).Msg("model requested unknown tool")
		return Result{"error": "Unknown tool: " + name}, err
	case err != nil:
		metrics.ToolCalls.WithLabelValues(name, "invalid_arguments").Inc()
		logx.Warn().Err(err).Str("tool", name).Str("arguments", arguments).Msg("invalid tool arguments")
		return Result{"error": err.Error()}, err
	}

	res, err := r.dispatch(ctx, args)
	if err != nil {
		metrics.ToolCalls.WithLabelValues(name, "failed").Inc()
		logx.Error().Err(err).Str("tool", name).Msg("tool execution failed")
		return Result{"error": fmt.Sprintf("Tool %s failed: %v", name, err)}, err
	}

	metrics.ToolCalls.WithLabelValues(name, "ok").Inc()
	logx.Debug().Str("tool", name).Dur("took", time.Since(start)).Msg("tool executed")
	return res, nil
}

func (r *Router) dispatch(ctx context.Context, args Args) (Result, error) {
	switch a := args.(type) {
	case DrugInfoArgs:
		return r.backend.DrugInformation(ctx, a)
	case ComparisonArgs:
		return r.backend.Compare(ctx, a)
	case InteractionArgs:
		return r.backend.CheckInteractions(ctx, a)
	case ReimbursementArgs:
		return r.backend.Reimbursement(ctx, a)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTool, args)
	}
}
