package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/observers"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/prompts"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/guardrails"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/tools"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
	"github.com/MedBuddy-core-poc-v1/server/pkg/metrics"
)

const DefaultMaxIterations = 5

// ExhaustedMessage is returned when the model keeps requesting tools past the budget.
const ExhaustedMessage = "⚠️ Tool execution loop exceeded maximum iterations. Please rephrase the query or specify drug names clearly."

// State is a phase of the tool-calling loop.
type State int

const (
	BuildingContext State = iota
	AwaitingModel
	ExecutingTools
	FinalAnswer
	Exhausted
)

func (s State) String() string {
	switch s {
	case BuildingContext:
		return "building_context"
	case AwaitingModel:
		return "awaiting_model"
	case ExecutingTools:
		return "executing_tools"
	case FinalAnswer:
		return "final"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepKind discriminates what one model reply asks for.
type StepKind int

const (
	StepFinal StepKind = iota
	StepToolRequests
)

// Step is one classified model reply.
type Step struct {
	Kind    StepKind
	Message *schema.Message
	Calls   []schema.ToolCall
}

// ToolTrace records one executed or rejected tool call.
type ToolTrace struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Arguments string       `json:"arguments"`
	Result    tools.Result `json:"result"`
	// Executed is false for unknown tools, invalid arguments and failed backends.
	Executed bool `json:"executed"`
}

// Result is the terminal outcome of one loop run. State is FinalAnswer or Exhausted.
type Result struct {
	State        State
	Answer       string
	Verdict      guardrails.Verdict
	Iterations   int
	ToolTrace    []ToolTrace
	Evidence     []map[string]any
	TotalCostUSD float64
}

// ToolRouter executes one tool call by name.
type ToolRouter interface {
	Route(ctx context.Context, name, arguments string) (tools.Result, error)
}

type Config struct {
	MaxIterations int
	ModelName     string
}

// Runner drives the reasoning model through tool calls until it answers or
// the iteration budget is spent.
type Runner struct {
	model     einomodel.ToolCallingChatModel
	router    ToolRouter
	output    *guardrails.OutputGuardrail
	maxIter   int
	modelName string
	pricing   model.Pricing
}

// New binds the tool catalogue to chatModel.
func New(chatModel einomodel.ToolCallingChatModel, router ToolRouter, output *guardrails.OutputGuardrail, cfg Config) (*Runner, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}
	if router == nil {
		return nil, errors.New("tool router is nil")
	}
	if output == nil {
		output = guardrails.NewOutputGuardrail()
	}
	bound, err := chatModel.WithTools(tools.ToolInfos())
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	return &Runner{
		model:     bound,
		router:    router,
		output:    output,
		maxIter:   maxIter,
		modelName: cfg.ModelName,
		pricing:   model.ResolvePricing(cfg.ModelName),
	}, nil
}

// Run answers query with the given prior history. History is not modified.
func (r *Runner) Run(ctx context.Context, query string, history []*schema.Message) (*Result, error) {
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{Name: "medbuddy_agent", Type: "ToolCallingLoop"}, observers.NewAllCallbacks())

	res := &Result{State: BuildingContext}
	msgs, err := r.buildContext(ctx, query, history)
	if err != nil {
		return nil, err
	}

	res.State = AwaitingModel
	for res.State == AwaitingModel {
		if res.Iterations == r.maxIter {
			res.State = Exhausted
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res.Iterations++
		step, err := r.callModel(ctx, msgs, res)
		if err != nil {
			return nil, err
		}

		switch step.Kind {
		case StepFinal:
			res.State = FinalAnswer
			res.Verdict = r.output.Evaluate(step.Message.Content, res.Evidence)
			guardrails.Record(guardrails.StageOutput, res.Verdict)
			res.Answer = res.Verdict.Text()
		case StepToolRequests:
			res.State = ExecutingTools
			msgs = append(msgs, schema.AssistantMessage(step.Message.Content, step.Calls))
			msgs, err = r.executeTools(ctx, msgs, step.Calls, res)
			if err != nil {
				return nil, err
			}
			res.State = AwaitingModel
		}
	}

	if res.State == Exhausted {
		res.Answer = ExhaustedMessage
		logx.Warn().Int("iterations", res.Iterations).Int("tool_calls", len(res.ToolTrace)).Msg("tool loop exhausted")
	}
	metrics.LoopIterations.WithLabelValues(res.State.String()).Observe(float64(res.Iterations))
	logx.Info().
		Str("state", res.State.String()).
		Int("iterations", res.Iterations).
		Int("tool_calls", len(res.ToolTrace)).
		Float64("total_cost_usd", res.TotalCostUSD).
		Msg("tool loop finished")
	return res, nil
}

func (r *Runner) buildContext(ctx context.Context, query string, history []*schema.Message) ([]*schema.Message, error) {
	system, err := prompts.RenderAgentSystem(ctx)
	if err != nil {
		return nil, err
	}
	user, err := prompts.RenderAgentUser(ctx, query)
	if err != nil {
		return nil, err
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(system))
	for _, m := range history {
		if m == nil || m.Content == "" {
			continue
		}
		if m.Role == schema.User || m.Role == schema.Assistant {
			msgs = append(msgs, &schema.Message{Role: m.Role, Content: m.Content})
		}
	}
	return append(msgs, schema.UserMessage(user)), nil
}

func (r *Runner) callModel(ctx context.Context, msgs []*schema.Message, res *Result) (Step, error) {
	mctx := callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      r.modelName,
		Type:      "ChatModel",
		Component: components.ComponentOfChatModel,
	})
	out, err := r.model.Generate(mctx, msgs)
	if err != nil {
		return Step{}, fmt.Errorf("model call %d: %w", res.Iterations, err)
	}
	if out == nil {
		out = schema.AssistantMessage("", nil)
	}

	if usage := model.UsageOf(out); usage != nil {
		in, outCost, total := model.ComputeCost(usage, r.pricing)
		res.TotalCostUSD += total
		logx.Debug().
			Int("iteration", res.Iterations).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Float64("input_cost_usd", in).
			Float64("output_cost_usd", outCost).
			Msg("agent model usage")
	}

	if len(out.ToolCalls) == 0 {
		return Step{Kind: StepFinal, Message: out}, nil
	}
	calls := make([]schema.ToolCall, len(out.ToolCalls))
	for i, c := range out.ToolCalls {
		calls[i] = c
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call_%d", i)
		}
		if calls[i].Type == "" {
			calls[i].Type = "function"
		}
	}
	return Step{Kind: StepToolRequests, Message: out, Calls: calls}, nil
}

// executeTools runs calls sequentially in request order and appends one tool
// message per call.
func (r *Runner) executeTools(ctx context.Context, msgs []*schema.Message, calls []schema.ToolCall, res *Result) ([]*schema.Message, error) {
	for _, call := range calls {
		name, args := call.Function.Name, call.Function.Arguments

		tctx := callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
			Name:      name,
			Type:      "MedBuddyTool",
			Component: components.ComponentOfTool,
		})
		tctx = callbacks.OnStart(tctx, &tool.CallbackInput{ArgumentsInJSON: args})

		result, err := r.router.Route(tctx, name, args)
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		executed := err == nil
		if err != nil {
			callbacks.OnError(tctx, err)
		}

		content, merr := json.Marshal(result)
		if merr != nil {
			content = []byte(fmt.Sprintf(`{"error":%q}`, merr.Error()))
			executed = false
		}
		if executed {
			callbacks.OnEnd(tctx, &tool.CallbackOutput{Response: string(content)})
			if tools.HasData(result) {
				res.Evidence = append(res.Evidence, result)
			}
		}

		res.ToolTrace = append(res.ToolTrace, ToolTrace{ID: call.ID, Name: name, Arguments: args, Result: result, Executed: executed})
		msgs = append(msgs, schema.ToolMessage(string(content), call.ID, schema.WithToolName(name)))
	}
	return msgs, nil
}
