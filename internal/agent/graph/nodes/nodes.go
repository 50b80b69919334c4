package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/parsers"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/prompts"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

const (
	NodeRefine    = "refine_query"
	NodeRetrieve  = "retrieve_context"
	NodeTemplate  = "chain_template"
	NodeChatModel = "chain_chat_model"
	NodeParser    = "medical_parser"
)

// =========== Refine ===========

// NewRefineNode refines the query with history. A nil refiner passes the
// query through unchanged. A failed refinement falls back to the raw query.
func NewRefineNode(refiner *Refiner) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ChainInput) (string, error) {
		if refiner == nil {
			return in.Query, nil
		}
		refined, err := refiner.Refine(ctx, in.Query, in.History)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logx.Warn().Err(err).Str("session_id", in.SessionID).Msg("query refinement failed; using original query")
			return in.Query, nil
		}
		return refined, nil
	})
}

func NewRefinePreHandler() compose.StatePreHandler[model.ChainInput, *model.ChainState] {
	return func(ctx context.Context, in model.ChainInput, state *model.ChainState) (model.ChainInput, error) {
		state.SessionID = in.SessionID
		state.Query = in.Query
		state.History = sanitizeHistory(in.History)
		in.History = state.History
		return in, nil
	}
}

func NewRefinePostHandler() compose.StatePostHandler[string, *model.ChainState] {
	return func(ctx context.Context, out string, state *model.ChainState) (string, error) {
		state.RefinedQuery = out
		return out, nil
	}
}

// =========== Retrieve ===========

// NewRetrieveNode fans the refined query out to every knowledge base and
// returns the template variables.
func NewRetrieveNode(stores *retrieval.Stores, k int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, query string) (map[string]any, error) {
		results := stores.FanOut(ctx, query, k)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var history []*schema.Message
		err := compose.ProcessState(ctx, func(ctx context.Context, state *model.ChainState) error {
			state.Evidence = results.Documents()
			history = state.History
			return nil
		})
		if err != nil {
			return nil, err
		}

		return map[string]any{
			prompts.VarContext: retrieval.Merge(results),
			prompts.VarQuery:   query,
			prompts.VarHistory: history,
		}, nil
	})
}

// =========== Chat Model ===========

// NewChatModelPostHandler accumulates the USD cost of the call in state.
func NewChatModelPostHandler(modelName string) compose.StatePostHandler[*schema.Message, *model.ChainState] {
	pricing := model.ResolvePricing(modelName)
	return func(ctx context.Context, out *schema.Message, state *model.ChainState) (*schema.Message, error) {
		usage := model.UsageOf(out)
		in, outCost, total := model.ComputeCost(usage, pricing)
		state.TotalCostUSD += total
		if usage != nil {
			logx.Debug().
				Str("model", modelName).
				Int("prompt_tokens", usage.PromptTokens).
				Int("completion_tokens", usage.CompletionTokens).
				Float64("input_cost_usd", in).
				Float64("output_cost_usd", outCost).
				Msg("chain model usage")
		}
		return out, nil
	}
}

// =========== Parser ===========

// NewParserNode turns the model reply into a ChainOutput. Parse failures
// degrade to a summary-only response.
func NewParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*model.ChainOutput, error) {
		content := ""
		if msg != nil {
			content = msg.Content
		}
		resp, err := parsers.ParseMedicalResponse(content)
		if err != nil {
			logx.Warn().Err(err).Msg("structured answer could not be parsed; using raw reply")
		}

		out := &model.ChainOutput{Response: resp}
		err = compose.ProcessState(ctx, func(ctx context.Context, state *model.ChainState) error {
			out.RefinedQuery = state.RefinedQuery
			out.Evidence = state.Evidence
			out.TotalCostUSD = state.TotalCostUSD
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}
