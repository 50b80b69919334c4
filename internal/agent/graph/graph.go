package graph

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/nodes"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/observers"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/prompts"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

const defaultChainTopK = 2

// ChainRunner executes one retrieval chain turn.
type ChainRunner interface {
	Invoke(ctx context.Context, in model.ChainInput) (*model.ChainOutput, error)
}

// ChainConfig holds everything needed to build a retrieval chain.
type ChainConfig struct {
	// Refiner is optional; without it the raw query is searched.
	Refiner   *nodes.Refiner
	Stores    *retrieval.Stores
	TopK      int
	Template  prompt.ChatTemplate
	ChatModel einomodel.BaseChatModel
	ModelName string
}

// ChainBuilder handles the construction of the retrieval chain graph
type ChainBuilder struct {
	config *ChainConfig
	graph  *compose.Graph[model.ChainInput, *model.ChainOutput]
}

type chainRunner struct {
	runnable compose.Runnable[model.ChainInput, *model.ChainOutput]
}

func (r *chainRunner) Invoke(ctx context.Context, in model.ChainInput) (*model.ChainOutput, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("chain returned no output")
	}
	return out, nil
}

// BuildDoctorChain builds the multi-turn chain: refine with history, retrieve,
// answer in the structured professional format.
func BuildDoctorChain(ctx context.Context, refiner *nodes.Refiner, stores *retrieval.Stores, k int, cms *nodes.ChatModels) (ChainRunner, error) {
	if cms == nil {
		return nil, fmt.Errorf("chat models are nil")
	}
	return BuildChain(ctx, &ChainConfig{
		Refiner:   refiner,
		Stores:    stores,
		TopK:      k,
		Template:  prompts.DoctorTemplate(),
		ChatModel: cms.Response,
		ModelName: cms.ResponseModelName,
	})
}

// BuildPatientChain builds the stateless chain: retrieve on the raw query and
// answer in plain language.
func BuildPatientChain(ctx context.Context, stores *retrieval.Stores, k int, cms *nodes.ChatModels) (ChainRunner, error) {
	if cms == nil {
		return nil, fmt.Errorf("chat models are nil")
	}
	return BuildChain(ctx, &ChainConfig{
		Stores:    stores,
		TopK:      k,
		Template:  prompts.PatientTemplate(),
		ChatModel: cms.Response,
		ModelName: cms.ResponseModelName,
	})
}

// BuildChain constructs and compiles the retrieval chain graph.
func BuildChain(ctx context.Context, config *ChainConfig) (ChainRunner, error) {
	if config == nil {
		return nil, fmt.Errorf("chain config is nil")
	}
	if config.Stores == nil {
		return nil, fmt.Errorf("knowledge stores are nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if config.Template == nil {
		return nil, fmt.Errorf("chat template is nil")
	}
	if config.TopK <= 0 {
		config.TopK = defaultChainTopK
	}

	builder := &ChainBuilder{
		config: config,
		graph: compose.NewGraph[model.ChainInput, *model.ChainOutput](
			compose.WithGenLocalState(func(ctx context.Context) *model.ChainState {
				return &model.ChainState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	logx.Debug().Bool("refine", config.Refiner != nil).Int("k", config.TopK).Msg("Retrieval chain built successfully")
	return &chainRunner{runnable: runnable}, nil
}

// addNodes adds all processing nodes to the graph
func (b *ChainBuilder) addNodes() error {
	steps := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeRefine,
				nodes.NewRefineNode(b.config.Refiner),
				compose.WithStatePreHandler(nodes.NewRefinePreHandler()),
				compose.WithStatePostHandler(nodes.NewRefinePostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeRetrieve, nodes.NewRetrieveNode(b.config.Stores, b.config.TopK))
		},
		func() error {
			return b.graph.AddChatTemplateNode(nodes.NodeTemplate, b.config.Template)
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeChatModel, b.config.ChatModel,
				compose.WithStatePostHandler(nodes.NewChatModelPostHandler(b.config.ModelName)),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeParser, nodes.NewParserNode())
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			logx.Error().Err(err).Msg("Error adding chain node")
			return fmt.Errorf("error adding chain node: %w", err)
		}
	}
	return nil
}

// addEdges creates the linear flow between nodes
func (b *ChainBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeRefine},
		{nodes.NodeRefine, nodes.NodeRetrieve},
		{nodes.NodeRetrieve, nodes.NodeTemplate},
		{nodes.NodeTemplate, nodes.NodeChatModel},
		{nodes.NodeChatModel, nodes.NodeParser},
		{nodes.NodeParser, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding chain edge")
			return fmt.Errorf("error adding chain edge: %w", err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *ChainBuilder) compile(ctx context.Context) (compose.Runnable[model.ChainInput, *model.ChainOutput], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling chain")
		return nil, fmt.Errorf("error compiling chain: %w", err)
	}
	return runnable, nil
}
