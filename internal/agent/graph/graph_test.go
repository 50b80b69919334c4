package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/nodes"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/prompts"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
)

type scriptedModel struct {
	mu    sync.Mutex
	reply string
	err   error
	seen  [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.seen = append(m.seen, input)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{
		Role:    schema.Assistant,
		Content: m.reply,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 0},
		},
	}, nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

type memRetriever struct {
	mu      sync.Mutex
	content string
	queries []string
}

func (r *memRetriever) Retrieve(_ context.Context, query string, _ ...retriever.Option) ([]*schema.Document, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	if r.content == "" {
		return nil, nil
	}
	return []*schema.Document{{ID: "1", Content: r.content}}, nil
}

func newStores(master *memRetriever) *retrieval.Stores {
	return retrieval.NewStores(map[retrieval.Database]retriever.Retriever{
		retrieval.DrugMaster:    master,
		retrieval.Interactions:  &memRetriever{},
		retrieval.Reimbursement: &memRetriever{},
		retrieval.Comparisons:   &memRetriever{},
	}, time.Second)
}

func TestDoctorChain(t *testing.T) {
	ctx := context.Background()
	refinerModel := &scriptedModel{reply: `"metformin mechanism of action"`}
	responseModel := &scriptedModel{reply: `{"summary":"Metformin reduces hepatic glucose production.","sources":[{"database":"drugs_master","snippet":"biguanide"}]}`}
	master := &memRetriever{content: "Metformin is a biguanide."}

	chain, err := BuildDoctorChain(ctx, nodes.NewRefiner(refinerModel), newStores(master), 2, &nodes.ChatModels{
		Response:          &toolModel{scriptedModel: responseModel},
		ResponseModelName: "gemini-2.5-flash",
	})
	require.NoError(t, err)

	history := []*schema.Message{
		schema.UserMessage("tell me about metformin"),
		schema.AssistantMessage("Metformin is a biguanide.", nil),
		schema.SystemMessage("ignored"),
	}
	out, err := chain.Invoke(ctx, model.ChainInput{SessionID: "s1", Query: "how does it work?", History: history})
	require.NoError(t, err)

	assert.Equal(t, "metformin mechanism of action", out.RefinedQuery)
	assert.Equal(t, []string{"metformin mechanism of action"}, master.queries)
	require.Len(t, out.Evidence, 1)
	assert.Equal(t, "drugs_master", out.Evidence[0].MetaData[retrieval.MetaDatabase])
	assert.Equal(t, "Metformin reduces hepatic glucose production.", out.Response.Summary)
	assert.Equal(t, model.DefaultProfessionalDisclaimer, out.Response.Disclaimer)
	assert.InDelta(t, 0.30, out.TotalCostUSD, 1e-9)

	require.Len(t, responseModel.seen, 1)
	sent := responseModel.seen[0]
	// system, two history turns, user
	require.Len(t, sent, 4)
	assert.Equal(t, schema.System, sent[0].Role)
	assert.Contains(t, sent[0].Content, "--- DRUG MASTER DATA ---")
	assert.Contains(t, sent[0].Content, "Metformin is a biguanide.")
	assert.Equal(t, schema.User, sent[3].Role)
	assert.Contains(t, sent[3].Content, "metformin mechanism of action")
}

func TestPatientChainSkipsRefinement(t *testing.T) {
	ctx := context.Background()
	responseModel := &scriptedModel{reply: "Paracetamol helps with fever."}
	master := &memRetriever{}

	chain, err := BuildPatientChain(ctx, newStores(master), 2, &nodes.ChatModels{
		Response:          &toolModel{scriptedModel: responseModel},
		ResponseModelName: "unknown",
	})
	require.NoError(t, err)

	out, err := chain.Invoke(ctx, model.ChainInput{SessionID: "p1", Query: "what is paracetamol for"})
	require.NoError(t, err)
	assert.Equal(t, "what is paracetamol for", out.RefinedQuery)
	assert.Empty(t, out.Evidence)
	assert.Equal(t, "Paracetamol helps with fever.", out.Response.Summary)
	assert.Zero(t, out.TotalCostUSD)
}

func TestChainModelFailure(t *testing.T) {
	ctx := context.Background()
	chain, err := BuildChain(ctx, &ChainConfig{
		Stores:    newStores(&memRetriever{content: "x"}),
		Template:  prompts.DoctorTemplate(),
		ChatModel: &scriptedModel{err: errors.New("503 from provider")},
	})
	require.NoError(t, err)

	_, err = chain.Invoke(ctx, model.ChainInput{Query: "metformin"})
	assert.Error(t, err)
}

func TestRefinementFailureFallsBackToQuery(t *testing.T) {
	ctx := context.Background()
	master := &memRetriever{content: "x"}
	chain, err := BuildChain(ctx, &ChainConfig{
		Refiner:   nodes.NewRefiner(&scriptedModel{reply: "  "}),
		Stores:    newStores(master),
		Template:  prompts.DoctorTemplate(),
		ChatModel: &scriptedModel{reply: `{"summary":"ok"}`},
	})
	require.NoError(t, err)

	out, err := chain.Invoke(ctx, model.ChainInput{Query: "metformin"})
	require.NoError(t, err)
	assert.Equal(t, "metformin", out.RefinedQuery)
	assert.Equal(t, []string{"metformin"}, master.queries)
}

// toolModel adapts scriptedModel to ToolCallingChatModel.
type toolModel struct {
	*scriptedModel
}

func (m *toolModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}
