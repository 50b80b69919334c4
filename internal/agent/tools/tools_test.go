package tools

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
)

type fakeRetriever struct {
	mu      sync.Mutex
	docs    []*schema.Document
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ ...retriever.Option) ([]*schema.Document, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.docs, f.err
}

func newVectorRouter(t *testing.T, dbs map[retrieval.Database]*fakeRetriever) *Router {
	t.Helper()
	rs := map[retrieval.Database]retriever.Retriever{}
	for db, r := range dbs {
		rs[db] = r
	}
	return NewRouter(NewVectorBackend(retrieval.NewStores(rs, time.Second), 5))
}

func TestToolInfosMatchNames(t *testing.T) {
	infos := ToolInfos()
	require.Len(t, infos, len(Names))
	for i, info := range infos {
		assert.Equal(t, Names[i], info.Name)
		assert.NotEmpty(t, info.Desc)
		assert.NotNil(t, info.ParamsOneOf)
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(ToolDrugInformation, `{"drug_name":" metformin "}`)
	require.NoError(t, err)
	assert.Equal(t, DrugInfoArgs{DrugName: "metformin"}, args)

	args, err = ParseArgs(ToolInteractionChecker, `{"drug_list":["warfarin","", "aspirin"]}`)
	require.NoError(t, err)
	assert.Equal(t, InteractionArgs{DrugList: []string{"warfarin", "aspirin"}}, args)

	_, err = ParseArgs(ToolComparativeAnalysis, `{"drug_names":["metformin"]}`)
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "drug_names", argErr.Field)

	_, err = ParseArgs(ToolReimbursementNavigator, `{"drug_name":`)
	require.ErrorAs(t, err, &argErr)

	_, err = ParseArgs(ToolDrugInformation, `{"drug_name":42}`)
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "drug_name", argErr.Field)

	_, err = ParseArgs(ToolDrugInformation, ``)
	require.ErrorAs(t, err, &argErr)

	_, err = ParseArgs("dosage_calculator", `{}`)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRouteUnknownTool(t *testing.T) {
	router := newVectorRouter(t, nil)

	res, err := router.Route(context.Background(), "dosage_calculator", `{}`)
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Equal(t, Result{"error": "Unknown tool: dosage_calculator"}, res)
}

func TestRouteInvalidArguments(t *testing.T) {
	router := newVectorRouter(t, nil)

	res, err := router.Route(context.Background(), ToolComparativeAnalysis, `{"drug_names":["metformin"]}`)
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Contains(t, res["error"], "Invalid arguments for comparative_analysis")
}

func TestVectorDrugInformation(t *testing.T) {
	master := &fakeRetriever{docs: []*schema.Document{{ID: "1", Content: "Metformin is a biguanide."}}}
	router := newVectorRouter(t, map[retrieval.Database]*fakeRetriever{retrieval.DrugMaster: master})

	res, err := router.Route(context.Background(), ToolDrugInformation, `{"drug_name":"metformin"}`)
	require.NoError(t, err)
	assert.Equal(t, "metformin", res["query"])
	matches := res["top_matches"].([]map[string]any)
	require.Len(t, matches, 1)
	assert.Equal(t, "Metformin is a biguanide.", matches[0]["content"])
	assert.Equal(t, "drugs_master", matches[0]["metadata"].(map[string]any)["database"])
}

func TestVectorEmptyResults(t *testing.T) {
	empty := &fakeRetriever{}
	router := newVectorRouter(t, map[retrieval.Database]*fakeRetriever{
		retrieval.DrugMaster:    empty,
		retrieval.Comparisons:   empty,
		retrieval.Interactions:  empty,
		retrieval.Reimbursement: empty,
	})
	ctx := context.Background()

	res, err := router.Route(ctx, ToolDrugInformation, `{"drug_name":"xyz"}`)
	require.NoError(t, err)
	assert.Equal(t, "No drug information found for: xyz", res["error"])

	res, err = router.Route(ctx, ToolComparativeAnalysis, `{"drug_names":["a","b"]}`)
	require.NoError(t, err)
	assert.Equal(t, "No comparison data found for: a, b", res["error"])

	res, err = router.Route(ctx, ToolInteractionChecker, `{"drug_list":["warfarin","aspirin"]}`)
	require.NoError(t, err)
	assert.Equal(t, "no_interactions_found", res["status"])
	assert.Equal(t, " interaction between warfarin and aspirin", res["query"])

	res, err = router.Route(ctx, ToolReimbursementNavigator, `{"drug_name":"xyz"}`)
	require.NoError(t, err)
	assert.Equal(t, "No reimbursement information found for: xyz", res["error"])

	assert.Equal(t, []string{
		"xyz",
		"a comparison between b",
		" interaction between warfarin and aspirin",
		"reimbursement coverage insurance information for xyz",
	}, empty.queries)
}

func TestVectorBackendFailure(t *testing.T) {
	broken := &fakeRetriever{err: errors.New("index missing")}
	router := newVectorRouter(t, map[retrieval.Database]*fakeRetriever{retrieval.Interactions: broken})

	res, err := router.Route(context.Background(), ToolInteractionChecker, `{"drug_list":["warfarin","aspirin"]}`)
	require.Error(t, err)
	assert.Contains(t, res["error"], "Tool drug_interaction_checker failed")
}

func TestHasData(t *testing.T) {
	assert.False(t, HasData(nil))
	assert.False(t, HasData(Result{"error": "No drug information found for: x"}))
	assert.False(t, HasData(Result{"status": StatusNoInteractionsFound, "query": "q"}))
	assert.True(t, HasData(Result{"status": StatusInteractionsFound, "top_matches": []map[string]any{{"content": "c"}}}))
	assert.True(t, HasData(Result{"query": "metformin", "top_matches": []map[string]any{{"content": "c"}}}))
}
