package tools

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
)

const defaultToolTopK = 5

// ===================================
// Vector Backend
// ===================================

// VectorBackend answers tool calls with similarity searches over the
// knowledge bases.
type VectorBackend struct {
	stores *retrieval.Stores
	k      int
}

// NewVectorBackend searches k documents per call; k <= 0 selects 5.
func NewVectorBackend(stores *retrieval.Stores, k int) *VectorBackend {
	if k <= 0 {
		k = defaultToolTopK
	}
	return &VectorBackend{stores: stores, k: k}
}

func (b *VectorBackend) DrugInformation(ctx context.Context, args DrugInfoArgs) (Result, error) {
	docs, err := b.stores.Search(ctx, retrieval.DrugMaster, args.DrugName, b.k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return Result{"error": "No drug information found for: " + args.DrugName}, nil
	}
	return Result{
		"query":       args.DrugName,
		"top_matches": topMatches(docs),
	}, nil
}

func (b *VectorBackend) Compare(ctx context.Context, args ComparisonArgs) (Result, error) {
	query := strings.Join(args.DrugNames, " comparison between ")
	docs, err := b.stores.Search(ctx, retrieval.Comparisons, query, b.k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return Result{"error": "No comparison data found for: " + strings.Join(args.DrugNames, ", ")}, nil
	}
	return Result{
		"query":          query,
		"drugs_compared": args.DrugNames,
		"top_matches":    topMatches(docs),
	}, nil
}

func (b *VectorBackend) CheckInteractions(ctx context.Context, args InteractionArgs) (Result, error) {
	query := " interaction between " + strings.Join(args.DrugList, " and ")
	docs, err := b.stores.Search(ctx, retrieval.Interactions, query, b.k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return Result{
			"status":        StatusNoInteractionsFound,
			"query":         query,
			"drugs_checked": args.DrugList,
		}, nil
	}
	return Result{
		"status":        StatusInteractionsFound,
		"query":         query,
		"drugs_checked": args.DrugList,
		"top_matches":   topMatches(docs),
	}, nil
}

func (b *VectorBackend) Reimbursement(ctx context.Context, args ReimbursementArgs) (Result, error) {
	query := "reimbursement coverage insurance information for " + args.DrugName
	docs, err := b.stores.Search(ctx, retrieval.Reimbursement, query, b.k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return Result{"error": "No reimbursement information found for: " + args.DrugName}, nil
	}
	return Result{
		"query":       query,
		"drug_name":   args.DrugName,
		"top_matches": topMatches(docs),
	}, nil
}

func topMatches(docs []*schema.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		meta := d.MetaData
		if meta == nil {
			meta = map[string]any{}
		}
		out = append(out, map[string]any{
			"content":  d.Content,
			"metadata": meta,
		})
	}
	return out
}

var _ Backend = (*VectorBackend)(nil)
