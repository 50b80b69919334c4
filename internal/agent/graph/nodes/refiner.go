package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/prompts"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

// ErrEmptyRefinement is returned when the refiner replies with no text.
var ErrEmptyRefinement = errors.New("refiner returned an empty query")

// Refiner rewrites a query into a self-contained retrieval query.
type Refiner struct {
	model einomodel.BaseChatModel
}

func NewRefiner(m einomodel.BaseChatModel) *Refiner {
	return &Refiner{model: m}
}

// Refine makes one model call. It does not retry.
func (r *Refiner) Refine(ctx context.Context, query string, history []*schema.Message) (string, error) {
	msgs, err := prompts.RenderRefine(ctx, query, history)
	if err != nil {
		return "", err
	}
	out, err := r.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("refine query: %w", err)
	}
	if out == nil {
		return "", ErrEmptyRefinement
	}
	refined := cleanRefinement(out.Content)
	if refined == "" {
		return "", ErrEmptyRefinement
	}
	logx.Debug().Str("query", query).Str("refined", refined).Msg("query refined")
	return refined, nil
}

func cleanRefinement(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}
